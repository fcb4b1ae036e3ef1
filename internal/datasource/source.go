// Package datasource reads Logseq-style graphs for blockmap. A graph is
// either a directory of markdown/org notes or an SQLite index built from one;
// Open picks the freshest valid source and returns it as a host.Reader.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/vanderheijden86/blockmap/pkg/host"
	"github.com/vanderheijden86/blockmap/pkg/model"
)

// SourceType identifies the type of data source.
type SourceType string

const (
	// SourceTypeGraphDir is a directory of note files.
	SourceTypeGraphDir SourceType = "graph_dir"
	// SourceTypeSQLite is an index written by "bm index".
	SourceTypeSQLite SourceType = "sqlite"
)

// Priority values for source types (higher wins on equal freshness).
const (
	PrioritySQLite   = 100
	PriorityGraphDir = 50
)

// ErrNoSource is returned when neither a graph directory nor an index is
// usable.
var ErrNoSource = errors.New("no valid graph source")

// DataSource is a candidate source of pages.
type DataSource struct {
	Type            SourceType `json:"type"`
	Path            string     `json:"path"`
	Priority        int        `json:"priority"`
	ModTime         time.Time  `json:"mod_time"`
	Valid           bool       `json:"valid"`
	ValidationError string     `json:"validation_error,omitempty"`
	PageCount       int        `json:"page_count"`
}

// String returns a human-readable description of the source.
func (s DataSource) String() string {
	status := "valid"
	if !s.Valid {
		status = fmt.Sprintf("invalid: %s", s.ValidationError)
	}
	return fmt.Sprintf("%s (%s, priority=%d, mod=%s, pages=%d, %s)",
		s.Path, s.Type, s.Priority, s.ModTime.Format(time.RFC3339), s.PageCount, status)
}

// DiscoveryOptions configures source discovery.
type DiscoveryOptions struct {
	GraphDir string
	Database string
	Filter   *Filter
	// Logger receives progress lines when set.
	Logger func(msg string)
}

func (o DiscoveryOptions) log(format string, args ...any) {
	if o.Logger != nil {
		o.Logger(fmt.Sprintf(format, args...))
	}
}

// DiscoverSources stats the configured graph directory and index and returns
// them validated, freshest first.
func DiscoverSources(ctx context.Context, opts DiscoveryOptions) ([]DataSource, error) {
	var sources []DataSource

	if opts.GraphDir != "" {
		src := DataSource{Type: SourceTypeGraphDir, Path: opts.GraphDir, Priority: PriorityGraphDir}
		validateGraphDir(&src, opts.Filter)
		opts.log("graph dir %s", src)
		sources = append(sources, src)
	}
	if opts.Database != "" {
		if _, err := os.Stat(opts.Database); err == nil {
			src := DataSource{Type: SourceTypeSQLite, Path: opts.Database, Priority: PrioritySQLite}
			validateStore(ctx, &src)
			opts.log("index %s", src)
			sources = append(sources, src)
		}
	}

	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].ModTime.Equal(sources[j].ModTime) {
			return sources[i].Priority > sources[j].Priority
		}
		return sources[i].ModTime.After(sources[j].ModTime)
	})
	return sources, nil
}

// validateGraphDir sets the directory's freshness to its newest note.
func validateGraphDir(src *DataSource, f *Filter) {
	info, err := os.Stat(src.Path)
	if err != nil || !info.IsDir() {
		src.ValidationError = "not a directory"
		return
	}
	rels, err := ListNotes(src.Path, f)
	if err != nil {
		src.ValidationError = err.Error()
		return
	}
	if len(rels) == 0 {
		src.ValidationError = "no notes"
		return
	}
	for _, rel := range rels {
		if fi, err := os.Stat(filepath.Join(src.Path, filepath.FromSlash(rel))); err == nil && fi.ModTime().After(src.ModTime) {
			src.ModTime = fi.ModTime()
		}
	}
	src.PageCount = len(rels)
	src.Valid = true
}

// validateStore uses the index's own write time rather than the file mtime,
// which WAL checkpoints move.
func validateStore(ctx context.Context, src *DataSource) {
	st, err := OpenStore(src.Path)
	if err != nil {
		src.ValidationError = err.Error()
		return
	}
	defer st.Close()
	n, err := st.CountPages(ctx)
	if err != nil {
		src.ValidationError = err.Error()
		return
	}
	if n == 0 {
		src.ValidationError = "empty index"
		return
	}
	at, err := st.IndexedAt(ctx)
	if err != nil {
		src.ValidationError = err.Error()
		return
	}
	src.ModTime = at
	src.PageCount = n
	src.Valid = true
}

// SelectBestSource returns the freshest valid source. An index written at or
// after the newest note wins over the directory.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	var best *DataSource
	for i := range sources {
		s := &sources[i]
		if !s.Valid {
			continue
		}
		if best == nil || s.ModTime.After(best.ModTime) ||
			(s.ModTime.Equal(best.ModTime) && s.Priority > best.Priority) {
			best = s
		}
	}
	if best == nil {
		return DataSource{}, ErrNoSource
	}
	return *best, nil
}

// Source is an opened graph.
type Source struct {
	Info   DataSource
	Reader host.Reader
	// Memory is set for graph-directory sources; it also serves
	// host.Navigator and host.Events.
	Memory *host.Memory
	// Graph is the scan behind Memory.
	Graph  *Graph
	opts   OpenOptions
	closer func() error
}

// Close releases the source.
func (s *Source) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

// Reload rescans the graph directory. A graph-directory source replaces the
// pages in Memory, drops pages whose files are gone and emits GraphChanged.
// An index source rewrites the index when a graph directory is configured.
func (s *Source) Reload(ctx context.Context) error {
	dir := s.opts.GraphDir
	if s.Info.Type == SourceTypeGraphDir {
		dir = s.Info.Path
	}
	if dir == "" {
		return nil
	}
	g, err := Scan(ctx, dir, s.opts.Filter, ScanOptions{Concurrency: s.opts.Concurrency})
	if err != nil {
		return err
	}
	for _, f := range g.Errors() {
		s.opts.log("skipping %s: %v", f.Rel, f.Err)
	}

	switch s.Info.Type {
	case SourceTypeGraphDir:
		keep := make(map[string]bool)
		for _, p := range g.Pages() {
			keep[model.NormalizePageName(p.Page.Name)] = true
		}
		for _, name := range s.Memory.PageNames() {
			if !keep[model.NormalizePageName(name)] {
				s.Memory.RemovePage(name)
			}
		}
		g.Populate(s.Memory)
		s.Graph = g
		s.Memory.NotifyGraphChanged()
	case SourceTypeSQLite:
		st, ok := s.Reader.(*Store)
		if !ok {
			return fmt.Errorf("index source without a store")
		}
		if _, err := st.WriteGraph(ctx, g, s.opts.Host); err != nil {
			return err
		}
	}
	return nil
}

// OpenOptions configures Open.
type OpenOptions struct {
	DiscoveryOptions
	Host        model.HostConfig
	Concurrency int
	// ForceType restricts selection to one source type when set.
	ForceType SourceType
}

// Open discovers the configured sources, selects the best and opens it.
func Open(ctx context.Context, opts OpenOptions) (*Source, error) {
	sources, err := DiscoverSources(ctx, opts.DiscoveryOptions)
	if err != nil {
		return nil, err
	}
	if opts.ForceType != "" {
		var kept []DataSource
		for _, s := range sources {
			if s.Type == opts.ForceType {
				kept = append(kept, s)
			}
		}
		sources = kept
	}
	best, err := SelectBestSource(sources)
	if err != nil {
		return nil, err
	}
	return OpenSource(ctx, best, opts)
}

// OpenSource opens a specific source.
func OpenSource(ctx context.Context, src DataSource, opts OpenOptions) (*Source, error) {
	switch src.Type {
	case SourceTypeSQLite:
		st, err := OpenStore(src.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open index %s: %w", src.Path, err)
		}
		return &Source{Info: src, Reader: st, opts: opts, closer: st.Close}, nil

	case SourceTypeGraphDir:
		g, err := Scan(ctx, src.Path, opts.Filter, ScanOptions{Concurrency: opts.Concurrency})
		if err != nil {
			return nil, err
		}
		for _, f := range g.Errors() {
			opts.log("skipping %s: %v", f.Rel, f.Err)
		}
		m := g.Memory(opts.Host)
		return &Source{Info: src, Reader: m, Memory: m, Graph: g, opts: opts}, nil

	default:
		return nil, fmt.Errorf("unknown source type: %s", src.Type)
	}
}
