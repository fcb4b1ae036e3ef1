package datasource

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/blockmap/pkg/host"
	"github.com/vanderheijden86/blockmap/pkg/metrics"
	"github.com/vanderheijden86/blockmap/pkg/model"
)

// FileResult is the outcome of parsing one note. A failed file carries Err
// and does not stop the scan.
type FileResult struct {
	Rel  string
	Page *ParsedPage
	Err  error
}

// ScanOptions tunes Scan.
type ScanOptions struct {
	// Concurrency bounds parallel file parsing. Zero means 32.
	Concurrency int
	// OnFile is called after each file is parsed, from worker goroutines.
	OnFile func(rel string)
}

// Graph is a parsed graph directory.
type Graph struct {
	Dir     string
	Name    string
	Files   []FileResult
	Scanned time.Time
}

// Pages returns the successfully parsed pages in path order.
func (g *Graph) Pages() []*ParsedPage {
	var out []*ParsedPage
	for _, f := range g.Files {
		if f.Err == nil && f.Page != nil {
			out = append(out, f.Page)
		}
	}
	return out
}

// Errors returns the per-file failures.
func (g *Graph) Errors() []FileResult {
	var out []FileResult
	for _, f := range g.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// NewestModTime returns the latest modification time across parsed files.
func (g *Graph) NewestModTime() time.Time {
	var newest time.Time
	for _, p := range g.Pages() {
		if p.ModTime.After(newest) {
			newest = p.ModTime
		}
	}
	return newest
}

// ListNotes walks dir and returns the slash-separated relative paths of the
// note files f keeps, sorted.
func ListNotes(dir string, f *Filter) ([]string, error) {
	var rels []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if !f.Keep(rel + "/") {
				return filepath.SkipDir
			}
			return nil
		}
		if f.Keep(rel) {
			rels = append(rels, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(rels)
	return rels, nil
}

// Scan parses every note of a graph directory in parallel. Individual file
// failures are recorded in the result; only a failed walk is fatal.
func Scan(ctx context.Context, dir string, f *Filter, opts ScanOptions) (*Graph, error) {
	defer metrics.Timer(metrics.GraphScan)()
	rels, err := ListNotes(dir, f)
	if err != nil {
		return nil, err
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 32
	}

	results := make([]FileResult, len(rels))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, rel := range rels {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = FileResult{Rel: rel, Err: err}
				return nil
			}
			results[i] = parseOne(dir, rel)
			if opts.OnFile != nil {
				opts.OnFile(rel)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	abs, _ := filepath.Abs(dir)
	return &Graph{Dir: abs, Name: filepath.Base(abs), Files: results, Scanned: time.Now()}, nil
}

func parseOne(dir, rel string) FileResult {
	full := filepath.Join(dir, filepath.FromSlash(rel))
	info, err := os.Stat(full)
	if err != nil {
		return FileResult{Rel: rel, Err: err}
	}
	src, err := os.ReadFile(full)
	if err != nil {
		return FileResult{Rel: rel, Err: err}
	}
	p, err := ParseFile(rel, src)
	if err != nil {
		return FileResult{Rel: rel, Err: err}
	}
	p.ModTime = info.ModTime()
	return FileResult{Rel: rel, Page: p}
}

// Populate loads the parsed pages into m. When two files name the same page
// the later path wins.
func (g *Graph) Populate(m *host.Memory) {
	m.SetGraph(host.GraphInfo{Name: g.Name, Path: g.Dir})
	for _, p := range g.Pages() {
		m.AddPage(p.Page, p.Blocks)
	}
}

// Memory returns a fresh in-memory host holding the graph. The current page
// is the most recent journal, or the first page when there are none.
func (g *Graph) Memory(cfg model.HostConfig) *host.Memory {
	m := host.NewMemory()
	m.SetConfig(cfg)
	g.Populate(m)
	if cur := g.defaultPage(); cur != "" {
		_ = m.NavigateToPage(context.Background(), cur)
	}
	return m
}

func (g *Graph) defaultPage() string {
	var first, journal string
	var journalRel string
	for _, p := range g.Pages() {
		if first == "" {
			first = p.Page.Name
		}
		if p.Page.Journal && p.Rel > journalRel {
			journal, journalRel = p.Page.Name, p.Rel
		}
	}
	if journal != "" {
		return journal
	}
	return first
}
