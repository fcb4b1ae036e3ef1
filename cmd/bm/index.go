package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vanderheijden86/blockmap/internal/datasource"
)

// errIndexStale is returned by `bm index --check` when the index and the
// graph directory disagree.
var errIndexStale = errors.New("index is out of date")

// progress reports scan progress: a bar on terminals, nothing otherwise.
type progress interface {
	Add(n int) error
	Finish() error
}

type silentProgress struct{}

func (silentProgress) Add(int) error { return nil }
func (silentProgress) Finish() error { return nil }

func newProgress(w io.Writer, total int, interactive bool) progress {
	if !interactive {
		return silentProgress{}
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Indexing notes"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func newIndexCmd(g *globalFlags) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the SQLite index of a graph directory",
		Long: `Index parses every note of the graph directory and stores pages and
blocks in the index database. Later commands read the index when it is at
least as fresh as the notes. --check compares instead of writing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(g)
			if err != nil {
				return err
			}
			defer a.close()
			if a.cfg.GraphDir == "" {
				return fmt.Errorf("no graph directory: pass --graph or set graph_dir")
			}
			f, err := a.filter()
			if err != nil {
				return err
			}
			rels, err := datasource.ListNotes(a.cfg.GraphDir, f)
			if err != nil {
				return err
			}

			start := time.Now()
			bar := newProgress(cmd.ErrOrStderr(), len(rels), isTerminal(os.Stderr))
			graph, err := datasource.Scan(cmd.Context(), a.cfg.GraphDir, f, datasource.ScanOptions{
				Concurrency: a.cfg.Concurrency,
				OnFile:      func(string) { _ = bar.Add(1) },
			})
			_ = bar.Finish()
			if err != nil {
				return err
			}
			for _, fe := range graph.Errors() {
				a.log.Warning("skipping note", "file", fe.Rel, "err", fe.Err)
			}

			dbPath := a.cfg.DatabasePath()
			if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
				return fmt.Errorf("creating index directory: %w", err)
			}
			st, err := datasource.OpenStore(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			if check {
				diff, err := datasource.CompareIndex(cmd.Context(), graph, st)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, diff.Summary())
				if diff.HasInconsistencies() {
					return errIndexStale
				}
				return nil
			}

			stats, err := st.WriteGraph(cmd.Context(), graph, a.cfg.Host)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "indexed %d pages, %d blocks into %s in %s\n",
				stats.Pages, stats.Blocks, dbPath, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "compare the index with the graph instead of writing")
	return cmd
}
