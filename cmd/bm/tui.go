package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/blockmap/internal/datasource"
	"github.com/vanderheijden86/blockmap/pkg/host"
	"github.com/vanderheijden86/blockmap/pkg/pipeline"
	"github.com/vanderheijden86/blockmap/pkg/render"
	"github.com/vanderheijden86/blockmap/pkg/ui"
)

func newTUICmd(g *globalFlags) *cobra.Command {
	var (
		mode  string
		pick  bool
		watch bool
		out   string
	)
	cmd := &cobra.Command{
		Use:   "tui [target]",
		Short: "Explore a map in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := setup(ctx, g)
			if err != nil {
				return err
			}
			defer a.close()

			if pick {
				page, err := pickPage(ctx, a)
				if err != nil {
					return err
				}
				args = []string{page}
				if mode == "" {
					mode = string(pipeline.ModePage)
				}
			}
			req, err := requestFor(mode, args)
			if err != nil {
				return err
			}

			view, err := a.viewOptions()
			if err != nil {
				return err
			}
			km, err := a.cfg.KeyMap()
			if err != nil {
				return err
			}
			engine := ui.NewTermEngine(80, 22)
			r := a.renderer(render.NewBridge(engine, view), true)

			var events <-chan host.Event
			if a.src.Memory != nil {
				events = a.src.Memory.Subscribe(ctx)
			}
			var changes <-chan []string
			if watch {
				ch, stop, err := a.watchGraph(ctx)
				if err != nil {
					a.log.Warning("live reload disabled", "err", err)
				} else {
					defer stop()
					changes = ch
				}
			}

			m := ui.NewModel(ctx, ui.Options{
				Renderer:  r,
				Engine:    engine,
				Keys:      km,
				View:      view,
				Request:   req,
				Events:    events,
				Changes:   changes,
				ExportDir: out,
			})
			return runTUIProgram(m)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&mode, "mode", "m", "", "render mode: current, page, block, selection, linked, namespace")
	f.BoolVarP(&pick, "pick", "p", false, "choose the page from a list")
	f.BoolVarP(&watch, "watch", "w", true, "re-render when notes change")
	f.StringVarP(&out, "out", "o", "", "directory for saved images (default: working directory)")
	return cmd
}

// pageNames lists the pages of the open source.
func pageNames(ctx context.Context, a *app) ([]string, error) {
	switch rd := a.src.Reader.(type) {
	case *host.Memory:
		return rd.PageNames(), nil
	case *datasource.Store:
		return rd.PageNames(ctx)
	}
	return nil, nil
}

func pickPage(ctx context.Context, a *app) (string, error) {
	pages, err := pageNames(ctx, a)
	if err != nil {
		return "", err
	}
	favorites, err := a.src.Reader.Favorites(ctx)
	if err != nil {
		a.log.HostError("favorites", err)
	}
	return ui.PickPage(pages, favorites)
}

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// Graceful shutdown on SIGINT/SIGTERM, forced on a second signal.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}
		p.Quit()
		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}
		p.Kill()
	}()

	// Automated tests set BM_TUI_AUTOCLOSE_MS to quit on their own.
	if v := os.Getenv("BM_TUI_AUTOCLOSE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			go func() {
				timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
				defer timer.Stop()
				select {
				case <-runDone:
					return
				case <-timer.C:
				}
				p.Quit()
				select {
				case <-runDone:
					return
				case <-time.After(2 * time.Second):
				}
				p.Kill()
			}()
		}
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}
