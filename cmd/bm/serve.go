package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/blockmap/internal/server"
	"github.com/vanderheijden86/blockmap/pkg/render"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		addr     string
		mode     string
		allowAll bool
		watch    bool
	)
	cmd := &cobra.Command{
		Use:   "serve [target]",
		Short: "Serve a live map to the browser",
		Long: `Serve renders the target and serves it over HTTP. The page receives every
new render and navigation change over a websocket; keys pressed in the page
drive the map.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := requestFor(mode, args)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, g)
			if err != nil {
				return err
			}
			defer a.close()

			view, err := a.viewOptions()
			if err != nil {
				return err
			}
			km, err := a.cfg.KeyMap()
			if err != nil {
				return err
			}
			bridge := render.NewBridge(render.SVGEngine{}, view)
			r := a.renderer(bridge, true)

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			srv := server.New(server.Config{Addr: addr, AllowAll: allowAll}, r, bridge, km, a.log)

			if _, err := r.Render(ctx, req); err != nil {
				a.log.Warning("initial render failed", "err", err)
			}
			if a.src.Memory != nil {
				go func() { _ = r.Run(ctx, a.src.Memory.Subscribe(ctx)) }()
			}
			if watch {
				changes, stopWatch, err := a.watchGraph(ctx)
				if err != nil {
					a.log.Warning("live reload disabled", "err", err)
				} else {
					defer stopWatch()
					go func() {
						for range changes {
							if _, err := r.Rerender(ctx); err != nil {
								a.log.Warning("re-render failed", "err", err)
							}
						}
					}()
				}
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()
			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:7878)")
	f.StringVarP(&mode, "mode", "m", "", "render mode of the initial map")
	f.BoolVar(&allowAll, "allow-all-origins", false, "allow cross-origin requests from anywhere")
	f.BoolVarP(&watch, "watch", "w", true, "re-render when notes change")
	return cmd
}
