// Package server serves a live mind map over HTTP. Browsers get the map as
// SVG plus the outline, send navigation commands, and receive updates over a
// websocket whenever the map changes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vanderheijden86/blockmap/pkg/keys"
	"github.com/vanderheijden86/blockmap/pkg/logging"
	"github.com/vanderheijden86/blockmap/pkg/pipeline"
	"github.com/vanderheijden86/blockmap/pkg/render"
)

// Config holds server configuration.
type Config struct {
	Addr     string
	AllowAll bool // allow all CORS origins
}

// Server is the live-view HTTP server.
type Server struct {
	cfg      Config
	renderer *pipeline.Renderer
	bridge   *render.Bridge
	keymap   keys.KeyMap
	steps    keys.Steps
	log      *logging.Logger
	hub      *hub

	// mu serializes commands and SVG snapshots against each other.
	mu         sync.Mutex
	router     chi.Router
	httpServer *http.Server
}

// New returns a server for renderer. bridge must be the bridge renderer
// draws through; the server reads SVG snapshots from its instance.
func New(cfg Config, renderer *pipeline.Renderer, bridge *render.Bridge, km keys.KeyMap, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	view := bridge.Options()
	s := &Server{
		cfg:      cfg,
		renderer: renderer,
		bridge:   bridge,
		keymap:   km,
		steps:    keys.Steps{Zoom: view.ZoomStep, Pan: view.PanStep},
		log:      logger,
		hub:      newHub(logger),
	}
	renderer.OnResult(func(*pipeline.Result) { s.broadcast() })
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	corsOpts := cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/", s.handlePage)
	r.Get("/ws", s.handleWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Get("/state", s.handleState)
		r.Get("/tree", s.handleTree)
		r.Get("/document", s.handleDocument)
		r.Get("/keys", s.handleKeys)
		r.Get("/metrics", s.handleMetrics)
		r.Get("/map.svg", s.handleSVG)
		r.Get("/map.png", s.handlePNG)
		r.Post("/render", s.handleRender)
		r.Post("/command/{name}", s.handleCommand)
	})
	return r
}

// requestLogger logs each request through the operational logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "took", time.Since(start))
	})
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	addr := s.cfg.Addr
	if addr == "" {
		addr = "127.0.0.1:7878"
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.log.Info(fmt.Sprintf("serving on http://%s", addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown closes websocket clients and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int { return s.hub.len() }
