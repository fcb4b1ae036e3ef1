package server

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/vanderheijden86/blockmap/pkg/export"
	"github.com/vanderheijden86/blockmap/pkg/host"
	"github.com/vanderheijden86/blockmap/pkg/keys"
	"github.com/vanderheijden86/blockmap/pkg/loader"
	"github.com/vanderheijden86/blockmap/pkg/metrics"
	"github.com/vanderheijden86/blockmap/pkg/pipeline"
	"github.com/vanderheijden86/blockmap/pkg/render"
)

var errNothingRendered = errors.New("nothing rendered yet")

// State is the JSON summary of the current map.
type State struct {
	Generation uint64 `json:"generation"`
	Title      string `json:"title"`
	Request    string `json:"request"`
	State      string `json:"state"`
	Level      int    `json:"level"`
	Levels     int    `json:"levels"`
	Root       string `json:"root"`
}

type errorBody struct {
	Error string `json:"error"`
}

type renderBody struct {
	Mode   string `json:"mode"`
	Target string `json:"target"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// state returns the summary of the last render, or false before the first.
func (s *Server) state() (State, bool) {
	last := s.renderer.Last()
	sess := s.renderer.Session()
	if last == nil || sess == nil {
		return State{}, false
	}
	cur, total := sess.Levels()
	st := State{
		Generation: last.Generation,
		Title:      last.Document.Title,
		Request:    last.Request.String(),
		State:      sess.State().String(),
		Level:      cur,
		Levels:     total,
	}
	if root := sess.Root(); root != nil {
		st.Root = root.Label
	}
	return st, true
}

func (s *Server) svgInstance() (*render.SVGInstance, error) {
	inst, ok := s.bridge.Instance().(*render.SVGInstance)
	if !ok || inst == nil {
		return nil, errNothingRendered
	}
	return inst, nil
}

// snapshotSVG returns the current view as SVG.
func (s *Server) snapshotSVG() ([]byte, error) {
	inst, err := s.svgInstance()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var buf bytes.Buffer
	if err := inst.WriteSVG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, ok := s.state()
	if !ok {
		writeError(w, http.StatusNotFound, errNothingRendered)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	sess := s.renderer.Session()
	if sess == nil {
		writeError(w, http.StatusNotFound, errNothingRendered)
		return
	}
	root := sess.Root()
	if r.URL.Query().Get("full") == "1" {
		root = sess.Original()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := export.WriteTree(w, root); err != nil {
		s.log.Warning("write tree", "err", err)
	}
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	last := s.renderer.Last()
	if last == nil {
		writeError(w, http.StatusNotFound, errNothingRendered)
		return
	}
	if r.URL.Query().Get("format") == "outline" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(export.Outline(s.renderer.Session().Root(), true)))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(last.Document.Text))
}

func (s *Server) handleKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.keyTable())
}

// keyTable maps each bound key to its command name.
func (s *Server) keyTable() map[string]string {
	out := make(map[string]string)
	for _, c := range keys.Commands {
		if c == keys.ToggleHelp || c == keys.Dismiss {
			continue
		}
		for _, k := range s.keymap.Binding(c).Keys() {
			out[k] = string(c)
		}
	}
	return out
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": metrics.Enabled(),
		"timings": metrics.Snapshot(),
		"clients": s.hub.len(),
	})
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("content") == "1" {
		inst, err := s.svgInstance()
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := inst.WriteContentSVG(w, export.DefaultMargin); err != nil {
			s.log.Warning("write svg", "err", err)
		}
		return
	}
	data, err := s.snapshotSVG()
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(data)
}

func (s *Server) handlePNG(w http.ResponseWriter, r *http.Request) {
	inst, err := s.svgInstance()
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	var buf bytes.Buffer
	s.mu.Lock()
	err = render.WritePNG(&buf, inst, export.DefaultMargin)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var body renderBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	mode, err := pipeline.ParseMode(body.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := s.renderer.Render(r.Context(), pipeline.Request{Mode: mode, Target: body.Target}); err != nil {
		writeError(w, renderStatus(err), err)
		return
	}
	st, _ := s.state()
	writeJSON(w, http.StatusOK, st)
}

func renderStatus(err error) int {
	switch {
	case errors.Is(err, host.ErrNotFound), errors.Is(err, loader.ErrNoLinkedReferences):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrSuperseded):
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if err := s.runCommand(chi.URLParam(r, "name")); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errNothingRendered) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	st, _ := s.state()
	writeJSON(w, http.StatusOK, st)
}

// runCommand applies a navigation command to the live session and pushes
// the new view to clients.
func (s *Server) runCommand(name string) error {
	cmd, err := keys.ParseCommand(name)
	if err != nil {
		return err
	}
	sess := s.renderer.Session()
	if sess == nil {
		return errNothingRendered
	}
	s.mu.Lock()
	err = keys.Apply(sess, cmd, s.steps)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.broadcast()
	return nil
}
