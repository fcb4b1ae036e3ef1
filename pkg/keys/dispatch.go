package keys

import (
	"errors"
	"sync"

	"github.com/vanderheijden86/blockmap/pkg/debug"
	"github.com/vanderheijden86/blockmap/pkg/nav"
)

// SessionSource hands out the navigation session of the most recent render.
type SessionSource interface {
	Session() *nav.Session
}

// Steps are the viewport increments for zoom and pan commands.
type Steps struct {
	Zoom float64
	Pan  float64
}

// Dispatcher resolves keys and applies them, honoring open overlays.
type Dispatcher struct {
	mu       sync.Mutex
	keys     KeyMap
	src      SessionSource
	steps    Steps
	help     bool
	lightbox bool
}

// NewDispatcher returns a dispatcher with no overlay open.
func NewDispatcher(keys KeyMap, src SessionSource, steps Steps) *Dispatcher {
	if steps.Zoom <= 1 {
		steps.Zoom = 1.25
	}
	if steps.Pan <= 0 {
		steps.Pan = 100
	}
	return &Dispatcher{keys: keys, src: src, steps: steps}
}

// HelpOpen reports whether the help overlay is shown.
func (d *Dispatcher) HelpOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.help
}

// LightboxOpen reports whether an image lightbox is shown.
func (d *Dispatcher) LightboxOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lightbox
}

// OpenLightbox marks the lightbox as shown.
func (d *Dispatcher) OpenLightbox() {
	d.mu.Lock()
	d.lightbox = true
	d.mu.Unlock()
}

// CloseOverlays closes help and lightbox. Used when the surface is opened.
func (d *Dispatcher) CloseOverlays() {
	d.mu.Lock()
	d.help, d.lightbox = false, false
	d.mu.Unlock()
}

// Dispatch resolves k and applies it. It returns the command that ran, or
// None when the key is unbound or gated by an overlay. Dismiss with no
// overlay open is returned to the caller to hide the surface.
func (d *Dispatcher) Dispatch(k string) (Command, error) {
	cmd := d.keys.Resolve(k)
	if cmd == None {
		return None, nil
	}

	d.mu.Lock()
	switch {
	case d.lightbox:
		if cmd != Dismiss {
			d.mu.Unlock()
			return None, nil
		}
		d.lightbox = false
		d.mu.Unlock()
		return cmd, nil
	case d.help:
		switch cmd {
		case Dismiss, ToggleHelp:
			d.help = false
			d.mu.Unlock()
			return cmd, nil
		}
		d.mu.Unlock()
		return None, nil
	case cmd == ToggleHelp:
		d.help = true
		d.mu.Unlock()
		return cmd, nil
	}
	d.mu.Unlock()

	if cmd == Dismiss {
		return cmd, nil
	}
	var s *nav.Session
	if d.src != nil {
		s = d.src.Session()
	}
	if s == nil {
		debug.Log("keys: %s ignored, nothing rendered", cmd)
		return None, nil
	}
	return cmd, Apply(s, cmd, d.steps)
}

// Apply runs a navigation or viewport command against s.
func Apply(s *nav.Session, cmd Command, steps Steps) error {
	if lvl, ok := cmd.Level(); ok {
		return s.SetLevel(lvl)
	}
	switch cmd {
	case FocusIn:
		if err := s.FocusIn(s.Root()); !errors.Is(err, nav.ErrNoChildren) {
			return err
		}
		return nil
	case FocusOut:
		return s.FocusOut()
	case FocusNext:
		return s.FocusNext()
	case FocusPrevious:
		return s.FocusPrevious()
	case FocusReset:
		return s.FocusReset()
	case ExpandLevel:
		return s.ExpandLevel()
	case CollapseLevel:
		return s.CollapseLevel()
	case StepExpand:
		_, err := s.StepExpand()
		return err
	case StepCollapse:
		_, err := s.StepCollapse()
		return err
	case ZoomIn:
		return s.Zoom(steps.Zoom)
	case ZoomOut:
		return s.Zoom(1 / steps.Zoom)
	case PanUp:
		return s.Pan(0, steps.Pan)
	case PanDown:
		return s.Pan(0, -steps.Pan)
	case PanLeft:
		return s.Pan(steps.Pan, 0)
	case PanRight:
		return s.Pan(-steps.Pan, 0)
	case Fit:
		return s.Fit()
	}
	return nil
}
