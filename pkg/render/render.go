// Package render keeps a rendering engine instance in sync with the visible
// node tree.
//
// An Engine creates an Instance once; afterwards the Bridge only pushes new
// data into it. The instance owns the viewport transform, so zooming and
// panning never touch the node tree.
package render

import (
	"errors"
	"sync"

	"github.com/vanderheijden86/blockmap/pkg/model"
)

// ErrNoInstance is returned by viewport operations before the first Sync.
var ErrNoInstance = errors.New("render instance not created")

// ViewOptions configures an engine instance.
type ViewOptions struct {
	Width       float64 `yaml:"width" koanf:"width"`
	Height      float64 `yaml:"height" koanf:"height"`
	MaxWidth    int     `yaml:"max_width" koanf:"max_width"` // label width in characters
	SpacingH    float64 `yaml:"spacing_horizontal" koanf:"spacing_horizontal"`
	SpacingV    float64 `yaml:"spacing_vertical" koanf:"spacing_vertical"`
	AutoFit     bool    `yaml:"auto_fit" koanf:"auto_fit"`
	ZoomStep    float64 `yaml:"zoom_step" koanf:"zoom_step"`
	PanStep     float64 `yaml:"pan_step" koanf:"pan_step"`
	Background  string  `yaml:"background" koanf:"background"`
	Foreground  string  `yaml:"foreground" koanf:"foreground"`
	FreezeLevel int     `yaml:"color_freeze_level" koanf:"color_freeze_level"`
}

// DefaultViewOptions returns the options used when none are configured.
func DefaultViewOptions() ViewOptions {
	return ViewOptions{
		Width:      1200,
		Height:     800,
		MaxWidth:   40,
		SpacingH:   80,
		SpacingV:   8,
		AutoFit:    true,
		ZoomStep:   1.25,
		PanStep:    100,
		Background: "#ffffff",
		Foreground: "#1f2937",
	}
}

// Transform is a viewport transform: translate by (X, Y), then scale by K.
type Transform struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	K float64 `json:"k"`
}

// Rect is an axis-aligned box.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Instance is a live visual of one node tree.
type Instance interface {
	SetData(root *model.Node) error
	Fit() error
	Rescale(factor float64) error
	Pan(dx, dy float64) error
	Transform() Transform
	Bounds() Rect
}

// Engine creates instances.
type Engine interface {
	Create(root *model.Node, opts ViewOptions) (Instance, error)
}

// Bridge creates the engine instance on the first Sync and updates it on
// every later one.
type Bridge struct {
	mu     sync.Mutex
	engine Engine
	opts   ViewOptions
	inst   Instance
	syncs  int
}

// NewBridge returns a bridge for e.
func NewBridge(e Engine, opts ViewOptions) *Bridge {
	return &Bridge{engine: e, opts: opts}
}

// Sync pushes root to the instance, creating it if needed.
func (b *Bridge) Sync(root *model.Node) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.syncs++
	if b.inst == nil {
		inst, err := b.engine.Create(root, b.opts)
		if err != nil {
			return err
		}
		b.inst = inst
		if b.opts.AutoFit {
			return inst.Fit()
		}
		return nil
	}
	if err := b.inst.SetData(root); err != nil {
		return err
	}
	if b.opts.AutoFit {
		return b.inst.Fit()
	}
	return nil
}

// Instance returns the live instance, or nil before the first Sync.
func (b *Bridge) Instance() Instance {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inst
}

// Options returns the view options.
func (b *Bridge) Options() ViewOptions {
	return b.opts
}

// Syncs returns how many times Sync ran.
func (b *Bridge) Syncs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.syncs
}
