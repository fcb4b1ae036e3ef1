package render

import (
	"fmt"
	"io"
	"sync"

	svg "github.com/ajstarks/svgo"

	"github.com/vanderheijden86/blockmap/pkg/metrics"
	"github.com/vanderheijden86/blockmap/pkg/model"
	"github.com/vanderheijden86/blockmap/pkg/transform"
)

// SVGEngine renders node trees as static SVG documents.
type SVGEngine struct{}

// Create implements Engine.
func (SVGEngine) Create(root *model.Node, opts ViewOptions) (Instance, error) {
	inst := &SVGInstance{opts: opts, Viewport: NewViewport(opts.Width, opts.Height)}
	if err := inst.SetData(root); err != nil {
		return nil, err
	}
	return inst, nil
}

// SVGInstance is the live state of one SVG view.
type SVGInstance struct {
	Viewport

	mu     sync.Mutex
	opts   ViewOptions
	root   *model.Node
	layout Layout
}

// SetData implements Instance.
func (s *SVGInstance) SetData(root *model.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = root
	s.layout = ComputeLayout(root, s.opts)
	s.Content = s.layout.Bounds
	return nil
}

// Layout returns the current layout.
func (s *SVGInstance) Layout() Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.layout
}

// WriteSVG writes the view as a standalone SVG document.
func (s *SVGInstance) WriteSVG(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeSVG(w, s.layout, s.T, s.opts)
}

// WriteContentSVG writes the whole content at 1:1 regardless of the
// viewport, sized to fit it. Exports use this.
func (s *SVGInstance) WriteContentSVG(w io.Writer, margin float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	opts := s.opts
	opts.Width = s.layout.Bounds.W + 2*margin
	opts.Height = s.layout.Bounds.H + 2*margin
	return writeSVG(w, s.layout, Transform{X: margin, Y: margin, K: 1}, opts)
}

func writeSVG(w io.Writer, l Layout, t Transform, opts ViewOptions) error {
	defer metrics.Timer(metrics.WriteSVG)()
	bg := parseColor(opts.Background, gray(0xff))
	fg := parseColor(opts.Foreground, gray(0x1f))

	canvas := svg.New(w)
	canvas.Start(int(opts.Width), int(opts.Height))
	canvas.Rect(0, 0, int(opts.Width), int(opts.Height), fmt.Sprintf("fill:%s", css(bg)))
	canvas.Gtransform(fmt.Sprintf("translate(%.2f,%.2f) scale(%.4f)", t.X, t.Y, t.K))

	for _, b := range l.Boxes {
		if b.Parent < 0 {
			continue
		}
		p := l.Boxes[b.Parent]
		x1, y1 := int(p.X+p.W), int(p.Y+p.H/2)
		x2, y2 := int(b.X), int(b.Y+b.H/2)
		mid := (x1 + x2) / 2
		canvas.Bezier(x1, y1, mid, y1, mid, y2, x2, y2,
			fmt.Sprintf("fill:none;stroke:%s;stroke-width:1.5", css(BranchColor(b.Branch))))
	}

	for _, b := range l.Boxes {
		x, y := int(b.X), int(b.Y)
		line := BranchColor(b.Branch)
		canvas.Line(x, y+int(b.H), x+int(b.W), y+int(b.H), fmt.Sprintf("stroke:%s;stroke-width:1.5", css(line)))
		text := css(fg)
		if fill := b.Node.Options.BackgroundColor; fill != "" {
			canvas.Rect(x, y, int(b.W), int(b.H), fmt.Sprintf("fill:%s", fill))
			text = transform.ForegroundFor(fill)
		}
		style := fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", text)
		if b.Depth == 0 {
			style += ";font-weight:bold"
		}
		if b.Node.BlockUUID != "" {
			canvas.Link("block:"+b.Node.BlockUUID, b.Text)
			canvas.Text(x+int(boxPadding), y+14, b.Text, style)
			canvas.LinkEnd()
		} else {
			canvas.Text(x+int(boxPadding), y+14, b.Text, style)
		}
		if b.Folded {
			canvas.Circle(x+int(b.W), y+int(b.H), 4, fmt.Sprintf("fill:%s;stroke:%s", css(line), css(line)))
		}
	}

	canvas.Gend()
	canvas.End()
	return nil
}
