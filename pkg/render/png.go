package render

import (
	"image/png"
	"io"

	"git.sr.ht/~sbinet/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/blockmap/pkg/metrics"
	"github.com/vanderheijden86/blockmap/pkg/transform"
)

// WritePNG rasterizes the whole content of inst at 1:1 with the given margin.
func WritePNG(w io.Writer, inst *SVGInstance, margin float64) error {
	defer metrics.Timer(metrics.WritePNG)()
	l := inst.Layout()
	opts := inst.opts
	width := int(l.Bounds.W + 2*margin)
	height := int(l.Bounds.H + 2*margin)
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	dc := gg.NewContext(width, height)
	dc.SetColor(parseColor(opts.Background, gray(0xff)))
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)
	dc.Translate(margin, margin)

	dc.SetLineWidth(1.5)
	for _, b := range l.Boxes {
		if b.Parent < 0 {
			continue
		}
		p := l.Boxes[b.Parent]
		x1, y1 := p.X+p.W, p.Y+p.H/2
		x2, y2 := b.X, b.Y+b.H/2
		mid := (x1 + x2) / 2
		dc.SetColor(BranchColor(b.Branch))
		dc.NewSubPath()
		dc.MoveTo(x1, y1)
		dc.CubicTo(mid, y1, mid, y2, x2, y2)
		dc.Stroke()
	}

	fg := parseColor(opts.Foreground, gray(0x1f))
	for _, b := range l.Boxes {
		line := BranchColor(b.Branch)
		text := fg
		if fill := b.Node.Options.BackgroundColor; fill != "" {
			dc.SetColor(parseColor(fill, fg))
			dc.DrawRectangle(b.X, b.Y, b.W, b.H)
			dc.Fill()
			text = parseColor(transform.ForegroundFor(fill), fg)
		}
		dc.SetColor(line)
		dc.DrawLine(b.X, b.Y+b.H, b.X+b.W, b.Y+b.H)
		dc.Stroke()
		dc.SetColor(text)
		dc.DrawStringAnchored(b.Text, b.X+boxPadding, b.Y+b.H/2, 0, 0.5)
		if b.Folded {
			dc.SetColor(line)
			dc.DrawCircle(b.X+b.W, b.Y+b.H, 4)
			dc.Fill()
		}
	}
	return png.Encode(w, dc.Image())
}
