package render

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/blockmap/pkg/metrics"
	"github.com/vanderheijden86/blockmap/pkg/model"
	"github.com/vanderheijden86/blockmap/pkg/transform"
)

// Layout units. One terminal cell is CharWidth by LineHeight.
const (
	CharWidth  = 7.0
	LineHeight = 20.0
	boxPadding = 8.0
)

// Box is one visible node placed by Layout.
type Box struct {
	Node   *model.Node
	Text   string
	X, Y   float64
	W, H   float64
	Depth  int
	Parent int // index into Layout.Boxes, -1 for the root
	Branch int // index of the first-level branch, -1 for the root
	// Folded is set when the node hides children.
	Folded bool
}

// Layout is a horizontal tidy tree of the visible nodes.
type Layout struct {
	Boxes  []Box
	Bounds Rect
}

// DisplayText returns the first visible line of a node label, truncated to
// maxWidth terminal cells.
func DisplayText(label string, maxWidth int) string {
	var s string
	for _, line := range strings.Split(label, "\n") {
		if s = transform.PlainText(line); s != "" {
			break
		}
	}
	if maxWidth > 0 && runewidth.StringWidth(s) > maxWidth {
		s = runewidth.Truncate(s, maxWidth, "…")
	}
	return s
}

// ComputeLayout places the nodes reachable from root without entering
// folded nodes.
func ComputeLayout(root *model.Node, opts ViewOptions) Layout {
	defer metrics.Timer(metrics.Layout)()
	var l Layout
	if root == nil {
		return l
	}

	var colW []float64
	var collect func(n *model.Node, depth, parent, branch int)
	collect = func(n *model.Node, depth, parent, branch int) {
		text := DisplayText(n.Label, opts.MaxWidth)
		w := float64(runewidth.StringWidth(text))*CharWidth + 2*boxPadding
		if depth >= len(colW) {
			colW = append(colW, 0)
		}
		if w > colW[depth] {
			colW[depth] = w
		}
		idx := len(l.Boxes)
		l.Boxes = append(l.Boxes, Box{
			Node: n, Text: text, W: w, H: LineHeight,
			Depth: depth, Parent: parent, Branch: branch,
			Folded: n.Fold && n.HasChildren(),
		})
		if n.Fold {
			return
		}
		for i, c := range n.Children {
			b := branch
			if depth == 0 {
				b = i
			}
			collect(c, depth+1, idx, b)
		}
	}
	collect(root, 0, -1, -1)

	colX := make([]float64, len(colW))
	for d := 1; d < len(colW); d++ {
		colX[d] = colX[d-1] + colW[d-1] + opts.SpacingH
	}

	children := make([][]int, len(l.Boxes))
	for i, b := range l.Boxes {
		if b.Parent >= 0 {
			children[b.Parent] = append(children[b.Parent], i)
		}
	}

	cursor := 0.0
	var place func(i int)
	place = func(i int) {
		b := &l.Boxes[i]
		b.X = colX[b.Depth]
		kids := children[i]
		if len(kids) == 0 {
			b.Y = cursor
			cursor += b.H + opts.SpacingV
			return
		}
		for _, k := range kids {
			place(k)
		}
		b.Y = (l.Boxes[kids[0]].Y + l.Boxes[kids[len(kids)-1]].Y) / 2
	}
	place(0)

	maxX, maxY := 0.0, 0.0
	for _, b := range l.Boxes {
		if r := b.X + b.W; r > maxX {
			maxX = r
		}
		if bt := b.Y + b.H; bt > maxY {
			maxY = bt
		}
	}
	l.Bounds = Rect{W: maxX, H: maxY}
	return l
}
