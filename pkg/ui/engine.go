package ui

import (
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/blockmap/pkg/model"
	"github.com/vanderheijden86/blockmap/pkg/render"
)

// TermEngine draws mind maps into a character grid. Its size is in terminal
// cells; one cell is render.CharWidth by render.LineHeight layout units.
type TermEngine struct {
	mu         sync.Mutex
	cols, rows int
	inst       *TermInstance
}

var _ render.Engine = (*TermEngine)(nil)

// NewTermEngine returns an engine for a cols x rows view.
func NewTermEngine(cols, rows int) *TermEngine {
	return &TermEngine{cols: cols, rows: rows}
}

// Create implements render.Engine.
func (e *TermEngine) Create(root *model.Node, opts render.ViewOptions) (render.Instance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inst := &TermInstance{opts: opts}
	inst.Viewport = render.NewViewport(float64(e.cols)*render.CharWidth, float64(e.rows)*render.LineHeight)
	if err := inst.SetData(root); err != nil {
		return nil, err
	}
	e.inst = inst
	return inst, nil
}

// Resize changes the view size, including the live instance.
func (e *TermEngine) Resize(cols, rows int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cols, e.rows = cols, rows
	if e.inst != nil {
		e.inst.resize(cols, rows)
	}
}

// Instance returns the instance created last, or nil.
func (e *TermEngine) Instance() *TermInstance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inst
}

// TermInstance is the terminal render.Instance.
type TermInstance struct {
	mu     sync.Mutex
	opts   render.ViewOptions
	layout render.Layout
	render.Viewport
}

// SetData implements render.Instance.
func (t *TermInstance) SetData(root *model.Node) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.layout = render.ComputeLayout(root, t.opts)
	t.Content = t.layout.Bounds
	return nil
}

func (t *TermInstance) resize(cols, rows int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.W = float64(cols) * render.CharWidth
	t.H = float64(rows) * render.LineHeight
}

// Layout returns the current layout.
func (t *TermInstance) Layout() render.Layout {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.layout
}

// cell is one grid position; branch -2 means blank.
type cell struct {
	r      rune
	branch int
	bold   bool
}

// Canvas is a rendered character grid.
type Canvas struct {
	Cols, Rows int
	cells      [][]cell
}

func newCanvas(cols, rows int) *Canvas {
	c := &Canvas{Cols: cols, Rows: rows, cells: make([][]cell, rows)}
	for y := range c.cells {
		c.cells[y] = make([]cell, cols)
		for x := range c.cells[y] {
			c.cells[y][x] = cell{r: ' ', branch: -2}
		}
	}
	return c
}

func (c *Canvas) set(x, y int, r rune, branch int, bold bool) {
	if x < 0 || y < 0 || x >= c.Cols || y >= c.Rows {
		return
	}
	c.cells[y][x] = cell{r: r, branch: branch, bold: bold}
}

// text writes s from (x, y). Wide runes take two cells; the second holds 0.
func (c *Canvas) text(x, y int, s string, branch int, bold bool) {
	for _, r := range s {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		c.set(x, y, r, branch, bold)
		if w == 2 {
			c.set(x+1, y, 0, branch, bold)
		}
		x += w
	}
}

// Plain returns the grid as text without styling.
func (c *Canvas) Plain() string {
	lines := make([]string, c.Rows)
	for y, row := range c.cells {
		var sb strings.Builder
		for _, cl := range row {
			if cl.r != 0 {
				sb.WriteRune(cl.r)
			}
		}
		lines[y] = strings.TrimRight(sb.String(), " ")
	}
	return strings.Join(lines, "\n")
}

// Styled returns the grid with runs of the same branch colored by theme.
func (c *Canvas) Styled(th Theme) string {
	lines := make([]string, c.Rows)
	for y, row := range c.cells {
		var sb strings.Builder
		var run strings.Builder
		cur := cell{branch: -2}
		flush := func() {
			if run.Len() == 0 {
				return
			}
			if cur.branch == -2 {
				sb.WriteString(run.String())
			} else {
				st := th.BranchStyle(cur.branch)
				if cur.bold {
					st = st.Bold(true)
				}
				sb.WriteString(st.Render(run.String()))
			}
			run.Reset()
		}
		for _, cl := range row {
			if cl.branch != cur.branch || cl.bold != cur.bold {
				flush()
				cur = cl
			}
			if cl.r != 0 {
				run.WriteRune(cl.r)
			}
		}
		flush()
		lines[y] = sb.String()
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// Draw renders the visible part of the layout under the current transform.
// Labels keep their size when zoomed; only positions scale.
func (t *TermInstance) Draw() *Canvas {
	t.mu.Lock()
	defer t.mu.Unlock()
	cols := int(t.W / render.CharWidth)
	rows := int(t.H / render.LineHeight)
	c := newCanvas(max(cols, 0), max(rows, 0))
	tr := t.T

	toCell := func(x, y float64) (int, int) {
		sx := x*tr.K + tr.X
		sy := y*tr.K + tr.Y
		return int(math.Round(sx / render.CharWidth)), int(math.Round(sy / render.LineHeight))
	}

	l := t.layout
	// connectors first so labels overwrite them
	for _, b := range l.Boxes {
		if b.Parent < 0 {
			continue
		}
		p := l.Boxes[b.Parent]
		px, py := toCell(p.X+p.W, p.Y)
		cx, cy := toCell(b.X, b.Y)
		mid := px + (cx-px)/2
		for x := px; x < mid; x++ {
			c.set(x, py, '─', b.Branch, false)
		}
		lo, hi := py, cy
		if lo > hi {
			lo, hi = hi, lo
		}
		for y := lo; y <= hi; y++ {
			c.set(mid, y, '│', b.Branch, false)
		}
		switch {
		case cy < py:
			c.set(mid, cy, '╭', b.Branch, false)
		case cy > py:
			c.set(mid, cy, '╰', b.Branch, false)
		default:
			c.set(mid, cy, '─', b.Branch, false)
		}
		for x := mid + 1; x < cx; x++ {
			c.set(x, cy, '─', b.Branch, false)
		}
	}
	for _, b := range l.Boxes {
		x, y := toCell(b.X, b.Y)
		text := " " + b.Text + " "
		if b.Folded {
			text += "⊕"
		}
		c.text(x, y, text, b.Branch, b.Depth == 0)
	}
	return c
}

// Fit implements render.Instance.
func (t *TermInstance) Fit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Viewport.Fit()
}

// Rescale implements render.Instance.
func (t *TermInstance) Rescale(factor float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Viewport.Rescale(factor)
}

// Pan implements render.Instance.
func (t *TermInstance) Pan(dx, dy float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Viewport.Pan(dx, dy)
}

// Transform implements render.Instance.
func (t *TermInstance) Transform() render.Transform {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Viewport.Transform()
}

// Bounds implements render.Instance.
func (t *TermInstance) Bounds() render.Rect {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.Viewport.Bounds()
}
