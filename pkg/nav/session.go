// Package nav implements the navigation state machine over a rendered node
// tree: drilling into subtrees, stepping through siblings, and folding or
// unfolding levels.
//
// A Session owns all navigation state and the render bridge. Every mutating
// command re-renders synchronously before returning.
package nav

import (
	"errors"
	"sync"

	"github.com/vanderheijden86/blockmap/pkg/debug"
	"github.com/vanderheijden86/blockmap/pkg/mindmap"
	"github.com/vanderheijden86/blockmap/pkg/model"
	"github.com/vanderheijden86/blockmap/pkg/render"
)

// ErrNoChildren is returned by FocusIn for a leaf.
var ErrNoChildren = errors.New("node has no children")

// State is the coarse navigation state.
type State int

const (
	// Overview shows the whole tree; the focus stack is empty.
	Overview State = iota
	// Focused shows a subtree; the focus stack is not empty.
	Focused
)

func (s State) String() string {
	if s == Focused {
		return "focused"
	}
	return "overview"
}

// Frame is one focus-stack entry: the root and sibling position to restore.
type Frame struct {
	Root    *model.Node
	Pointer int
	Parent  *model.Node
}

// Syncer pushes a visible root to the rendering engine.
type Syncer interface {
	Sync(root *model.Node) error
	Instance() render.Instance
}

// Session is the navigation context of one render.
type Session struct {
	mu sync.Mutex

	bridge Syncer
	mode   model.CollapsedMode

	original      *model.Node
	originalTotal int

	root    *model.Node
	parent  *model.Node // node whose children pointer indexes; nil in overview
	pointer int
	stack   []Frame

	currentLevel int
	totalLevel   int
}

// NewSession seeds root's folds and returns a session in the overview state.
// It does not render; call Render for the first frame.
func NewSession(root *model.Node, bridge Syncer, mode model.CollapsedMode) *Session {
	cur, total := mindmap.Seed(root, mode)
	return &Session{
		bridge:        bridge,
		mode:          mode,
		original:      root,
		originalTotal: total,
		root:          root,
		currentLevel:  cur,
		totalLevel:    total,
	}
}

// Render pushes the visible root to the engine.
func (s *Session) Render() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.render()
}

func (s *Session) render() error {
	debug.Log("nav: render state=%s depth=%d pointer=%d level=%d/%d", s.state(), len(s.stack), s.pointer, s.currentLevel, s.totalLevel)
	if s.bridge == nil {
		return nil
	}
	return s.bridge.Sync(s.root)
}

// Root returns the visible root.
func (s *Session) Root() *model.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// Original returns the unfocused root of the render.
func (s *Session) Original() *model.Node {
	return s.original
}

// Pointer returns the sibling pointer at the top focus level.
func (s *Session) Pointer() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pointer
}

// StackDepth returns the number of focus frames.
func (s *Session) StackDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}

// State returns Overview or Focused.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state()
}

func (s *Session) state() State {
	if len(s.stack) == 0 {
		return Overview
	}
	return Focused
}

// Levels returns the current and total level counters.
func (s *Session) Levels() (current, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLevel, s.totalLevel
}

// FocusIn makes the first child of node the visible root and remembers the
// current position on the focus stack.
func (s *Session) FocusIn(node *model.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !node.HasChildren() {
		return ErrNoChildren
	}
	s.stack = append(s.stack, Frame{Root: s.root, Pointer: s.pointer, Parent: s.parent})
	s.parent = node
	s.pointer = 0
	s.root = node.Children[0]
	mindmap.Seed(s.root, s.mode)
	s.totalLevel--
	s.currentLevel = s.totalLevel
	return s.render()
}

// FocusOut restores the root and pointer saved by the matching FocusIn. It
// is a no-op in the overview state.
func (s *Session) FocusOut() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stack) == 0 {
		return nil
	}
	f := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	s.root, s.pointer, s.parent = f.Root, f.Pointer, f.Parent
	mindmap.Seed(s.root, s.mode)
	s.totalLevel++
	s.currentLevel = s.totalLevel
	return s.render()
}

// FocusNext shows the next sibling of the focused root.
func (s *Session) FocusNext() error {
	return s.step(1)
}

// FocusPrevious shows the previous sibling of the focused root.
func (s *Session) FocusPrevious() error {
	return s.step(-1)
}

func (s *Session) step(delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.parent == nil {
		return nil
	}
	p := s.pointer + delta
	if last := len(s.parent.Children) - 1; p > last {
		p = last
	}
	if p < 0 {
		p = 0
	}
	s.pointer = p
	s.root = s.parent.Children[p]
	return s.render()
}

// FocusReset returns to the overview of the original root.
func (s *Session) FocusReset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stack = nil
	s.parent = nil
	s.pointer = 0
	s.root = s.original
	s.totalLevel = s.originalTotal
	if s.currentLevel > s.totalLevel {
		s.currentLevel = s.totalLevel
	}
	return s.render()
}

// SetLevel folds everything below the visible root and then unfolds exactly
// n levels: 0 hides all children, totalLevel shows everything.
func (s *Session) SetLevel(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLevel(n)
	return s.render()
}

func (s *Session) setLevel(n int) {
	if n < 0 {
		n = 0
	}
	var walk func(node *model.Node, depth int)
	walk = func(node *model.Node, depth int) {
		node.Fold = node.HasChildren() && depth >= n
		for _, c := range node.Children {
			walk(c, depth+1)
		}
	}
	walk(s.root, 0)
	s.currentLevel = n
}

// ExpandLevel shows one more level.
func (s *Session) ExpandLevel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.currentLevel + 1
	if n > s.totalLevel {
		n = s.totalLevel
	}
	s.setLevel(n)
	return s.render()
}

// CollapseLevel shows one level less.
func (s *Session) CollapseLevel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLevel(s.currentLevel - 1)
	return s.render()
}

// StepExpand unfolds the first folded node in depth-first order, parents
// before children. It reports whether anything changed.
func (s *Session) StepExpand() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := firstFolded(s.root)
	if n == nil {
		return false, nil
	}
	n.Fold = false
	return true, s.render()
}

func firstFolded(n *model.Node) *model.Node {
	if n == nil || !n.HasChildren() {
		return nil
	}
	if n.Fold {
		return n
	}
	for _, c := range n.Children {
		if f := firstFolded(c); f != nil {
			return f
		}
	}
	return nil
}

// StepCollapse folds the first unfolded node in depth-first order, children
// before parents and last sibling first. It reports whether anything
// changed.
func (s *Session) StepCollapse() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := lastUnfolded(s.root)
	if n == nil {
		return false, nil
	}
	n.Fold = true
	return true, s.render()
}

func lastUnfolded(n *model.Node) *model.Node {
	if n == nil || !n.HasChildren() || n.Fold {
		return nil
	}
	for i := len(n.Children) - 1; i >= 0; i-- {
		if f := lastUnfolded(n.Children[i]); f != nil {
			return f
		}
	}
	return n
}

// Toggle flips the fold of one node.
func (s *Session) Toggle(node *model.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !node.HasChildren() {
		return nil
	}
	node.Fold = !node.Fold
	return s.render()
}
