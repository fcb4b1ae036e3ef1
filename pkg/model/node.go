package model

// Node is one mind-map node produced from the assembled document.
type Node struct {
	Label           string         `json:"label"`
	Children        []*Node        `json:"children,omitempty"`
	Fold            bool           `json:"fold,omitempty"`
	Properties      map[string]any `json:"properties,omitempty"`
	Options         BlockOptions   `json:"-"`
	SourceCollapsed bool           `json:"sourceCollapsed,omitempty"`
	BlockUUID       string         `json:"uuid,omitempty"`

	// Synthetic marks an overflow node inserted by sibling limiting.
	Synthetic bool `json:"synthetic,omitempty"`

	// Depth is -1 for the title node and 0 for its direct children.
	Depth int `json:"depth"`
}

// HasChildren reports whether the node can be folded.
func (n *Node) HasChildren() bool {
	return n != nil && len(n.Children) > 0
}

// Walk visits n and its descendants depth-first, parents first. Returning
// false from fn skips the node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Height returns the number of levels below n (0 for a leaf).
func (n *Node) Height() int {
	if n == nil {
		return 0
	}
	h := 0
	for _, c := range n.Children {
		if ch := c.Height() + 1; ch > h {
			h = ch
		}
	}
	return h
}

// CountFoldable returns the number of nodes with children in the subtree.
func (n *Node) CountFoldable() int {
	count := 0
	n.Walk(func(x *Node) bool {
		if x.HasChildren() {
			count++
		}
		return true
	})
	return count
}

// SetFoldAll sets Fold on every node of the subtree.
func (n *Node) SetFoldAll(fold bool) {
	n.Walk(func(x *Node) bool {
		x.Fold = fold
		return true
	})
}

// Clone returns a deep copy of the subtree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Children = nil
	for _, c := range n.Children {
		cp.Children = append(cp.Children, c.Clone())
	}
	return &cp
}
