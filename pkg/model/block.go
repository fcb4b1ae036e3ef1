// Package model defines the outline and mind-map data types shared by every
// stage of the blockmap pipeline.
//
// Blocks and pages are owned by the host outline and are treated as read-only:
// pipeline stages that need a different shape build new values instead of
// mutating the ones they were given. Nodes are created fresh for each render
// and are owned by the navigation session for that render's lifetime.
package model

import "strings"

// Block is one node of the host outline.
type Block struct {
	UUID       string         `json:"uuid"`
	Content    string         `json:"content"`
	Properties map[string]any `json:"properties,omitempty"`
	Options    BlockOptions   `json:"-"`
	Children   []*Block       `json:"children,omitempty"`
	Collapsed  bool           `json:"collapsed,omitempty"`
	PageName   string         `json:"page,omitempty"`

	// Stub marks a lazy reference: only UUID is meaningful until the loader
	// replaces it with the fetched block.
	Stub bool `json:"stub,omitempty"`
}

// StubBlock returns a lazy reference to the block with the given UUID.
func StubBlock(uuid string) *Block {
	return &Block{UUID: uuid, Stub: true}
}

// ShallowCopy returns a copy of b without children. Properties are shared;
// callers must not mutate them.
func (b *Block) ShallowCopy() *Block {
	if b == nil {
		return nil
	}
	cp := *b
	cp.Children = nil
	return &cp
}

// Clone returns a deep copy of the block tree rooted at b.
func (b *Block) Clone() *Block {
	if b == nil {
		return nil
	}
	cp := b.ShallowCopy()
	if len(b.Children) > 0 {
		cp.Children = make([]*Block, 0, len(b.Children))
		for _, c := range b.Children {
			cp.Children = append(cp.Children, c.Clone())
		}
	}
	return cp
}

// FirstLine returns the first non-empty line of the block content.
func (b *Block) FirstLine() string {
	if b == nil {
		return ""
	}
	for _, line := range strings.Split(b.Content, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return ""
}

// Page is a named page of the host outline.
type Page struct {
	Name         string         `json:"name"`
	OriginalName string         `json:"originalName"`
	Properties   map[string]any `json:"properties,omitempty"`
	Options      PageOptions    `json:"-"`
	Journal      bool           `json:"journal,omitempty"`
}

// DisplayName returns the page title as the user wrote it.
func (p *Page) DisplayName() string {
	if p == nil {
		return ""
	}
	if p.OriginalName != "" {
		return p.OriginalName
	}
	return p.Name
}

// NormalizePageName lower-cases and trims a page name the way the host keys
// its pages.
func NormalizePageName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CountBlocks returns the number of blocks in the forest.
func CountBlocks(blocks []*Block) int {
	n := 0
	for _, b := range blocks {
		if b == nil {
			continue
		}
		n += 1 + CountBlocks(b.Children)
	}
	return n
}
