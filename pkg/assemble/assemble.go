// Package assemble serializes a filtered, transformed block tree into the
// nested-list document handed to the mind-map transformer.
package assemble

import (
	"strings"

	"github.com/vanderheijden86/blockmap/pkg/model"
)

const (
	// HomeGlyph prefixes the title when a block subtree is rendered.
	HomeGlyph = "🏠 "
	// OverflowLabel is the label of a synthetic sibling-overflow entry.
	OverflowLabel = "…"

	indentUnit = "  "
)

// Entry is one list item of the document: a block, or a synthetic overflow
// entry grouping the siblings beyond a limit.
type Entry struct {
	Block     *model.Block
	Label     string
	Children  []*Entry
	Synthetic bool
}

// Document is the assembled outline and its serialized text.
type Document struct {
	Title   string
	Text    string
	Outline []*Entry
	AsBlock bool
}

// Options controls assembly.
type Options struct {
	Page model.PageOptions
	// AsBlock marks a block-subtree render; the title gets HomeGlyph.
	AsBlock bool
	// RootLimit is the sibling limit of the rendered root block, applied to
	// the top level when no page limit is set.
	RootLimit int
}

// Assemble builds the document for title and the filtered forest. labels
// holds the transformed text of every block; a missing label falls back to
// the raw content.
func Assemble(title string, blocks []*model.Block, labels map[*model.Block]string, opts Options) *Document {
	a := &assembler{labels: labels, page: opts.Page}
	doc := &Document{
		Title:   title,
		AsBlock: opts.AsBlock,
		Outline: a.entries(blocks, true, opts.RootLimit),
	}
	if opts.AsBlock {
		doc.Title = HomeGlyph + title
	}

	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(singleLine(doc.Title))
	sb.WriteString("\n\n")
	for _, e := range doc.Outline {
		writeEntry(&sb, e, 0)
	}
	doc.Text = sb.String()
	return doc
}

type assembler struct {
	labels map[*model.Block]string
	page   model.PageOptions
}

// limitFor returns the effective sibling limit: page-wide all-levels, then
// page-wide first level, then the parent block's own limit.
func (a *assembler) limitFor(top bool, parentLimit int) int {
	switch {
	case a.page.LimitAll > 0:
		return a.page.LimitAll
	case top && a.page.LimitFirstLevel > 0:
		return a.page.LimitFirstLevel
	default:
		return parentLimit
	}
}

func (a *assembler) entries(blocks []*model.Block, top bool, parentLimit int) []*Entry {
	limit := a.limitFor(top, parentLimit)
	shown, overflow := blocks, []*model.Block(nil)
	if limit > 0 && len(blocks) > limit {
		shown, overflow = blocks[:limit], blocks[limit:]
	}

	out := make([]*Entry, 0, len(shown)+1)
	for _, b := range shown {
		out = append(out, &Entry{
			Block:    b,
			Label:    a.label(b),
			Children: a.entries(b.Children, false, b.Options.SiblingLimit),
		})
	}
	if len(overflow) > 0 {
		out = append(out, &Entry{
			Label:     OverflowLabel,
			Synthetic: true,
			Children:  a.entries(overflow, top, parentLimit),
		})
	}
	return out
}

func (a *assembler) label(b *model.Block) string {
	if l, ok := a.labels[b]; ok {
		return l
	}
	return strings.TrimSpace(b.Content)
}

func writeEntry(sb *strings.Builder, e *Entry, depth int) {
	pad := strings.Repeat(indentUnit, depth)
	lines := strings.Split(strings.TrimSpace(e.Label), "\n")
	fence := ""
	for i, line := range lines {
		switch marker := model.FenceMarker(line); {
		case fence == "" && marker != "":
			fence = marker
		case fence != "" && model.ClosesFence(line, fence):
			fence = ""
		case fence == "":
			line = model.EscapeBlockStart(line)
		}
		if i == 0 {
			sb.WriteString(pad + "- " + line + "\n")
			continue
		}
		if strings.TrimSpace(line) == "" {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString(pad + indentUnit + line + "\n")
	}
	if fence != "" {
		// an open fence would swallow the children
		sb.WriteString(pad + indentUnit + fence + "\n")
	}
	for _, c := range e.Children {
		writeEntry(sb, c, depth+1)
	}
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CountEntries returns the number of entries in the outline.
func CountEntries(entries []*Entry) int {
	n := 0
	for _, e := range entries {
		n += 1 + CountEntries(e.Children)
	}
	return n
}
