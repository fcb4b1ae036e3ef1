// Package mindmap turns an assembled document into a node tree and seeds the
// initial fold state.
package mindmap

import (
	"errors"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/vanderheijden86/blockmap/pkg/model"
)

// ErrNoTitle is returned when a document does not start with a title heading.
var ErrNoTitle = errors.New("document has no title heading")

// Features records what kinds of markup the document uses, so a renderer can
// decide what support to load.
type Features struct {
	Code          bool
	Math          bool
	Tables        bool
	Strikethrough bool
	Links         bool
	Images        bool
	HTML          bool
}

// Transformer parses a document into a node tree. The title is the root; each
// list item becomes a node whose children are its nested list items.
type Transformer interface {
	Transform(doc string) (*model.Node, Features, error)
}

// GoldmarkTransformer is a Transformer backed by goldmark with GFM enabled.
type GoldmarkTransformer struct {
	md goldmark.Markdown
}

// NewGoldmarkTransformer returns a ready transformer.
func NewGoldmarkTransformer() *GoldmarkTransformer {
	return &GoldmarkTransformer{md: goldmark.New(goldmark.WithExtensions(extension.GFM))}
}

// Transform implements Transformer.
func (g *GoldmarkTransformer) Transform(doc string) (*model.Node, Features, error) {
	src := []byte(doc)
	tree := g.md.Parser().Parse(text.NewReader(src))

	var feats Features
	root := &model.Node{Depth: -1}
	titled := false
	for c := tree.FirstChild(); c != nil; c = c.NextSibling() {
		switch n := c.(type) {
		case *ast.Heading:
			if !titled && n.Level == 1 {
				root.Label = blockText(n, src)
				titled = true
			}
		case *ast.List:
			root.Children = append(root.Children, listNodes(n, src, 0)...)
		}
	}
	if !titled {
		return nil, feats, ErrNoTitle
	}

	_ = ast.Walk(tree, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.CodeSpan:
			feats.Code = true
		case *east.Table:
			feats.Tables = true
		case *east.Strikethrough:
			feats.Strikethrough = true
		case *ast.Link, *ast.AutoLink:
			feats.Links = true
		case *ast.Image:
			feats.Images = true
		case *ast.RawHTML, *ast.HTMLBlock:
			feats.HTML = true
		case *ast.Text:
			if strings.Contains(string(v.Segment.Value(src)), "$") {
				feats.Math = true
			}
		}
		return ast.WalkContinue, nil
	})
	return root, feats, nil
}

func listNodes(list *ast.List, src []byte, depth int) []*model.Node {
	var out []*model.Node
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		li, ok := item.(*ast.ListItem)
		if !ok {
			continue
		}
		node := &model.Node{Depth: depth}
		var parts []string
		for c := li.FirstChild(); c != nil; c = c.NextSibling() {
			if sub, ok := c.(*ast.List); ok {
				node.Children = append(node.Children, listNodes(sub, src, depth+1)...)
				continue
			}
			parts = append(parts, blockText(c, src))
		}
		node.Label = unescapeLabel(strings.Join(parts, "\n"))
		out = append(out, node)
	}
	return out
}

// blockText returns the source text of a block node, fences included for
// fenced code.
func blockText(n ast.Node, src []byte) string {
	var sb strings.Builder
	fenced, isFenced := n.(*ast.FencedCodeBlock)
	marker := "```"
	if isFenced {
		if m := openingFence(fenced, src); m != "" {
			marker = m
		}
		sb.WriteString(marker)
		if fenced.Info != nil {
			sb.Write(fenced.Info.Segment.Value(src))
		}
		sb.WriteString("\n")
	}
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		v := seg.Value(src)
		sb.Write(v)
		if i < lines.Len()-1 && !strings.HasSuffix(string(v), "\n") {
			sb.WriteString("\n")
		}
	}
	if isFenced {
		if !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString(marker)
	}
	return strings.TrimRight(sb.String(), " \t\r\n")
}

// openingFence recovers the fence run of a fenced code block from the source
// line that opened it.
func openingFence(n *ast.FencedCodeBlock, src []byte) string {
	var start int
	switch {
	case n.Info != nil:
		start = lineStart(src, n.Info.Segment.Start)
	case n.Lines().Len() > 0:
		first := lineStart(src, n.Lines().At(0).Start)
		if first == 0 {
			return ""
		}
		start = lineStart(src, first-1)
	default:
		return ""
	}
	end := start
	for end < len(src) && src[end] != '\n' {
		end++
	}
	line := strings.TrimLeft(string(src[start:end]), " \t")
	return model.FenceMarker(strings.TrimPrefix(line, "- "))
}

func lineStart(src []byte, i int) int {
	if i > len(src) {
		i = len(src)
	}
	for i > 0 && src[i-1] != '\n' {
		i--
	}
	return i
}
