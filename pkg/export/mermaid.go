package export

import (
	"strings"
	"unicode"

	"github.com/vanderheijden86/blockmap/pkg/model"
	"github.com/vanderheijden86/blockmap/pkg/transform"
)

// Mermaid renders the node tree as a Mermaid mindmap diagram. Folded
// subtrees are included; Mermaid has no fold state.
func Mermaid(root *model.Node) string {
	if root == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("mindmap\n")
	sb.WriteString("  root((" + sanitizeMermaidText(root.Label) + "))\n")
	var write func(nodes []*model.Node, depth int)
	write = func(nodes []*model.Node, depth int) {
		for _, n := range nodes {
			sb.WriteString(strings.Repeat("  ", depth))
			sb.WriteString("[" + sanitizeMermaidText(n.Label) + "]\n")
			write(n.Children, depth+1)
		}
	}
	write(root.Children, 2)
	return sb.String()
}

// sanitizeMermaidText flattens a label to plain text that cannot break
// Mermaid syntax.
func sanitizeMermaidText(text string) string {
	text = transform.PlainText(text)
	replacer := strings.NewReplacer(
		"\"", "'",
		"[", "(",
		"]", ")",
		"{", "(",
		"}", ")",
		"<", "&lt;",
		">", "&gt;",
		"`", "'",
		"\n", " ",
		"\r", "",
	)
	text = replacer.Replace(text)
	text = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, text)
	text = strings.TrimSpace(text)
	if text == "" {
		return "…"
	}
	return text
}
