package transform

import (
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/vanderheijden86/blockmap/pkg/model"
)

// Foreground colors used on colored backgrounds.
const (
	LightForeground = "#ffffff"
	DarkForeground  = "#000000"
)

// ForegroundFor picks the readable text color for a background.
func ForegroundFor(bg string) string {
	if model.IsLight(bg) {
		return DarkForeground
	}
	return LightForeground
}

func backgroundRule(s string, in *Input) (string, error) {
	bg := in.Options().BackgroundColor
	return `<span style="background-color: ` + bg + `; color: ` + ForegroundFor(bg) + `">` + s + `</span>`, nil
}

var plainParser = goldmark.New(goldmark.WithExtensions(extension.Strikethrough)).Parser()

// PlainText returns the visible text of a markdown label: emphasis, links,
// images, HTML tags and escapes are dropped and whitespace is collapsed.
func PlainText(s string) string {
	src := []byte(escapeLines(s))
	doc := plainParser.Parse(text.NewReader(src))

	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				sb.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Text:
			sb.Write(util.UnescapePunctuations(v.Segment.Value(src)))
			if v.SoftLineBreak() || v.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(v.Value)
		case *ast.CodeSpan:
			for c := v.FirstChild(); c != nil; c = c.NextSibling() {
				switch t := c.(type) {
				case *ast.Text:
					sb.Write(t.Segment.Value(src))
				case *ast.String:
					sb.Write(t.Value)
				}
			}
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			sb.Write(v.Label(src))
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := v.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(src))
				sb.WriteByte(' ')
			}
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(html.UnescapeString(sb.String())), " ")
}

// escapeLines escapes line starts outside code fences so a label is read as
// inline text rather than as list, heading or HTML blocks.
func escapeLines(s string) string {
	lines := strings.Split(s, "\n")
	fence := ""
	for i, l := range lines {
		switch marker := model.FenceMarker(l); {
		case fence == "" && marker != "":
			fence = marker
		case fence != "" && model.ClosesFence(l, fence):
			fence = ""
		case fence == "":
			lines[i] = model.EscapeBlockStart(l)
		}
	}
	return strings.Join(lines, "\n")
}

func truncateRule(s string, in *Input) (string, error) {
	return Truncate(s, in.Options().TruncateAt), nil
}

// Truncate shortens the visible text of s to at most k runes, the last being
// an ellipsis, and keeps the full text in a tooltip. Text already within k is
// returned unchanged.
func Truncate(s string, k int) string {
	plain := PlainText(s)
	runes := []rune(plain)
	if k <= 0 || len(runes) <= k {
		return s
	}
	short := string(runes[:k-1]) + "…"
	return `<span title="` + html.EscapeString(plain) + `">` + html.EscapeString(short) + `</span>`
}

// TooltipText recovers the untruncated text from a Truncate wrapper.
func TooltipText(s string) (string, bool) {
	const open = `<span title="`
	i := strings.Index(s, open)
	if i < 0 {
		return "", false
	}
	rest := s[i+len(open):]
	j := strings.IndexByte(rest, '"')
	if j < 0 {
		return "", false
	}
	return html.UnescapeString(rest[:j]), true
}

// fixFences removes the common indentation below the first line of a block
// containing fenced code and closes a fence left open. The first line was
// already trimmed.
func fixFences(s string) string {
	lines := strings.Split(s, "\n")
	indent := -1
	for _, l := range lines[1:] {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	fence := ""
	for i, l := range lines {
		if i > 0 && indent > 0 && len(l) >= indent {
			lines[i] = l[indent:]
		}
		switch marker := model.FenceMarker(lines[i]); {
		case fence == "" && marker != "":
			fence = marker
		case fence != "" && model.ClosesFence(lines[i], fence):
			fence = ""
		}
	}
	if fence != "" {
		lines = append(lines, fence)
	}
	return strings.Join(lines, "\n")
}
