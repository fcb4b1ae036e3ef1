package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"

	"github.com/vanderheijden86/blockmap/pkg/keys"
)

var helpGroups = []string{"Navigation", "Levels", "Folding", "View", "General"}

// HelpMarkdown lists every key binding as markdown tables, one per group.
func HelpMarkdown(km keys.KeyMap) string {
	var sb strings.Builder
	sb.WriteString("# Keyboard shortcuts\n\n")
	for i, group := range km.FullHelp() {
		title := "More"
		if i < len(helpGroups) {
			title = helpGroups[i]
		}
		fmt.Fprintf(&sb, "## %s\n\n| Key | Action |\n|---|---|\n", title)
		for _, b := range group {
			writeHelpRow(&sb, b)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("## Export\n\n| Key | Action |\n|---|---|\n")
	for _, b := range []key.Binding{localKeys.Copy, localKeys.SavePNG, localKeys.SaveSVG, localKeys.Image, localKeys.Quit} {
		writeHelpRow(&sb, b)
	}
	return sb.String()
}

func writeHelpRow(sb *strings.Builder, b key.Binding) {
	h := b.Help()
	k := strings.ReplaceAll(h.Key, "|", "\\|")
	fmt.Fprintf(sb, "| `%s` | %s |\n", k, h.Desc)
}

// RenderHelp renders the help markdown for a terminal of the given width in
// the dark or light style. Rendering failures fall back to the raw markdown.
func RenderHelp(km keys.KeyMap, width int, dark bool) string {
	md := HelpMarkdown(km)
	if width < 20 {
		width = 20
	}
	style := styles.LightStyle
	if dark {
		style = styles.DarkStyle
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n ")
}
