package export

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/vanderheijden86/blockmap/pkg/assemble"
)

// Labels carry inline HTML (colored spans, tooltips), so raw HTML passes
// through goldmark and is sanitized afterwards.
var htmlRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM, emoji.Emoji),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// Policy returns the sanitizer applied to exported HTML. It keeps inline
// styles and tooltips and the page:/block: link schemes.
func Policy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("style", "title", "class").Globally()
	p.AllowDataAttributes()
	p.AllowStyling()
	p.AllowURLSchemes("http", "https", "mailto", "page", "block", "image")
	p.AllowElements("span", "div", "svg", "g", "path", "text", "rect", "circle", "line", "a")
	p.AllowAttrs("width", "height", "viewBox", "xmlns", "transform", "d", "x", "y",
		"x1", "y1", "x2", "y2", "cx", "cy", "r", "fill", "stroke").OnElements("svg", "g", "path", "text", "rect", "circle", "line")
	return p
}

// RenderHTML converts the nested-list document to sanitized HTML.
func RenderHTML(doc *assemble.Document) (template.HTML, error) {
	if doc == nil {
		return "", fmt.Errorf("nothing to export")
	}
	var buf bytes.Buffer
	if err := htmlRenderer.Convert([]byte(doc.Text), &buf); err != nil {
		return "", fmt.Errorf("convert document: %w", err)
	}
	return template.HTML(Policy().SanitizeBytes(buf.Bytes())), nil
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; background: {{.Background}}; color: {{.Foreground}}; margin: 2em; }
.outline ul { border-left: 1px solid #ccc; padding-left: 1.2em; }
.map { overflow: auto; margin-bottom: 2em; }
</style>
</head>
<body>
{{if .SVG}}<div class="map">{{.SVG}}</div>{{end}}
<div class="outline">{{.Body}}</div>
</body>
</html>
`))

// HTMLPage is the data for a standalone HTML export.
type HTMLPage struct {
	Title      string
	Background string
	Foreground string
	// SVG is an optional rendered map placed above the outline.
	SVG  template.HTML
	Body template.HTML
}

// WriteHTML renders doc (and svg, when non-empty) into a standalone page.
func WriteHTML(doc *assemble.Document, svg []byte, background, foreground string) ([]byte, error) {
	body, err := RenderHTML(doc)
	if err != nil {
		return nil, err
	}
	page := HTMLPage{
		Title:      doc.Title,
		Background: background,
		Foreground: foreground,
		Body:       body,
	}
	if len(svg) > 0 {
		page.SVG = template.HTML(Policy().SanitizeBytes(svg))
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
