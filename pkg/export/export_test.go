package export

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/blockmap/pkg/assemble"
	"github.com/vanderheijden86/blockmap/pkg/model"
	"github.com/vanderheijden86/blockmap/pkg/render"
	"github.com/vanderheijden86/blockmap/pkg/testutil"
)

func fixtureTree() *model.Node {
	return &model.Node{Label: "Project X", Children: []*model.Node{
		{Label: "A", Depth: 1},
		{Label: "B", Depth: 1, Fold: true, Children: []*model.Node{
			{Label: "B1", Depth: 2},
		}},
		{Label: "<strong>C</strong>", Depth: 1},
	}}
}

func fixtureDoc() *assemble.Document {
	return &assemble.Document{
		Title: "Project X",
		Text:  "# Project X\n\n- A\n- B\n  - B1\n- <span style=\"color: red\">C</span><script>alert(1)</script>\n",
	}
}

func TestFileName(t *testing.T) {
	tests := []struct {
		title, format, want string
	}{
		{"Project X", "png", "Project X.png"},
		{"area/work", "svg", "area_work.svg"},
		{"  ", "svg", "mindmap.svg"},
		{"a:b?c", "PNG", "a_b_c.png"},
		{"...", "svg", "mindmap.svg"},
	}
	for _, tt := range tests {
		if got := FileName(tt.title, tt.format); got != tt.want {
			t.Errorf("FileName(%q, %q): expected %q, got %q", tt.title, tt.format, tt.want, got)
		}
	}
}

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		path, format, want string
		wantErr            bool
	}{
		{"map.png", "", FormatPNG, false},
		{"map.svg", "", FormatSVG, false},
		{"map", "", FormatSVG, false},
		{"map.bin", ".png", FormatPNG, false},
		{"map.txt", "txt", "", true},
	}
	for _, tt := range tests {
		got, err := ResolveFormat(tt.path, tt.format)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ResolveFormat(%q, %q): expected (%q, err=%v), got (%q, %v)", tt.path, tt.format, tt.want, tt.wantErr, got, err)
		}
	}
}

func TestSaveSnapshotSVGAndPNG(t *testing.T) {
	tmp := t.TempDir()
	for _, format := range []string{FormatSVG, FormatPNG} {
		t.Run(format, func(t *testing.T) {
			path, err := SaveSnapshot(fixtureTree(), SnapshotOptions{
				Path:   tmp,
				Format: format,
				Title:  "Project X",
				View:   render.DefaultViewOptions(),
			})
			if err != nil {
				t.Fatalf("SaveSnapshot: %v", err)
			}
			if filepath.Base(path) != "Project X."+format {
				t.Errorf("expected file named after the title, got %s", path)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if len(data) == 0 {
				t.Fatal("output file is empty")
			}
			if format == FormatSVG && !bytes.Contains(data, []byte("<svg")) {
				t.Error("expected an svg document")
			}
			if format == FormatPNG && !bytes.HasPrefix(data, []byte("\x89PNG")) {
				t.Error("expected a png signature")
			}
		})
	}
}

func TestSaveSnapshotErrors(t *testing.T) {
	if _, err := SaveSnapshot(nil, SnapshotOptions{Path: t.TempDir()}); err == nil {
		t.Error("expected error for nil tree")
	}
	if _, err := SaveSnapshot(fixtureTree(), SnapshotOptions{Path: "map.txt", Format: "gif"}); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestOutline(t *testing.T) {
	all := Outline(fixtureTree(), false)
	want := "# Project X\n\n- A\n- B\n  - B1\n- <strong>C</strong>\n"
	if all != want {
		t.Errorf("expected\n%s\ngot\n%s", want, all)
	}
	visible := Outline(fixtureTree(), true)
	if strings.Contains(visible, "B1") || !strings.Contains(visible, "- B +\n") {
		t.Errorf("expected folded B to hide its children, got\n%s", visible)
	}
}

func TestMermaid(t *testing.T) {
	out := Mermaid(fixtureTree())
	want := "mindmap\n  root((Project X))\n    [A]\n    [B]\n      [B1]\n    [C]\n"
	if out != want {
		t.Errorf("expected\n%s\ngot\n%s", want, out)
	}
	if Mermaid(nil) != "" {
		t.Error("expected empty diagram for nil tree")
	}
}

func TestRenderHTMLSanitizes(t *testing.T) {
	out, err := RenderHTML(fixtureDoc())
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	s := string(out)
	if strings.Contains(s, "<script") {
		t.Error("expected script to be stripped")
	}
	for _, frag := range []string{"<h1", "<li>A</li>", "B1", "<span"} {
		if !strings.Contains(s, frag) {
			t.Errorf("expected %q in output:\n%s", frag, s)
		}
	}
}

func TestWriteHTML(t *testing.T) {
	page, err := WriteHTML(fixtureDoc(), []byte(`<svg width="10" height="10"></svg>`), "#ffffff", "#111827")
	if err != nil {
		t.Fatalf("WriteHTML: %v", err)
	}
	s := string(page)
	if !strings.Contains(s, "<title>Project X</title>") || !strings.Contains(s, "<svg") {
		t.Errorf("unexpected page:\n%s", s)
	}
	if _, err := WriteHTML(nil, nil, "", ""); err == nil {
		t.Error("expected error for nil document")
	}
}

func TestSaveDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "map.md")
	if err := SaveDocument(fixtureDoc(), path); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != fixtureDoc().Text {
		t.Errorf("expected document text, got %q", data)
	}
}

func TestCopyDocument(t *testing.T) {
	var got string
	orig := writeClipboard
	t.Cleanup(func() { writeClipboard = orig })

	writeClipboard = func(s string) error { got = s; return nil }
	if err := CopyDocument(fixtureDoc()); err != nil {
		t.Fatalf("CopyDocument: %v", err)
	}
	if got != fixtureDoc().Text {
		t.Errorf("expected document text on clipboard, got %q", got)
	}

	writeClipboard = func(string) error { return errors.New("no backend") }
	if err := CopyDocument(fixtureDoc()); err == nil {
		t.Error("expected clipboard error to surface")
	}
	if err := CopyDocument(&assemble.Document{}); err == nil {
		t.Error("expected error for empty document")
	}
}

func TestWriteTree(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTree(&buf, fixtureTree()); err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	var back model.Node
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	testutil.AssertJSONEqual(t, fixtureTree(), &back)
}
