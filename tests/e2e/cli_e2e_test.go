package main_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var gardenNotes = map[string]string{
	"pages/Garden.md":        "- Roses\n\t- Red\n\t- White\n- Tulips\n",
	"pages/Orchard.md":       "- Apples grow near [[Garden]]\n",
	"pages/Area___Shed.md":   "- Tools\n",
	"journals/2024_05_01.md": "- Planted [[Garden]] beds\n",
}

func TestRenderPage(t *testing.T) {
	g := newGraph(t, gardenNotes)
	out, err := runBm(t, g.args("render", "--source", "graph", "--all", "Garden")...)
	if err != nil {
		t.Fatalf("render failed: %v\n%s", err, out)
	}
	for _, want := range []string{"# Garden", "- Roses", "  - White", "- Tulips"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderLinkedAndNamespace(t *testing.T) {
	g := newGraph(t, gardenNotes)

	out, err := runBm(t, g.args("render", "--source", "graph", "--mode", "linked", "--all", "Garden")...)
	if err != nil {
		t.Fatalf("linked render failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Apples grow near") {
		t.Errorf("expected Orchard reference, got:\n%s", out)
	}

	out, err = runBm(t, g.args("render", "--source", "graph", "--mode", "namespace", "--all", "Area")...)
	if err != nil {
		t.Fatalf("namespace render failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Shed") {
		t.Errorf("expected the namespace child page, got:\n%s", out)
	}
}

func TestRenderMissingPageFails(t *testing.T) {
	g := newGraph(t, gardenNotes)
	if out, err := runBm(t, g.args("render", "--source", "graph", "Nowhere")...); err == nil {
		t.Errorf("expected failure for a missing page, got:\n%s", out)
	}
}

func TestExportSVGAndHTML(t *testing.T) {
	g := newGraph(t, gardenNotes)
	outDir := t.TempDir()

	out, err := runBm(t, g.args("export", "--source", "graph", "-o", outDir, "Garden")...)
	if err != nil {
		t.Fatalf("export failed: %v\n%s", err, out)
	}
	svg, err := os.ReadFile(filepath.Join(outDir, "Garden.svg"))
	if err != nil {
		t.Fatalf("expected Garden.svg: %v", err)
	}
	if !strings.Contains(string(svg), "<svg") || !strings.Contains(string(svg), "Roses") {
		t.Errorf("expected an svg map with labels, got %.200s", svg)
	}

	htmlPath := filepath.Join(outDir, "garden.html")
	if out, err := runBm(t, g.args("export", "--source", "graph", "-o", htmlPath, "Garden")...); err != nil {
		t.Fatalf("html export failed: %v\n%s", err, out)
	}
	page, err := os.ReadFile(htmlPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(page), "<html") {
		t.Errorf("expected an html page, got %.200s", page)
	}
}

func TestIndexRoundTrip(t *testing.T) {
	g := newGraph(t, gardenNotes)

	out, err := runBm(t, g.args("index")...)
	if err != nil {
		t.Fatalf("index failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "indexed 4 pages") {
		t.Errorf("expected 4 pages indexed, got %q", out)
	}

	out, err = runBm(t, g.args("render", "--source", "index", "--all", "Garden")...)
	if err != nil {
		t.Fatalf("render from index failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "- Red") {
		t.Errorf("expected nested block from the index, got:\n%s", out)
	}

	if err := os.WriteFile(filepath.Join(g.dir, "pages", "Meadow.md"), []byte("- Clover\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if out, err := runBm(t, g.args("index", "--check")...); err == nil {
		t.Errorf("expected stale index check to fail, got %q", out)
	}
}

func TestTUIAutoClose(t *testing.T) {
	skipIfNoScript(t)
	g := newGraph(t, gardenNotes)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := scriptTUICommand(ctx, g.args("tui", "--source", "graph", "Garden")...)
	if cmd == nil {
		t.Skip("skipping: script command unavailable")
	}
	cmd.Env = append(os.Environ(), "TERM=xterm-256color", "BM_TUI_AUTOCLOSE_MS=500")
	ensureCmdStdinCloses(t, ctx, cmd, 5*time.Second)

	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		t.Fatalf("tui did not close on its own:\n%s", out)
	}
	if err != nil {
		t.Fatalf("tui failed: %v\n%s", err, out)
	}
	if !strings.Contains(string(out), "Garden") {
		t.Errorf("expected the page title on screen, got:\n%s", out)
	}
}
