package mindmap

import (
	"fmt"
	"strings"
	"testing"

	"github.com/vanderheijden86/blockmap/pkg/assemble"
	"github.com/vanderheijden86/blockmap/pkg/model"
	"github.com/vanderheijden86/blockmap/pkg/testutil"
)

func labels(nodes []*model.Node) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, n.Label)
	}
	return out
}

func projectX() *assemble.Document {
	b := &model.Block{UUID: "b", Content: "B", Collapsed: true, Children: []*model.Block{
		{UUID: "b1", Content: "B1"},
		{UUID: "b2", Content: "B2"},
	}}
	top := []*model.Block{{UUID: "a", Content: "A"}, b, {UUID: "c", Content: "C"}}
	return assemble.Assemble("Project X", top, nil, assemble.Options{Page: model.PageOptions{LimitFirstLevel: 2}})
}

func TestGoldmarkTransform(t *testing.T) {
	root, _, err := NewGoldmarkTransformer().Transform("# Title\n\n- one\n  - two\n- three\n")
	if err != nil {
		t.Fatal(err)
	}
	if root.Label != "Title" {
		t.Errorf("expected title %q, got %q", "Title", root.Label)
	}
	if got := labels(root.Children); fmt.Sprint(got) != "[one three]" {
		t.Errorf("expected [one three], got %v", got)
	}
	if got := labels(root.Children[0].Children); fmt.Sprint(got) != "[two]" {
		t.Errorf("expected [two], got %v", got)
	}
}

func TestGoldmarkTransformNoTitle(t *testing.T) {
	if _, _, err := NewGoldmarkTransformer().Transform("- orphan\n"); err == nil {
		t.Error("expected error for a document without a title")
	}
}

func TestBuildProjectX(t *testing.T) {
	root, _, err := Build(projectX(), NewGoldmarkTransformer())
	if err != nil {
		t.Fatal(err)
	}
	Seed(root, model.CollapsedHidden)

	if root.Label != "Project X" || root.Depth != -1 {
		t.Fatalf("unexpected root %q depth %d", root.Label, root.Depth)
	}
	if got := labels(root.Children); fmt.Sprint(got) != fmt.Sprint([]string{"A", "B", assemble.OverflowLabel}) {
		t.Fatalf("expected [A B …], got %v", got)
	}
	a, b, over := root.Children[0], root.Children[1], root.Children[2]
	if a.Fold || a.Depth != 0 {
		t.Errorf("expected A unfolded at depth 0, got fold=%v depth=%d", a.Fold, a.Depth)
	}
	if !b.Fold || !b.SourceCollapsed || b.BlockUUID != "b" {
		t.Errorf("expected B folded from its source flag, got %+v", b)
	}
	if got := labels(b.Children); fmt.Sprint(got) != "[B1 B2]" {
		t.Errorf("expected B children [B1 B2], got %v", got)
	}
	if !over.Fold || !over.Synthetic {
		t.Errorf("expected overflow folded and synthetic")
	}
	if got := labels(over.Children); fmt.Sprint(got) != "[C]" {
		t.Errorf("expected overflow children [C], got %v", got)
	}
}

func TestBuildPreservesTrickyLabels(t *testing.T) {
	blocks := []*model.Block{
		{UUID: "1", Content: "x"},
		{UUID: "2", Content: "y", Children: []*model.Block{{UUID: "3", Content: "z"}}},
		{UUID: "4", Content: "w"},
	}
	lbl := map[*model.Block]string{
		blocks[0]:             "- looks like a list\n1. and ordered",
		blocks[1]:             "code:\n```go\n- x := 1\n```",
		blocks[1].Children[0]: `<span style="background-color: #000000; color: #ffffff">dark</span>`,
		blocks[2]:             "## not a heading",
	}
	doc := assemble.Assemble("T", blocks, lbl, assemble.Options{})
	root, feats, err := Build(doc, NewGoldmarkTransformer())
	if err != nil {
		t.Fatalf("Build: %v\n%s", err, doc.Text)
	}
	if len(root.Children) != 3 || len(root.Children[1].Children) != 1 {
		t.Fatalf("unexpected shape:\n%s", doc.Text)
	}
	if got := root.Children[0].Label; got != "- looks like a list\n1. and ordered" {
		t.Errorf("unexpected label %q", got)
	}
	if got := root.Children[1].Label; got != "code:\n```go\n- x := 1\n```" {
		t.Errorf("unexpected label %q", got)
	}
	if got := root.Children[2].Label; got != "## not a heading" {
		t.Errorf("unexpected label %q", got)
	}
	if !feats.Code || !feats.HTML {
		t.Errorf("expected code and html features, got %+v", feats)
	}
}

func TestBuildKeepsOpenersVerbatim(t *testing.T) {
	tests := []struct{ label, want string }{
		{"~~~\n- x", "~~~\n- x\n~~~"},
		{"```sh\nls", "```sh\nls\n```"},
		{"<pre>", "<pre>"},
		{"<!-- note", "<!-- note"},
	}
	for _, tt := range tests {
		a := &model.Block{UUID: "a", Content: "a", Children: []*model.Block{{UUID: "a1", Content: "a1"}}}
		doc := assemble.Assemble("T", []*model.Block{a}, map[*model.Block]string{a: tt.label}, assemble.Options{})
		root, _, err := Build(doc, NewGoldmarkTransformer())
		if err != nil {
			t.Fatalf("Build(%q): %v\n%s", tt.label, err, doc.Text)
		}
		n := root.Children[0]
		if n.Label != tt.want {
			t.Errorf("expected label %q, got %q", tt.want, n.Label)
		}
		if len(n.Children) != 1 || n.Children[0].BlockUUID != "a1" {
			t.Errorf("expected child a1 under %q, got %v", tt.label, labels(n.Children))
		}
	}
}

func TestBuildShapeMismatch(t *testing.T) {
	doc := &assemble.Document{Text: "# T\n\n- a\n", Outline: nil}
	if _, _, err := Build(doc, NewGoldmarkTransformer()); err == nil || !strings.Contains(err.Error(), "diverges") {
		t.Errorf("expected divergence error, got %v", err)
	}
}

func tree() *model.Node {
	return &model.Node{Label: "root", Depth: -1, Children: []*model.Node{
		{Label: "a", Children: []*model.Node{
			{Label: "a1", SourceCollapsed: true, Children: []*model.Node{{Label: "a1x"}}},
		}},
		{Label: "b", SourceCollapsed: true},
		{Label: "c", SourceCollapsed: true, Children: []*model.Node{{Label: "c1"}}},
	}}
}

func TestSeed(t *testing.T) {
	root := tree()
	cur, total := Seed(root, model.CollapsedHidden)
	if total != 3 {
		t.Errorf("expected total 3, got %d", total)
	}
	// a1 at relative depth 2 is the first folded node met depth-first
	if cur != 2 {
		t.Errorf("expected current 2, got %d", cur)
	}
	if root.Children[1].Fold {
		t.Error("leaf b must not be folded")
	}
	if !root.Children[2].Fold {
		t.Error("expected c folded")
	}
}

func TestSeedExtend(t *testing.T) {
	root := tree()
	cur, total := Seed(root, model.CollapsedExtend)
	if cur != total {
		t.Errorf("expected current == total, got %d/%d", cur, total)
	}
	root.Walk(func(n *model.Node) bool {
		if n.Fold {
			t.Errorf("node %s folded in extend mode", n.Label)
		}
		return true
	})
}

func TestSeedNothingFolded(t *testing.T) {
	root := &model.Node{Children: []*model.Node{{Children: []*model.Node{{}}}}}
	cur, total := Seed(root, model.CollapsedHidden)
	if cur != 2 || total != 2 {
		t.Errorf("expected 2/2, got %d/%d", cur, total)
	}
}

func TestBuildGeneratedTree(t *testing.T) {
	blocks := testutil.QuickTree(3, 2)
	blocks[0].Collapsed = true
	doc := assemble.Assemble("Generated", blocks, nil, assemble.Options{})

	root, _, err := Build(doc, NewGoldmarkTransformer())
	if err != nil {
		t.Fatal(err)
	}
	cur, total := Seed(root, model.CollapsedHidden)

	testutil.AssertNodeCount(t, root, 15)
	testutil.AssertLabels(t, root.Children, "block 1", "block 8")
	testutil.AssertFolded(t, root, "block 1", true)
	testutil.AssertFolded(t, root, "block 8", false)
	if total != 3 || cur != 1 {
		t.Errorf("expected levels 1/3, got %d/%d", cur, total)
	}
}
