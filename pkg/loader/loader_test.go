package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/vanderheijden86/blockmap/pkg/host"
	"github.com/vanderheijden86/blockmap/pkg/model"
	"github.com/vanderheijden86/blockmap/pkg/testutil"
)

func projectHost(t *testing.T) *host.Memory {
	t.Helper()
	m := host.NewMemory()
	page, blocks := testutil.ProjectX()
	m.AddPage(page, blocks)
	m.AddPage(&model.Page{Name: "Notes"}, []*model.Block{
		{UUID: "n1", Content: "Kickoff for [[Project X]]", Children: []*model.Block{{UUID: "n1a", Content: "agenda"}}},
		{UUID: "n2", Content: "unrelated"},
	})
	m.AddPage(&model.Page{Name: "Project X/Design"}, nil)
	m.AddPage(&model.Page{Name: "Project X/Design/Colors"}, nil)
	m.AddPage(&model.Page{Name: "Project X/Budget/2025"}, nil)
	return m
}

func TestLoadPageMaterializesStubs(t *testing.T) {
	l := New(projectHost(t))
	tree, err := l.LoadPage(context.Background(), "project x")
	if err != nil {
		t.Fatal(err)
	}
	if tree.Title != "Project X" {
		t.Errorf("expected title Project X, got %q", tree.Title)
	}
	if tree.PageOptions().LimitFirstLevel != 2 {
		t.Errorf("expected page limit 2, got %+v", tree.PageOptions())
	}
	testutil.AssertBlockCount(t, tree.Blocks, 5)
	b := testutil.FindBlock(tree.Blocks, "b")
	if b == nil || !b.Collapsed {
		t.Fatalf("expected collapsed block b, got %+v", b)
	}
	for _, c := range b.Children {
		if c.Stub || c.Content == "" {
			t.Errorf("expected materialized child, got %+v", c)
		}
	}
}

func TestLoadPageUnknown(t *testing.T) {
	l := New(projectHost(t))
	if _, err := l.LoadPage(context.Background(), "Missing"); !errors.Is(err, host.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadCurrent(t *testing.T) {
	m := projectHost(t)
	l := New(m)
	ctx := context.Background()
	if _, err := l.LoadCurrent(ctx); !errors.Is(err, ErrNothingToRender) {
		t.Errorf("expected ErrNothingToRender, got %v", err)
	}
	if err := m.NavigateToPage(ctx, "Notes"); err != nil {
		t.Fatal(err)
	}
	tree, err := l.LoadCurrent(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if tree.Title != "Notes" {
		t.Errorf("expected Notes, got %q", tree.Title)
	}
}

func TestLoadBlock(t *testing.T) {
	l := New(projectHost(t))
	tree, err := l.LoadBlock(context.Background(), "b")
	if err != nil {
		t.Fatal(err)
	}
	if !tree.AsBlock || tree.RootBlock == nil || tree.Title != "B" {
		t.Errorf("expected block tree titled B, got %+v", tree)
	}
	if tree.Page == nil || tree.Page.Name != "project x" {
		t.Errorf("expected owning page, got %+v", tree.Page)
	}
	testutil.AssertBlockCount(t, tree.Blocks, 2)

	if _, err := l.LoadBlock(context.Background(), "nope"); !errors.Is(err, host.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadSelectionFallbacks(t *testing.T) {
	m := projectHost(t)
	l := New(m)
	ctx := context.Background()
	_ = m.NavigateToPage(ctx, "Project X")

	tree, err := l.LoadSelection(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if tree.AsBlock {
		t.Error("expected page fallback with nothing selected")
	}

	m.EditBlock("c")
	tree, _ = l.LoadSelection(ctx)
	if !tree.AsBlock || tree.RootBlock.UUID != "c" {
		t.Errorf("expected edited block c, got %+v", tree.RootBlock)
	}

	m.SetSelected("n1", "a")
	tree, _ = l.LoadSelection(ctx)
	if tree.RootBlock == nil || tree.RootBlock.UUID != "n1" {
		t.Errorf("expected first selected block n1, got %+v", tree.RootBlock)
	}
}

func TestMaterializeDropsUnknownStubs(t *testing.T) {
	l := New(projectHost(t))
	l.SetConcurrency(0)
	blocks := []*model.Block{
		model.StubBlock("a"),
		model.StubBlock("ghost"),
		{UUID: "x", Content: "x", Properties: map[string]any{"markmap-cut": 3}, Children: []*model.Block{model.StubBlock("b1")}},
	}
	out, err := l.Materialize(context.Background(), blocks)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 blocks after dropping ghost, got %d", len(out))
	}
	if out[1].Options.TruncateAt != 3 {
		t.Errorf("expected options parsed, got %+v", out[1].Options)
	}
	if out[1].Children[0].Content != "B1" {
		t.Errorf("expected stub child fetched, got %+v", out[1].Children[0])
	}
	if blocks[2].Children[0].Stub != true {
		t.Error("materialize must not modify its input")
	}
}

func TestMaterializeHostFailure(t *testing.T) {
	m := projectHost(t)
	l := New(m)
	m.Fail = errors.New("offline")
	if _, err := l.Materialize(context.Background(), []*model.Block{model.StubBlock("a")}); !errors.Is(err, host.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestMaterializeCanceled(t *testing.T) {
	l := New(projectHost(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Materialize(ctx, []*model.Block{{UUID: "a"}}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLoadLinkedReferences(t *testing.T) {
	l := New(projectHost(t))
	tree, err := l.LoadLinkedReferences(context.Background(), "Project X")
	if err != nil {
		t.Fatal(err)
	}
	if len(tree.Blocks) != 1 {
		t.Fatalf("expected one referencing page, got %d", len(tree.Blocks))
	}
	group := tree.Blocks[0]
	if group.Content != "[[Notes]]" {
		t.Errorf("expected group link to Notes, got %q", group.Content)
	}
	if len(group.Children) != 1 || group.Children[0].UUID != "n1" || len(group.Children[0].Children) != 1 {
		t.Errorf("expected n1 with its child, got %+v", group.Children)
	}

	if _, err := l.LoadLinkedReferences(context.Background(), "Notes"); !errors.Is(err, ErrNoLinkedReferences) {
		t.Errorf("expected ErrNoLinkedReferences, got %v", err)
	}
}

func TestLoadNamespaceFillsGaps(t *testing.T) {
	l := New(projectHost(t))
	tree, err := l.LoadNamespace(context.Background(), "Project X")
	if err != nil {
		t.Fatal(err)
	}
	if tree.Page == nil || tree.Title != "Project X" {
		t.Errorf("expected namespace root page, got %+v", tree)
	}
	// Budget has no page of its own but still links its child.
	budget := testutil.FindBlock(tree.Blocks, "ns:project x/budget")
	if budget == nil || len(budget.Children) != 1 {
		t.Fatalf("expected budget link with one child, got %+v", budget)
	}
	if budget.Children[0].Content != "[[Project X/Budget/2025]]" {
		t.Errorf("unexpected child link %q", budget.Children[0].Content)
	}
	testutil.AssertBlockCount(t, tree.Blocks, 4)
}

// renamedHost reports namespace pages whose display names do not carry the
// namespace prefix.
type renamedHost struct {
	*host.Memory
	pages []*model.Page
}

func (r renamedHost) NamespacePages(context.Context, string) ([]*model.Page, error) {
	return r.pages, nil
}

func TestLoadNamespaceOddDisplayNames(t *testing.T) {
	h := renamedHost{Memory: projectHost(t), pages: []*model.Page{
		{Name: "project x/palette", OriginalName: "X"},
		{Name: "project x/roadmap", OriginalName: "A much longer title than the namespace"},
		{Name: "elsewhere", OriginalName: "Elsewhere"},
		{Name: "project x/design", OriginalName: "PROJECT X/Design"},
	}}
	tree, err := New(h).LoadNamespace(context.Background(), "Project X")
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"ns:project x/palette", "ns:project x/roadmap", "ns:project x/design"} {
		if testutil.FindBlock(tree.Blocks, key) == nil {
			t.Errorf("expected link block %s", key)
		}
	}
	testutil.AssertBlockCount(t, tree.Blocks, 3)
}

func TestBlockTitle(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"## Heading", "Heading"},
		{"owner:: ana\nReal title", "Real title"},
		{"\n\nplain", "plain"},
		{"tags::", ""},
	}
	for _, tt := range tests {
		if got := BlockTitle(&model.Block{Content: tt.content}); got != tt.want {
			t.Errorf("BlockTitle(%q): expected %q, got %q", tt.content, tt.want, got)
		}
	}
}
