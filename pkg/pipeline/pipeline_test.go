package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/vanderheijden86/blockmap/pkg/assemble"
	"github.com/vanderheijden86/blockmap/pkg/host"
	"github.com/vanderheijden86/blockmap/pkg/loader"
	"github.com/vanderheijden86/blockmap/pkg/logging"
	"github.com/vanderheijden86/blockmap/pkg/model"
	"github.com/vanderheijden86/blockmap/pkg/render"
)

type recorder struct {
	mu    sync.Mutex
	roots []*model.Node
}

func (r *recorder) Sync(root *model.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roots = append(r.roots, root)
	return nil
}

func (r *recorder) Instance() render.Instance { return nil }

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.roots)
}

func projectXHost(t *testing.T) *host.Memory {
	t.Helper()
	m := host.NewMemory()
	m.AddPage(&model.Page{Name: "Project X", Properties: map[string]any{"markmap-limit": 2}}, []*model.Block{
		{UUID: "a", Content: "A"},
		{UUID: "b", Content: "B", Collapsed: true, Children: []*model.Block{
			{UUID: "b1", Content: "B1"},
			{UUID: "b2", Content: "B2"},
		}},
		{UUID: "c", Content: "C"},
	})
	if err := m.NavigateToPage(context.Background(), "Project X"); err != nil {
		t.Fatal(err)
	}
	return m
}

func labels(nodes []*model.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Label
	}
	return out
}

func TestRenderProjectX(t *testing.T) {
	m := projectXHost(t)
	rec := &recorder{}
	r := New(m, rec)

	res, err := r.Render(context.Background(), Request{Mode: ModeCurrent})
	if err != nil {
		t.Fatal(err)
	}
	root := res.Root
	if root.Label != "Project X" {
		t.Errorf("expected title Project X, got %q", root.Label)
	}
	if got := fmt.Sprint(labels(root.Children)); got != fmt.Sprint([]string{"A", "B", assemble.OverflowLabel}) {
		t.Fatalf("expected [A B …], got %s", got)
	}
	b, over := root.Children[1], root.Children[2]
	if !b.Fold || fmt.Sprint(labels(b.Children)) != "[B1 B2]" {
		t.Errorf("expected B folded with [B1 B2], got fold=%v %v", b.Fold, labels(b.Children))
	}
	if !over.Fold || fmt.Sprint(labels(over.Children)) != "[C]" {
		t.Errorf("expected overflow folded with [C], got fold=%v %v", over.Fold, labels(over.Children))
	}

	if r.Session() != res.Session || res.Session == nil {
		t.Error("expected the new session to be installed")
	}
	if rec.count() != 1 || rec.roots[0] != root {
		t.Errorf("expected exactly one draw of the root, got %d", rec.count())
	}
	if res.Generation != 1 {
		t.Errorf("expected generation 1, got %d", res.Generation)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	m := projectXHost(t)
	r := New(m, &recorder{})
	first, err := r.Render(context.Background(), Request{Mode: ModePage, Target: "project x"})
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Render(context.Background(), Request{Mode: ModePage, Target: "Project X"})
	if err != nil {
		t.Fatal(err)
	}
	if first.Document.Text != second.Document.Text {
		t.Errorf("documents differ:\n%s\n---\n%s", first.Document.Text, second.Document.Text)
	}
	if first.Root == second.Root {
		t.Error("expected a fresh node tree per render")
	}
}

func TestHostErrorKeepsPreviousSession(t *testing.T) {
	m := projectXHost(t)
	var buf bytes.Buffer
	r := New(m, &recorder{}, WithLogger(logging.NewWithLevel(&buf, log.DebugLevel)))

	if _, err := r.Render(context.Background(), Request{Mode: ModeCurrent}); err != nil {
		t.Fatal(err)
	}
	prev := r.Session()

	m.Fail = errors.New("connection lost")
	_, err := r.Render(context.Background(), Request{Mode: ModeCurrent})
	if !errors.Is(err, host.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if r.Session() != prev {
		t.Error("expected the previous session to survive a failed render")
	}
	if !strings.Contains(buf.String(), "host error") {
		t.Errorf("expected host error to be logged, got:\n%s", buf.String())
	}
}

func TestNoLinkedReferencesWarns(t *testing.T) {
	m := projectXHost(t)
	var buf bytes.Buffer
	r := New(m, &recorder{}, WithLogger(logging.New(&buf)))

	_, err := r.Render(context.Background(), Request{Mode: ModeLinked, Target: "Project X"})
	if !errors.Is(err, loader.ErrNoLinkedReferences) {
		t.Fatalf("expected ErrNoLinkedReferences, got %v", err)
	}
	if !strings.Contains(buf.String(), "no linked references") {
		t.Errorf("expected a warning, got:\n%s", buf.String())
	}
	if r.Session() != nil {
		t.Error("expected no session after an aborted first render")
	}
}

func TestLinkedReferences(t *testing.T) {
	m := projectXHost(t)
	m.AddPage(&model.Page{Name: "Journal"}, []*model.Block{
		{UUID: "j1", Content: "talked about [[Project X]]", Children: []*model.Block{
			{UUID: "j2", Content: "follow up"},
		}},
		{UUID: "j3", Content: "unrelated"},
	})
	r := New(m, &recorder{})
	res, err := r.Render(context.Background(), Request{Mode: ModeLinked, Target: "Project X"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Root.Children) != 1 {
		t.Fatalf("expected one referencing page, got %d", len(res.Root.Children))
	}
	group := res.Root.Children[0]
	if !strings.Contains(group.Label, "Journal") {
		t.Errorf("expected the group to name Journal, got %q", group.Label)
	}
	if len(group.Children) != 1 || len(group.Children[0].Children) != 1 {
		t.Errorf("expected the referencing block and its child")
	}
}

func TestBlockMode(t *testing.T) {
	m := projectXHost(t)
	r := New(m, &recorder{})
	res, err := r.Render(context.Background(), Request{Mode: ModeBlock, Target: "b"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Root.Label != assemble.HomeGlyph+"B" {
		t.Errorf("expected home-marked title, got %q", res.Root.Label)
	}
	if got := fmt.Sprint(labels(res.Root.Children)); got != "[B1 B2]" {
		t.Errorf("expected [B1 B2], got %s", got)
	}
}

func TestUnclosedContainersKeepChildren(t *testing.T) {
	shapes := []string{
		"~~~\nsome code",
		"```\nsome code",
		"<!-- draft",
		"<pre>",
		"<script>",
		"<style>",
		"<textarea>",
		"<?xml",
		"<div>",
		"Plain",
	}
	for _, content := range shapes {
		t.Run(content, func(t *testing.T) {
			m := host.NewMemory()
			m.AddPage(&model.Page{Name: "Shapes"}, []*model.Block{
				{UUID: "x", Content: content, Children: []*model.Block{{UUID: "x1", Content: "child"}}},
				{UUID: "y", Content: "sibling"},
			})
			r := New(m, &recorder{})
			res, err := r.Render(context.Background(), Request{Mode: ModePage, Target: "Shapes"})
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			kids := res.Root.Children
			if len(kids) != 2 || kids[1].Label != "sibling" {
				t.Fatalf("expected two top-level nodes, got %v", labels(kids))
			}
			if got := fmt.Sprint(labels(kids[0].Children)); got != "[child]" {
				t.Errorf("expected [child] under %q, got %s", content, got)
			}
			first := strings.SplitN(kids[0].Label, "\n", 2)[0]
			if want := strings.SplitN(content, "\n", 2)[0]; first != want {
				t.Errorf("expected label to start with %q, got %q", want, kids[0].Label)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"page", "block", "linked", "namespace", "selection", "current"} {
		if _, err := ParseMode(s); err != nil {
			t.Errorf("ParseMode(%q): %v", s, err)
		}
	}
	if m, _ := ParseMode(""); m != ModeCurrent {
		t.Errorf("expected empty mode to mean current, got %q", m)
	}
	if _, err := ParseMode("sideways"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestHandleEvents(t *testing.T) {
	m := projectXHost(t)
	rec := &recorder{}
	r := New(m, rec)
	ctx := context.Background()

	steps := []struct {
		ev    host.Event
		draws int
	}{
		{host.Event{Kind: host.RouteChanged}, 0},
		{host.Event{Kind: host.VisibilityChanged, Visible: true}, 1},
		{host.Event{Kind: host.RouteChanged}, 2},
		{host.Event{Kind: host.SettingsChanged}, 3},
		{host.Event{Kind: host.GraphChanged}, 4},
		{host.Event{Kind: host.VisibilityChanged, Visible: false}, 4},
		{host.Event{Kind: host.GraphChanged}, 4},
		{host.Event{Kind: host.RouteChanged}, 4},
	}
	for i, s := range steps {
		if err := r.Handle(ctx, s.ev); err != nil {
			t.Fatalf("step %d (%s): %v", i, s.ev.Kind, err)
		}
		if rec.count() != s.draws {
			t.Errorf("step %d (%s): expected %d draws, got %d", i, s.ev.Kind, s.draws, rec.count())
		}
	}
}

func TestHiddenSurfaceDefersGraphAndSettings(t *testing.T) {
	m := projectXHost(t)
	rec := &recorder{}
	r := New(m, rec)
	ctx := context.Background()

	for _, kind := range []host.EventKind{host.GraphChanged, host.SettingsChanged} {
		if err := r.Handle(ctx, host.Event{Kind: kind}); err != nil {
			t.Fatal(err)
		}
	}
	if rec.count() != 0 {
		t.Fatalf("expected no draws while hidden, got %d", rec.count())
	}

	m.AddPage(&model.Page{Name: "Project X"}, []*model.Block{{UUID: "n", Content: "Changed"}})
	if err := r.Handle(ctx, host.Event{Kind: host.VisibilityChanged, Visible: true}); err != nil {
		t.Fatal(err)
	}
	if rec.count() != 1 {
		t.Fatalf("expected one draw on show, got %d", rec.count())
	}
	if got := fmt.Sprint(labels(r.Last().Root.Children)); got != "[Changed]" {
		t.Errorf("expected the changed graph on show, got %s", got)
	}
}

func TestRunStopsWhenChannelCloses(t *testing.T) {
	m := projectXHost(t)
	rec := &recorder{}
	r := New(m, rec, WithVisible(true))
	events := make(chan host.Event, 2)
	events <- host.Event{Kind: host.SettingsChanged}
	close(events)
	if err := r.Run(context.Background(), events); err != nil {
		t.Fatal(err)
	}
	if rec.count() != 1 {
		t.Errorf("expected one draw, got %d", rec.count())
	}
}

// gatedHost blocks the first Config call until release is closed.
type gatedHost struct {
	*host.Memory
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (g *gatedHost) Config(ctx context.Context) (model.HostConfig, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.Memory.Config(ctx)
}

func TestSupersededRenderIsDiscarded(t *testing.T) {
	g := &gatedHost{Memory: projectXHost(t), entered: make(chan struct{}), release: make(chan struct{})}
	g.AddPage(&model.Page{Name: "Other"}, []*model.Block{{UUID: "o", Content: "O"}})
	r := New(g, &recorder{})

	done := make(chan error, 1)
	go func() {
		_, err := r.Render(context.Background(), Request{Mode: ModePage, Target: "Project X"})
		done <- err
	}()
	<-g.entered

	newer, err := r.Render(context.Background(), Request{Mode: ModePage, Target: "Other"})
	if err != nil {
		t.Fatal(err)
	}
	close(g.release)

	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if r.Session() != newer.Session {
		t.Error("expected the newer render to stay installed")
	}
	if r.Last().Root.Label != "Other" {
		t.Errorf("expected Other, got %q", r.Last().Root.Label)
	}
}
