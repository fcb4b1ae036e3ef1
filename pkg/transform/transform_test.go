package transform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/blockmap/pkg/model"
)

type fakeResolver struct {
	blocks map[string]*model.Block
	err    error
	calls  int
}

func (f *fakeResolver) Block(_ context.Context, uuid string, _ bool) (*model.Block, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.blocks[uuid], nil
}

const (
	uuidA = "6650b3c5-9d2e-4c4b-8a7e-0d3c1f2b9a01"
	uuidB = "6650b3c5-9d2e-4c4b-8a7e-0d3c1f2b9a02"
	uuidC = "6650b3c5-9d2e-4c4b-8a7e-0d3c1f2b9a03"
	uuidD = "6650b3c5-9d2e-4c4b-8a7e-0d3c1f2b9a04"
	uuidX = "00000000-0000-0000-0000-000000000000"
)

func newResolver() *fakeResolver {
	return &fakeResolver{blocks: map[string]*model.Block{
		uuidA: {UUID: uuidA, Content: "Alpha block\nid:: " + uuidA},
		uuidB: {UUID: uuidB, Content: "## TODO Beta [[Page]]"},
		uuidC: {UUID: uuidC, Content: "Gamma"},
		uuidD: {UUID: uuidD, Content: "read https://example.com/x"},
	}}
}

func run(t *testing.T, content string, b *model.Block, cfg model.HostConfig) string {
	t.Helper()
	out, err := New(newResolver()).Transform(context.Background(), content, b, cfg)
	if err != nil {
		t.Fatalf("Transform(%q): %v", content, err)
	}
	return out
}

func TestRuleOrder(t *testing.T) {
	want := []string{
		RuleStripProperties, RuleTable, RuleAdmonition, RuleQuery, RuleBlockquote,
		RuleMacros, RuleEquations, RuleTags, RuleWorkflow, RuleReferences, RuleOrg,
		RuleHeadings, RulePageLinks, RuleURLs, RuleTruncate, RuleBackground,
		RuleCodeFences, RuleFootnotes,
	}
	rules := DefaultRules()
	if len(rules) != len(want) {
		t.Fatalf("expected %d rules, got %d", len(want), len(rules))
	}
	for i, r := range rules {
		if r.Name != want[i] {
			t.Errorf("rule %d: expected %s, got %s", i, want[i], r.Name)
		}
	}
}

func TestTransform(t *testing.T) {
	blk := &model.Block{UUID: "blk-1"}
	tests := []struct {
		name    string
		content string
		cfg     model.HostConfig
		want    string
	}{
		{"properties", "Hello\nfoo:: bar\nbaz:: qux", model.HostConfig{}, "Hello"},
		{"logbook", "Task\n:LOGBOOK:\nCLOCK: [2024-01-01]\n:END:", model.HostConfig{}, "Task"},
		{"table", "| Name | Value |\n|---|---|\n| a | 1 |", model.HostConfig{}, "📊 Name, Value"},
		{"admonition", "#+BEGIN_WARNING\nMind the gap\n#+END_WARNING", model.HostConfig{}, "⚠️ Mind the gap"},
		{"admonition lower", "#+begin_tip\nuse it\n#+end_tip", model.HostConfig{}, "💡 use it"},
		{"query", "{{query (todo now)}}", model.HostConfig{}, "🔍 [(todo now)](block:blk-1)"},
		{"advanced query", "#+BEGIN_QUERY\n{:query []}\n#+END_QUERY", model.HostConfig{}, "🔍 [query](block:blk-1)"},
		{"blockquote", "> wise words", model.HostConfig{}, "💬 wise words"},
		{"renderer", "see {{renderer :todomaster}}", model.HostConfig{}, "see [renderer]"},
		{"cloze", "capital is {{cloze Paris}}", model.HostConfig{}, "capital is Paris"},
		{"equations on", "$$E=mc^2$$", model.HostConfig{EnableEquations: true}, "$E=mc^2$"},
		{"equations off", "$$E=mc^2$$", model.HostConfig{}, "$$E=mc^2$$"},
		{"tag", "about #golang today", model.HostConfig{}, "about [#golang](page:golang) today"},
		{"bracket tag", "#[[deep work]]", model.HostConfig{}, "[#deep work](page:deep%20work)"},
		{"heading", "### Title", model.HostConfig{}, "Title"},
		{"page link", "see [[My Page]]", model.HostConfig{}, "see [My Page](page:My%20Page)"},
		{"page embed", "{{embed [[Other]]}}", model.HostConfig{}, "📄 [Other](page:Other)"},
		{"asset", "![pic](../assets/img.png)", model.HostConfig{AssetPrefix: "file:///graph"},
			"[![pic](file:///graph/assets/img.png)](image:file:///graph/assets/img.png)"},
		{"url", "go to https://go.dev.", model.HostConfig{}, "go to [https://go.dev](https://go.dev)."},
		{"url in link", "[docs](https://go.dev)", model.HostConfig{}, "[docs](https://go.dev)"},
		{"footnote", "claim[^1]", model.HostConfig{}, `claim[\^1]`},
		{"fence", "code:\n  ```go\n  x := 1", model.HostConfig{}, "code:\n```go\nx := 1\n```"},
		{"tilde fence", "code:\n  ~~~\n  x := 1", model.HostConfig{}, "code:\n~~~\nx := 1\n~~~"},
		{"closed fence", "~~~\nx\n~~~", model.HostConfig{}, "~~~\nx\n~~~"},
		{"tag beside link", "#go [docs](https://go.dev)", model.HostConfig{}, "[#go](page:go) [docs](https://go.dev)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(t, tt.content, blk, tt.cfg); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBlockKindGroupIsExclusive(t *testing.T) {
	// a table inside content that also has a query: only the table rule runs
	got := run(t, "| A | B |\n|---|---|\n{{query x}}", &model.Block{UUID: "u"}, model.HostConfig{})
	if strings.Contains(got, "🔍") {
		t.Errorf("expected query rule to be skipped, got %q", got)
	}
	if !strings.HasPrefix(got, "📊") {
		t.Errorf("expected table summary, got %q", got)
	}
}

func TestWorkflowBadge(t *testing.T) {
	got := run(t, "DONE ship it", &model.Block{UUID: "u1"}, model.HostConfig{})
	want := `<code class="status" data-block="u1" data-status="DONE" style="background: #008B74; color: #eee">DONE</code> ship it`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if got := run(t, "not TODO here", &model.Block{UUID: "u1"}, model.HostConfig{}); strings.Contains(got, "<code") {
		t.Errorf("expected only leading keywords to become badges, got %q", got)
	}
}

func TestReferences(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bare", "see ((" + uuidA + "))", "see [Alpha block](block:" + uuidA + ")"},
		{"labeled", "[click](((" + uuidC + ")))", "[click](block:" + uuidC + ")"},
		{"embed", "{{embed ((" + uuidC + "))}}", "[Gamma](block:" + uuidC + ")"},
		{"labeled page", "[here]([[Target]])", "[here](page:Target)"},
		{"labeled with tag", "[see #topic](((" + uuidC + ")))", "[see #topic](block:" + uuidC + ")"},
		{"url in referenced text", "((" + uuidD + "))", "[read https://example.com/x](block:" + uuidD + ")"},
		{"miss", "((" + uuidX + "))", MissMarker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := run(t, tt.content, &model.Block{UUID: "self"}, model.HostConfig{}); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestReferenceTextIsThemed(t *testing.T) {
	got := run(t, "(("+uuidB+"))", &model.Block{UUID: "self"}, model.HostConfig{})
	if !strings.Contains(got, `data-block="`+uuidB+`"`) {
		t.Errorf("expected badge carrying the referenced block id, got %q", got)
	}
	if strings.Contains(got, "##") || strings.Contains(got, "[[") {
		t.Errorf("expected headings and page brackets flattened, got %q", got)
	}
}

func TestReferenceAnchorCount(t *testing.T) {
	ids := []string{uuidA, uuidB, uuidC}
	var parts []string
	for _, id := range ids {
		parts = append(parts, "(("+id+"))")
	}
	content := strings.Join(parts, " and ")

	got := run(t, content, &model.Block{UUID: "self"}, model.HostConfig{})
	if n := strings.Count(got, "](block:"); n != len(ids) {
		t.Errorf("expected %d anchors, got %d in %q", len(ids), n, got)
	}
	if strings.Contains(got, MissMarker) {
		t.Errorf("expected no miss markers, got %q", got)
	}

	broken := strings.Replace(content, uuidB, uuidX, 1)
	got = run(t, broken, &model.Block{UUID: "self"}, model.HostConfig{})
	if n := strings.Count(got, "](block:"); n != len(ids)-1 {
		t.Errorf("expected %d anchors, got %d", len(ids)-1, n)
	}
	if n := strings.Count(got, MissMarker); n != 1 {
		t.Errorf("expected 1 miss marker, got %d", n)
	}
}

func TestEmptyReferencedBlockIsMiss(t *testing.T) {
	r := &fakeResolver{blocks: map[string]*model.Block{uuidA: {UUID: uuidA, Content: "id:: " + uuidA}}}
	got, err := New(r).Transform(context.Background(), "(("+uuidA+"))", nil, model.HostConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if got != MissMarker {
		t.Errorf("expected miss marker, got %q", got)
	}
}

func TestHighlightReference(t *testing.T) {
	hl := &model.Block{
		UUID:     uuidA,
		Content:  "[:span]\nhl-type:: area\nhl-page:: 3\nhl-stamp:: 1700000000",
		PageName: "hls__paper_1234",
		Properties: map[string]any{
			"hl-type":  "area",
			"hl-page":  3,
			"hl-stamp": "1700000000",
		},
	}
	r := &fakeResolver{blocks: map[string]*model.Block{uuidA: hl}}
	got, err := New(r).Transform(context.Background(), "(("+uuidA+"))", nil, model.HostConfig{AssetPrefix: "/g"})
	if err != nil {
		t.Fatal(err)
	}
	path := "/g/assets/paper_1234/3_" + uuidA + "_1700000000.png"
	want := "[![p. 3](" + path + ")](image:" + path + ")"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestHostErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	r := &fakeResolver{err: boom}
	_, err := New(r).Transform(context.Background(), "(("+uuidA+"))", nil, model.HostConfig{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped host error, got %v", err)
	}
}

func TestOrgFormat(t *testing.T) {
	cfg := model.HostConfig{PreferredFormat: model.FormatOrg}
	got := run(t, "a *bold* and +gone+ with [[Page]]", &model.Block{UUID: "u"}, cfg)
	for _, want := range []string{"**bold**", "~~gone~~", "[Page](page:Page)"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in %q", want, got)
		}
	}
}

func TestOrgFormatKeepsBadges(t *testing.T) {
	cfg := model.HostConfig{PreferredFormat: model.FormatOrg}
	got := run(t, "TODO write /docs/", &model.Block{UUID: "u"}, cfg)
	if !strings.HasPrefix(got, `<code class="status" data-block="u"`) {
		t.Errorf("expected badge to survive conversion, got %q", got)
	}
}

func TestContrast(t *testing.T) {
	if got := ForegroundFor("#000000"); got != LightForeground {
		t.Errorf("expected light foreground on black, got %s", got)
	}
	if got := ForegroundFor("#FFFFFF"); got != DarkForeground {
		t.Errorf("expected dark foreground on white, got %s", got)
	}
}

func TestBackground(t *testing.T) {
	b := &model.Block{UUID: "u", Options: model.BlockOptions{BackgroundColor: "#ffffff"}}
	got := run(t, "hi", b, model.HostConfig{})
	want := `<span style="background-color: #ffffff; color: #000000">hi</span>`
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestTruncateProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringMatching(`[a-zA-Zé ]{1,80}`).Draw(t, "text")
		k := rapid.IntRange(1, 40).Draw(t, "k")
		b := &model.Block{UUID: "u", Options: model.BlockOptions{TruncateAt: k}}

		out, err := New(nil).Transform(context.Background(), text, b, model.HostConfig{})
		if err != nil {
			t.Fatal(err)
		}
		if n := utf8.RuneCountInString(PlainText(out)); n > k {
			t.Fatalf("visible length %d exceeds %d: %q", n, k, out)
		}
		full := PlainText(text)
		if utf8.RuneCountInString(full) > k {
			tip, ok := TooltipText(out)
			if !ok || tip != full {
				t.Fatalf("expected tooltip %q, got %q (ok=%v)", full, tip, ok)
			}
		}
	})
}

func TestTransformDeterministic(t *testing.T) {
	content := fmt.Sprintf("TODO check ((%s)) #tag [[P]] https://x.org", uuidA)
	b := &model.Block{UUID: "u", Options: model.BlockOptions{TruncateAt: 12, BackgroundColor: "#333333"}}
	first := run(t, content, b, model.HostConfig{})
	for i := 0; i < 5; i++ {
		if got := run(t, content, b, model.HostConfig{}); got != first {
			t.Fatalf("run %d differs: %q vs %q", i, got, first)
		}
	}
}

func TestTransformTree(t *testing.T) {
	child := &model.Block{UUID: "c", Content: "# child"}
	root := &model.Block{UUID: "r", Content: "root ((" + uuidC + "))", Children: []*model.Block{child}}
	other := &model.Block{UUID: "o", Content: "other"}

	labels, err := New(newResolver()).TransformTree(context.Background(), []*model.Block{root, other}, model.HostConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if len(labels) != 3 {
		t.Fatalf("expected 3 labels, got %d", len(labels))
	}
	if labels[child] != "child" {
		t.Errorf("expected %q, got %q", "child", labels[child])
	}
	if labels[root] != "root [Gamma](block:"+uuidC+")" {
		t.Errorf("unexpected root label %q", labels[root])
	}
}

func TestParseAnchor(t *testing.T) {
	scheme, target, ok := ParseAnchor("page:My%20Page")
	if !ok || scheme != SchemePage || target != "My Page" {
		t.Errorf("expected page My Page, got %q %q %v", scheme, target, ok)
	}
	if _, _, ok := ParseAnchor("https://go.dev"); ok {
		t.Error("expected plain URL not to parse as anchor")
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct{ in, want string }{
		{`snake\_case\_name`, "snake_case_name"},
		{"use **bold**", "use bold"},
		{"[see](block:x) ![alt](a.png)", "see alt"},
		{`<span title="full">short…</span>`, "short…"},
		{"two\nlines", "two lines"},
		{"> quoted", "> quoted"},
	}
	for _, tt := range tests {
		if got := PlainText(tt.in); got != tt.want {
			t.Errorf("PlainText(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestOrgLabelReadsPlain(t *testing.T) {
	cfg := model.HostConfig{PreferredFormat: model.FormatOrg}
	got := run(t, "snake_case_name", &model.Block{UUID: "u"}, cfg)
	if plain := PlainText(got); plain != "snake_case_name" {
		t.Errorf("expected snake_case_name, got %q from %q", plain, got)
	}
}
