package render

import (
	"bytes"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/vanderheijden86/blockmap/pkg/model"
)

type countingEngine struct {
	creates int
	inst    *SVGInstance
}

func (e *countingEngine) Create(root *model.Node, opts ViewOptions) (Instance, error) {
	e.creates++
	inst, err := SVGEngine{}.Create(root, opts)
	if err != nil {
		return nil, err
	}
	e.inst = inst.(*SVGInstance)
	return inst, nil
}

func sample() *model.Node {
	return &model.Node{Label: "Root", Depth: -1, Children: []*model.Node{
		{Label: "A", BlockUUID: "a", Children: []*model.Node{{Label: "A1"}, {Label: "A2"}}},
		{Label: "B", Fold: true, Children: []*model.Node{{Label: "B1"}}},
	}}
}

func TestBridgeCreatesOnce(t *testing.T) {
	eng := &countingEngine{}
	b := NewBridge(eng, DefaultViewOptions())
	if b.Instance() != nil {
		t.Fatal("expected no instance before first sync")
	}
	for i := 0; i < 3; i++ {
		if err := b.Sync(sample()); err != nil {
			t.Fatal(err)
		}
	}
	if eng.creates != 1 {
		t.Errorf("expected 1 create, got %d", eng.creates)
	}
	if b.Syncs() != 3 {
		t.Errorf("expected 3 syncs, got %d", b.Syncs())
	}
}

func TestLayoutSkipsFoldedChildren(t *testing.T) {
	l := ComputeLayout(sample(), DefaultViewOptions())
	var texts []string
	for _, b := range l.Boxes {
		texts = append(texts, b.Text)
	}
	if got := strings.Join(texts, ","); got != "Root,A,A1,A2,B" {
		t.Errorf("expected Root,A,A1,A2,B got %s", got)
	}
	for _, b := range l.Boxes {
		if b.Text == "B" && !b.Folded {
			t.Error("expected B marked folded")
		}
	}
}

func TestLayoutCentersParents(t *testing.T) {
	l := ComputeLayout(sample(), DefaultViewOptions())
	a, a1, a2 := l.Boxes[1], l.Boxes[2], l.Boxes[3]
	if a.Y != (a1.Y+a2.Y)/2 {
		t.Errorf("expected A centered between children, got %v vs %v/%v", a.Y, a1.Y, a2.Y)
	}
	if a1.X <= a.X {
		t.Errorf("expected children to the right of parent")
	}
}

func TestDisplayText(t *testing.T) {
	tests := []struct {
		label string
		width int
		want  string
	}{
		{"[x](page:x) and <b>y</b>\nsecond", 0, "x and y"},
		{"abcdefghij", 5, "abcd…"},
		{`snake\_case\_name`, 0, "snake_case_name"},
		{"use **bold** and *soft*", 0, "use bold and soft"},
		{"~~gone~~ `x := 1`", 0, "gone x := 1"},
		{"- looks like a list", 0, "- looks like a list"},
		{"## not a heading", 0, "## not a heading"},
		{"```go\nx := 1\n```", 0, "x := 1"},
		{"<pre>", 0, "<pre>"},
		{"Tom &amp; Jerry", 0, "Tom & Jerry"},
	}
	for _, tt := range tests {
		if got := DisplayText(tt.label, tt.width); got != tt.want {
			t.Errorf("DisplayText(%q, %d): expected %q, got %q", tt.label, tt.width, tt.want, got)
		}
	}
}

func TestViewport(t *testing.T) {
	v := NewViewport(100, 100)
	v.Content = Rect{W: 200, H: 100}
	_ = v.Fit()
	if v.T.K != 0.5 {
		t.Errorf("expected scale 0.5, got %v", v.T.K)
	}
	b := v.Bounds()
	if math.Abs(b.X) > 1e-9 || math.Abs(b.Y-25) > 1e-9 {
		t.Errorf("expected content centered, got %+v", b)
	}

	before := v.T
	_ = v.Pan(10, -5)
	if v.T.X != before.X+10 || v.T.Y != before.Y-5 {
		t.Errorf("unexpected pan result %+v", v.T)
	}
	_ = v.Rescale(2)
	if v.T.K != 1 {
		t.Errorf("expected scale 1 after rescale, got %v", v.T.K)
	}
}

func TestSVGOutput(t *testing.T) {
	inst, err := SVGEngine{}.Create(sample(), DefaultViewOptions())
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := inst.(*SVGInstance).WriteSVG(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"<svg", ">Root</text>", ">A1</text>", "block:a"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in svg output", want)
		}
	}
	if strings.Contains(out, ">B1</text>") {
		t.Error("folded child must not be drawn")
	}
}

func TestWritePNG(t *testing.T) {
	inst, err := SVGEngine{}.Create(sample(), DefaultViewOptions())
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := WritePNG(&buf, inst.(*SVGInstance), 10); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() < 20 {
		t.Errorf("unexpected image width %d", img.Bounds().Dx())
	}
}
