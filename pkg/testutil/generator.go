// Package testutil provides outline fixtures and assertions shared by the
// package tests. All generators produce deterministic output.
package testutil

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/vanderheijden86/blockmap/pkg/model"
)

// fixtureSpace namespaces generated block UUIDs.
var fixtureSpace = uuid.MustParse("6f1c2a7e-8d4b-4f3a-9c5e-2b7d1e0a4c68")

// GeneratorConfig controls outline generation.
type GeneratorConfig struct {
	Seed          int64   // Random seed (0 = 42)
	Prefix        string  // Content prefix (default "block")
	CollapseRatio float64 // Share of parent blocks marked collapsed
	WithProps     bool    // Attach a property line to some blocks
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{Seed: 42, Prefix: "block"}
}

// Generator creates block forests of various shapes.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
	n   int
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "block"
	}
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// UUID returns the stable UUID generated for name.
func UUID(name string) string {
	return uuid.NewSHA1(fixtureSpace, []byte(name)).String()
}

func (g *Generator) block() *model.Block {
	g.n++
	name := fmt.Sprintf("%s %d", g.cfg.Prefix, g.n)
	b := &model.Block{UUID: UUID(name), Content: name}
	if g.cfg.WithProps && g.rng.Intn(4) == 0 {
		b.Properties = map[string]any{"tag": fmt.Sprintf("t%d", g.rng.Intn(3))}
	}
	return b
}

func (g *Generator) finish(b *model.Block) {
	if len(b.Children) > 0 && g.cfg.CollapseRatio > 0 && g.rng.Float64() < g.cfg.CollapseRatio {
		b.Collapsed = true
	}
}

// Chain creates one block nested depth levels deep.
func (g *Generator) Chain(depth int) []*model.Block {
	if depth < 1 {
		return nil
	}
	root := g.block()
	cur := root
	for i := 1; i < depth; i++ {
		c := g.block()
		cur.Children = []*model.Block{c}
		cur = c
	}
	var finish func(*model.Block)
	finish = func(b *model.Block) {
		for _, c := range b.Children {
			finish(c)
		}
		g.finish(b)
	}
	finish(root)
	return []*model.Block{root}
}

// Wide creates n top-level leaf blocks.
func (g *Generator) Wide(n int) []*model.Block {
	out := make([]*model.Block, n)
	for i := range out {
		out[i] = g.block()
	}
	return out
}

// Tree creates breadth top-level blocks, each with breadth children, depth
// levels deep.
func (g *Generator) Tree(depth, breadth int) []*model.Block {
	if depth < 1 {
		return nil
	}
	out := make([]*model.Block, breadth)
	for i := range out {
		b := g.block()
		b.Children = g.Tree(depth-1, breadth)
		g.finish(b)
		out[i] = b
	}
	return out
}

// Random creates a forest of roughly size blocks with random shape.
func (g *Generator) Random(size int) []*model.Block {
	var top []*model.Block
	var all []*model.Block
	for i := 0; i < size; i++ {
		b := g.block()
		if len(all) == 0 || g.rng.Intn(4) == 0 {
			top = append(top, b)
		} else {
			p := all[g.rng.Intn(len(all))]
			p.Children = append(p.Children, b)
		}
		all = append(all, b)
	}
	for _, b := range all {
		g.finish(b)
	}
	return top
}

// ProjectX returns the page "Project X" with blocks A, B (collapsed, with
// B1 and B2) and C, limited to two top-level siblings.
func ProjectX() (*model.Page, []*model.Block) {
	page := &model.Page{Name: "Project X", Properties: map[string]any{"markmap-limit": 2}}
	return page, []*model.Block{
		{UUID: "a", Content: "A"},
		{UUID: "b", Content: "B", Collapsed: true, Children: []*model.Block{
			{UUID: "b1", Content: "B1"},
			{UUID: "b2", Content: "B2"},
		}},
		{UUID: "c", Content: "C"},
	}
}

// ToMarkdown renders blocks as an outliner markdown file: one "- " bullet per
// block, two spaces per level, properties and ids as "key:: value" lines.
func ToMarkdown(page *model.Page, blocks []*model.Block) string {
	var sb strings.Builder
	if page != nil {
		for _, k := range sortedKeys(page.Properties) {
			fmt.Fprintf(&sb, "%s:: %v\n", k, page.Properties[k])
		}
		if len(page.Properties) > 0 {
			sb.WriteString("\n")
		}
	}
	var write func([]*model.Block, int)
	write = func(bs []*model.Block, depth int) {
		indent := strings.Repeat("\t", depth)
		for _, b := range bs {
			lines := strings.Split(b.Content, "\n")
			fmt.Fprintf(&sb, "%s- %s\n", indent, lines[0])
			for _, l := range lines[1:] {
				fmt.Fprintf(&sb, "%s  %s\n", indent, l)
			}
			if b.Collapsed {
				fmt.Fprintf(&sb, "%s  collapsed:: true\n", indent)
			}
			for _, k := range sortedKeys(b.Properties) {
				fmt.Fprintf(&sb, "%s  %s:: %v\n", indent, k, b.Properties[k])
			}
			if b.UUID != "" {
				fmt.Fprintf(&sb, "%s  id:: %s\n", indent, b.UUID)
			}
			write(b.Children, depth+1)
		}
	}
	write(blocks, 0)
	return sb.String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// QuickTree is Tree with the default generator.
func QuickTree(depth, breadth int) []*model.Block {
	return NewDefault().Tree(depth, breadth)
}

// QuickRandom is Random with the default generator.
func QuickRandom(size int) []*model.Block {
	return NewDefault().Random(size)
}
