//go:build ignore

// generate_testdata.go writes synthetic graph directories for benchmarking.
// Usage: go run scripts/generate_testdata.go [outdir]
//
// Creates (under tests/testdata/graphs by default):
//
//	small/   10 pages, ~50 blocks each
//	medium/  100 pages, ~200 blocks each
//	large/   500 pages, ~500 blocks each, plus deep trees and journals
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/blockmap/pkg/model"
	"github.com/vanderheijden86/blockmap/pkg/testutil"
)

type graphSpec struct {
	name     string
	pages    int
	blocks   int
	journals int
}

var graphs = []graphSpec{
	{"small", 10, 50, 3},
	{"medium", 100, 200, 14},
	{"large", 500, 500, 60},
}

func main() {
	outputDir := "tests/testdata/graphs"
	if len(os.Args) > 1 {
		outputDir = os.Args[1]
	}

	for _, gs := range graphs {
		fmt.Printf("Generating %s graph (%d pages)...\n", gs.name, gs.pages)
		root := filepath.Join(outputDir, gs.name)
		n, err := writeGraph(root, gs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", root, err)
			os.Exit(1)
		}
		fmt.Printf("  Written %s (%d files)\n", root, n)
	}

	fmt.Println("\nDone! Graphs created in", outputDir)
}

func writeGraph(root string, gs graphSpec) (int, error) {
	for _, sub := range []string{"pages", "journals"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return 0, err
		}
	}

	files := 0
	for i := 0; i < gs.pages; i++ {
		gen := testutil.New(testutil.GeneratorConfig{
			Seed:          int64(gs.blocks*1000 + i + 1),
			Prefix:        fmt.Sprintf("p%d", i),
			CollapseRatio: 0.2,
			WithProps:     i%3 == 0,
		})
		var blocks []*model.Block
		switch {
		case i%10 == 9:
			// Every tenth page is a balanced tree to stress wide levels.
			blocks = gen.Tree(4, 4)
		default:
			blocks = gen.Random(gs.blocks)
		}
		linkPages(blocks, i, gs.pages)

		name := pageName(i)
		page := &model.Page{Name: name}
		if i%7 == 0 {
			page.Properties = map[string]any{"markmap-limit-all": 8}
		}
		if err := writeNote(root, "pages", fileName(name), testutil.ToMarkdown(page, blocks)); err != nil {
			return files, err
		}
		files++
	}

	for d := 0; d < gs.journals; d++ {
		gen := testutil.New(testutil.GeneratorConfig{Seed: int64(d + 7), Prefix: fmt.Sprintf("j%d", d)})
		blocks := gen.Wide(5)
		linkPages(blocks, d, gs.pages)
		day := fmt.Sprintf("2024_%02d_%02d.md", d/28+1, d%28+1)
		if err := writeNote(root, "journals", day, testutil.ToMarkdown(nil, blocks)); err != nil {
			return files, err
		}
		files++
	}
	return files, nil
}

// linkPages adds a [[page]] reference to every fifth top-level block so the
// linked-references mode has something to find.
func linkPages(blocks []*model.Block, seed, pages int) {
	for i, b := range blocks {
		if i%5 != 0 {
			continue
		}
		b.Content += fmt.Sprintf(" see [[%s]]", pageName((seed+i+1)%pages))
	}
}

func pageName(i int) string {
	switch i % 4 {
	case 0:
		return fmt.Sprintf("Topic %d", i)
	case 1:
		return fmt.Sprintf("Area/Topic %d", i)
	case 2:
		return fmt.Sprintf("Project %d", i)
	default:
		return fmt.Sprintf("Area/Project %d/Notes", i)
	}
}

// fileName encodes namespace separators the way the outliner stores them.
func fileName(page string) string {
	return strings.ReplaceAll(page, "/", "___") + ".md"
}

func writeNote(root, dir, name, content string) error {
	return os.WriteFile(filepath.Join(root, dir, name), []byte(content), 0o644)
}
