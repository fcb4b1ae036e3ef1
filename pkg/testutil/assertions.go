package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/blockmap/pkg/model"
)

// AssertLabels verifies the labels of nodes, in order.
func AssertLabels(t *testing.T, nodes []*model.Node, expected ...string) {
	t.Helper()
	got := NodeLabels(nodes)
	if fmt.Sprint(got) != fmt.Sprint(expected) {
		t.Errorf("expected labels %q, got %q", expected, got)
	}
}

// AssertFolded verifies the fold flag of the node with the given label.
func AssertFolded(t *testing.T, root *model.Node, label string, folded bool) {
	t.Helper()
	n := FindNode(root, label)
	if n == nil {
		t.Errorf("node %q not found", label)
		return
	}
	if n.Fold != folded {
		t.Errorf("expected %q fold=%v, got %v", label, folded, n.Fold)
	}
}

// AssertNodeCount verifies the size of the subtree at root.
func AssertNodeCount(t *testing.T, root *model.Node, expected int) {
	t.Helper()
	got := 0
	root.Walk(func(*model.Node) bool { got++; return true })
	if got != expected {
		t.Errorf("expected %d nodes, got %d", expected, got)
	}
}

// AssertBlockCount verifies the number of blocks in a forest.
func AssertBlockCount(t *testing.T, blocks []*model.Block, expected int) {
	t.Helper()
	if got := model.CountBlocks(blocks); got != expected {
		t.Errorf("expected %d blocks, got %d", expected, got)
	}
}

// AssertNoDuplicateUUIDs verifies every block UUID is unique.
func AssertNoDuplicateUUIDs(t *testing.T, blocks []*model.Block) {
	t.Helper()
	seen := make(map[string]bool)
	var walk func([]*model.Block)
	walk = func(bs []*model.Block) {
		for _, b := range bs {
			if seen[b.UUID] {
				t.Errorf("duplicate block UUID: %s", b.UUID)
			}
			seen[b.UUID] = true
			walk(b.Children)
		}
	}
	walk(blocks)
}

// AssertJSONEqual compares two values after JSON round-tripping.
func AssertJSONEqual(t *testing.T, expected, actual any) {
	t.Helper()

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}
	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}
	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedJSON, actualJSON)
	}
}

// TempGraphDir creates a graph directory with pages/ and journals/.
func TempGraphDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, sub := range []string{"pages", "journals"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatalf("failed to create %s: %v", sub, err)
		}
	}
	return dir
}

// WriteNote writes content to rel inside dir and returns the full path.
func WriteNote(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create note dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write note: %v", err)
	}
	return path
}

// NodeLabels returns the labels of nodes.
func NodeLabels(nodes []*model.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Label
	}
	return out
}

// FindNode returns the first node labeled label, depth-first.
func FindNode(root *model.Node, label string) *model.Node {
	var found *model.Node
	root.Walk(func(n *model.Node) bool {
		if found != nil {
			return false
		}
		if n.Label == label {
			found = n
			return false
		}
		return true
	})
	return found
}

// FindBlock returns the block with uuid in a forest.
func FindBlock(blocks []*model.Block, uuid string) *model.Block {
	for _, b := range blocks {
		if b.UUID == uuid {
			return b
		}
		if f := FindBlock(b.Children, uuid); f != nil {
			return f
		}
	}
	return nil
}
