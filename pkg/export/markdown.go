package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/blockmap/pkg/assemble"
	"github.com/vanderheijden86/blockmap/pkg/model"
)

// SaveDocument writes the assembled nested-list document to path.
func SaveDocument(doc *assemble.Document, path string) error {
	if doc == nil {
		return fmt.Errorf("nothing to export")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(doc.Text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Outline renders the node tree as a nested markdown list, the root as a
// heading. With visibleOnly, children of folded nodes are left out and the
// node is marked with a trailing " +".
func Outline(root *model.Node, visibleOnly bool) string {
	if root == nil {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", oneLine(root.Label))
	var write func(nodes []*model.Node, depth int)
	write = func(nodes []*model.Node, depth int) {
		for _, n := range nodes {
			label := oneLine(n.Label)
			hide := visibleOnly && n.Fold && n.HasChildren()
			if hide {
				label += " +"
			}
			fmt.Fprintf(&sb, "%s- %s\n", strings.Repeat("  ", depth), label)
			if !hide {
				write(n.Children, depth+1)
			}
		}
	}
	write(root.Children, 0)
	return sb.String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
