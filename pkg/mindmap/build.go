package mindmap

import (
	"fmt"

	"github.com/vanderheijden86/blockmap/pkg/assemble"
	"github.com/vanderheijden86/blockmap/pkg/debug"
	"github.com/vanderheijden86/blockmap/pkg/model"
)

// Build parses doc with tr and reattaches block data to the resulting nodes
// by walking them in lockstep with the document outline.
func Build(doc *assemble.Document, tr Transformer) (*model.Node, Features, error) {
	root, feats, err := tr.Transform(doc.Text)
	if err != nil {
		return nil, feats, fmt.Errorf("transform document: %w", err)
	}
	root.Depth = -1
	if err := attach(root.Children, doc.Outline, 0); err != nil {
		return nil, feats, err
	}
	debug.Log("mindmap: built %d nodes", countNodes(root)-1)
	return root, feats, nil
}

func attach(nodes []*model.Node, entries []*assemble.Entry, depth int) error {
	if len(nodes) != len(entries) {
		return fmt.Errorf("node tree diverges from outline at depth %d: %d nodes, %d entries", depth, len(nodes), len(entries))
	}
	for i, n := range nodes {
		e := entries[i]
		n.Depth = depth
		n.Synthetic = e.Synthetic
		if b := e.Block; b != nil {
			n.Properties = b.Properties
			n.Options = b.Options
			n.SourceCollapsed = b.Collapsed
			n.BlockUUID = b.UUID
		}
		if err := attach(n.Children, e.Children, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func countNodes(n *model.Node) int {
	c := 0
	n.Walk(func(*model.Node) bool { c++; return true })
	return c
}
