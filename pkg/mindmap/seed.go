package mindmap

import "github.com/vanderheijden86/blockmap/pkg/model"

// Seed sets the initial fold of every node below root: a node is folded when
// its block is collapsed in the host, and synthetic overflow nodes start
// folded. In extend mode everything is expanded. Leaves are never folded.
//
// It returns the number of levels visible above the first folded node met
// depth-first (totalLevel when nothing is folded) and the height of the tree.
// Levels count from the title: a folded first-level node yields 1, the
// level SetLevel takes to show the first level with its children hidden.
func Seed(root *model.Node, mode model.CollapsedMode) (currentLevel, totalLevel int) {
	if root == nil {
		return 0, 0
	}
	totalLevel = root.Height()
	currentLevel = -1

	var walk func(n *model.Node, depth int)
	walk = func(n *model.Node, depth int) {
		switch {
		case !n.HasChildren(), mode == model.CollapsedExtend:
			n.Fold = false
		case depth == 0:
			// the root itself always shows its children
			n.Fold = false
		default:
			n.Fold = n.SourceCollapsed || n.Synthetic
		}
		if n.Fold && currentLevel < 0 {
			currentLevel = depth
		}
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	walk(root, 0)

	if currentLevel < 0 {
		currentLevel = totalLevel
	}
	return currentLevel, totalLevel
}
