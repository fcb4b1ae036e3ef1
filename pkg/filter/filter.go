// Package filter prunes blocks that would produce empty or hidden mind-map
// nodes.
package filter

import (
	"regexp"
	"strings"

	"github.com/vanderheijden86/blockmap/pkg/model"
)

var headingOnly = regexp.MustCompile(`^#+\s*$`)

// Keep reports whether b survives given its already-filtered children.
func Keep(b *model.Block, survivingChildren int) bool {
	if b == nil || b.Stub {
		return false
	}
	if b.Options.Hidden || strings.EqualFold(model.PropString(b.Properties, model.KeyDisplay), "hidden") {
		return false
	}
	if strings.HasPrefix(strings.TrimSpace(b.Content), "---") {
		return false
	}
	if StripProperties(b.Content) == "" && survivingChildren == 0 {
		return false
	}
	return true
}

// StripProperties removes properties, drawers and bare heading markers and
// returns the trimmed remainder.
func StripProperties(content string) string {
	s := model.StripProperties(content)
	if headingOnly.MatchString(s) {
		return ""
	}
	return s
}

// Filter returns a new forest with every pruned block removed. Children are
// decided before their parent; a pruned block takes its subtree with it.
func Filter(blocks []*model.Block) []*model.Block {
	var out []*model.Block
	for _, b := range blocks {
		if fb := filterBlock(b); fb != nil {
			out = append(out, fb)
		}
	}
	return out
}

func filterBlock(b *model.Block) *model.Block {
	if b == nil {
		return nil
	}
	children := Filter(b.Children)
	if !Keep(b, len(children)) {
		return nil
	}
	cp := b.ShallowCopy()
	cp.Children = children
	return cp
}
