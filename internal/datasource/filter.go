package datasource

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/vanderheijden86/blockmap/pkg/watcher"
)

// Filter decides which files of a graph directory are notes.
type Filter struct {
	excludes []string
}

// NewFilter validates the exclude globs. Patterns match slash-separated
// paths relative to the graph root.
func NewFilter(excludes []string) (*Filter, error) {
	for _, p := range excludes {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid exclude pattern %q", p)
		}
	}
	return &Filter{excludes: excludes}, nil
}

// Excluded reports whether rel matches an exclude glob. Directories may be
// passed with a trailing slash.
func (f *Filter) Excluded(rel string) bool {
	if f == nil {
		return false
	}
	clean := strings.TrimSuffix(rel, "/")
	for _, p := range f.excludes {
		if ok, _ := doublestar.Match(p, clean); ok {
			return true
		}
		// "dir/**" also excludes the directory itself
		if strings.HasSuffix(rel, "/") && strings.HasSuffix(p, "/**") {
			if ok, _ := doublestar.Match(strings.TrimSuffix(p, "/**"), clean); ok {
				return true
			}
		}
	}
	return false
}

// Keep reports whether rel is a note file (or a directory worth descending)
// that is not excluded. It has the shape watcher.WithFilter expects.
func (f *Filter) Keep(rel string) bool {
	if f.Excluded(rel) {
		return false
	}
	return watcher.NoteFiles(rel)
}

// IsOrg reports whether rel is an org file.
func IsOrg(rel string) bool {
	return strings.EqualFold(path.Ext(rel), ".org")
}
