package render

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
)

// Theme is a background/foreground pair for the whole view.
type Theme struct {
	Name       string
	Background string
	Foreground string
}

// ThemeAuto keeps the configured colors; ThemeRandom picks one of Themes.
const (
	ThemeAuto   = "auto"
	ThemeRandom = "random"
)

// Themes maps theme names to color pairs. Light themes use a pale background
// with a deep foreground of the same hue, dark themes the reverse.
var Themes = map[string]Theme{
	"light-gray":   {"light-gray", "#f3f4f6", "#111827"},
	"light-red":    {"light-red", "#fee2e2", "#7f1d1d"},
	"light-blue":   {"light-blue", "#dbeafe", "#1e3a8a"},
	"light-green":  {"light-green", "#dcfce7", "#14532d"},
	"light-yellow": {"light-yellow", "#fef9c3", "#713f12"},
	"light-purple": {"light-purple", "#f3e8ff", "#581c87"},
	"light-pink":   {"light-pink", "#fce7f3", "#831843"},
	"light-indigo": {"light-indigo", "#e0e7ff", "#312e81"},
	"dark-gray":    {"dark-gray", "#111827", "#f3f4f6"},
	"dark-red":     {"dark-red", "#7f1d1d", "#fee2e2"},
	"dark-blue":    {"dark-blue", "#1e3a8a", "#dbeafe"},
	"dark-green":   {"dark-green", "#14532d", "#dcfce7"},
	"dark-yellow":  {"dark-yellow", "#713f12", "#fef9c3"},
	"dark-purple":  {"dark-purple", "#581c87", "#f3e8ff"},
	"dark-pink":    {"dark-pink", "#831843", "#fce7f3"},
	"dark-indigo":  {"dark-indigo", "#312e81", "#e0e7ff"},
}

// ThemeNames returns the theme names sorted.
func ThemeNames() []string {
	names := make([]string, 0, len(Themes))
	for n := range Themes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RandomTheme picks a theme using r, or the global source when r is nil.
func RandomTheme(r *rand.Rand) Theme {
	names := ThemeNames()
	var i int
	if r != nil {
		i = r.IntN(len(names))
	} else {
		i = rand.IntN(len(names))
	}
	return Themes[names[i]]
}

// WithTheme returns opts with the named theme's colors applied.
func (o ViewOptions) WithTheme(name string) (ViewOptions, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "", ThemeAuto:
		return o, nil
	case ThemeRandom:
		t := RandomTheme(nil)
		o.Background, o.Foreground = t.Background, t.Foreground
		return o, nil
	}
	t, ok := Themes[name]
	if !ok {
		return o, fmt.Errorf("unknown theme %q", name)
	}
	o.Background, o.Foreground = t.Background, t.Foreground
	return o, nil
}
