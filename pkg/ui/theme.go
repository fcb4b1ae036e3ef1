package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/blockmap/pkg/model"
	"github.com/vanderheijden86/blockmap/pkg/render"
)

// TermProfile holds the detected terminal color profile, computed once.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns hex on TrueColor terminals and NoColor otherwise, so
// limited terminals keep their own background.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns hex on ANSI256+ terminals and ANSI white below that.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

// Theme holds the terminal styles of the map view.
type Theme struct {
	Renderer *lipgloss.Renderer
	// Dark is the background the adaptive colors and help text are
	// picked for.
	Dark bool

	Primary lipgloss.AdaptiveColor
	Subtext lipgloss.AdaptiveColor
	Muted   lipgloss.AdaptiveColor
	Danger  lipgloss.AdaptiveColor

	// Branches colors first-level branches, in render.BranchColor order.
	Branches []lipgloss.TerminalColor
	// Background is set when a named map theme is active.
	Background lipgloss.TerminalColor

	Header  lipgloss.Style
	Footer  lipgloss.Style
	Status  lipgloss.Style
	Error   lipgloss.Style
	Overlay lipgloss.Style
}

// DefaultTheme builds the theme for the given view options. A background
// set by a map theme is honored on TrueColor terminals. The renderer's
// background is pinned to the guess from DarkBackground so adaptive colors
// never query the terminal.
func DefaultTheme(r *lipgloss.Renderer, view render.ViewOptions) Theme {
	dark := DarkBackground(view, os.Environ())
	r.SetHasDarkBackground(dark)
	t := Theme{
		Renderer: r,
		Dark:     dark,
		Primary:  lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"},
		Subtext:  lipgloss.AdaptiveColor{Light: "#666666", Dark: "#BFBFBF"},
		Muted:    lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
		Danger:   lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},
	}
	for i := 0; i < 10; i++ {
		c := render.BranchColor(i)
		t.Branches = append(t.Branches, ThemeFg(hexOf(c.R, c.G, c.B)))
	}
	if view.Background != "" && view.Background != render.DefaultViewOptions().Background {
		t.Background = ThemeBg(view.Background)
	}

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)
	t.Footer = r.NewStyle().Foreground(t.Muted)
	t.Status = r.NewStyle().Foreground(t.Subtext)
	t.Error = r.NewStyle().Foreground(t.Danger).Bold(true)
	t.Overlay = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(0, 1)
	return t
}

// DarkBackground guesses the terminal background without asking the
// terminal. A named map theme decides first, then COLORFGBG; dark otherwise.
func DarkBackground(view render.ViewOptions, env []string) bool {
	if bg := view.Background; bg != "" && bg != render.DefaultViewOptions().Background {
		return !model.IsLight(bg)
	}
	for _, kv := range env {
		v, ok := strings.CutPrefix(kv, "COLORFGBG=")
		if !ok {
			continue
		}
		fields := strings.Split(v, ";")
		n, err := strconv.Atoi(fields[len(fields)-1])
		if err != nil {
			return true
		}
		return n != 7 && (n < 9 || n > 15)
	}
	return true
}

// BranchStyle returns the style of a branch; -1 is the root.
func (t Theme) BranchStyle(branch int) lipgloss.Style {
	st := t.Renderer.NewStyle()
	if t.Background != nil {
		st = st.Background(t.Background)
	}
	if branch < 0 || len(t.Branches) == 0 {
		return st.Foreground(t.Primary)
	}
	return st.Foreground(t.Branches[branch%len(t.Branches)])
}

func hexOf(r, g, b uint8) string {
	const digits = "0123456789abcdef"
	out := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, v := range []uint8{r, g, b} {
		out[1+2*i] = digits[v>>4]
		out[2+2*i] = digits[v&0x0f]
	}
	return string(out)
}

// TestTheme returns a theme for tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout), render.DefaultViewOptions())
}
