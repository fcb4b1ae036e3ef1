// Package keys maps key presses to navigation commands and applies them to a
// nav.Session.
package keys

import (
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/bubbles/key"
)

// Command names one user action.
type Command string

const (
	None          Command = ""
	FocusIn       Command = "focus-in"
	FocusOut      Command = "focus-out"
	FocusNext     Command = "focus-next"
	FocusPrevious Command = "focus-previous"
	FocusReset    Command = "focus-reset"
	Level0        Command = "level-0"
	Level1        Command = "level-1"
	Level2        Command = "level-2"
	Level3        Command = "level-3"
	Level4        Command = "level-4"
	Level5        Command = "level-5"
	ExpandLevel   Command = "expand-level"
	CollapseLevel Command = "collapse-level"
	StepExpand    Command = "step-expand"
	StepCollapse  Command = "step-collapse"
	ZoomIn        Command = "zoom-in"
	ZoomOut       Command = "zoom-out"
	PanUp         Command = "pan-up"
	PanDown       Command = "pan-down"
	PanLeft       Command = "pan-left"
	PanRight      Command = "pan-right"
	Fit           Command = "fit"
	ToggleHelp    Command = "toggle-help"
	Dismiss       Command = "dismiss"
)

// Commands lists every command in help order.
var Commands = []Command{
	FocusIn, FocusOut, FocusNext, FocusPrevious, FocusReset,
	Level0, Level1, Level2, Level3, Level4, Level5,
	ExpandLevel, CollapseLevel, StepExpand, StepCollapse,
	ZoomIn, ZoomOut, PanUp, PanDown, PanLeft, PanRight, Fit,
	ToggleHelp, Dismiss,
}

// ErrUnknownCommand is returned by ParseCommand for names not in Commands.
var ErrUnknownCommand = errors.New("unknown command")

// ParseCommand looks up a command by name.
func ParseCommand(name string) (Command, error) {
	for _, c := range Commands {
		if string(c) == name {
			return c, nil
		}
	}
	return None, fmt.Errorf("%w %q", ErrUnknownCommand, name)
}

// Level returns the absolute level of a level-N command.
func (c Command) Level() (int, bool) {
	switch c {
	case Level0, Level1, Level2, Level3, Level4, Level5:
		return int(c[len(c)-1] - '0'), true
	}
	return 0, false
}

var defaults = map[Command]struct {
	keys []string
	help string
}{
	FocusIn:       {[]string{"n"}, "focus first child"},
	FocusOut:      {[]string{"b"}, "focus parent"},
	FocusNext:     {[]string{"j"}, "next sibling"},
	FocusPrevious: {[]string{"k"}, "previous sibling"},
	FocusReset:    {[]string{"r"}, "back to overview"},
	Level0:        {[]string{"0"}, "collapse all"},
	Level1:        {[]string{"1"}, "show 1 level"},
	Level2:        {[]string{"2"}, "show 2 levels"},
	Level3:        {[]string{"3"}, "show 3 levels"},
	Level4:        {[]string{"4"}, "show 4 levels"},
	Level5:        {[]string{"5"}, "show 5 levels"},
	ExpandLevel:   {[]string{"]"}, "one level more"},
	CollapseLevel: {[]string{"["}, "one level less"},
	StepExpand:    {[]string{"."}, "expand one node"},
	StepCollapse:  {[]string{","}, "collapse one node"},
	ZoomIn:        {[]string{"=", "+"}, "zoom in"},
	ZoomOut:       {[]string{"-"}, "zoom out"},
	PanUp:         {[]string{"up"}, "pan up"},
	PanDown:       {[]string{"down"}, "pan down"},
	PanLeft:       {[]string{"left"}, "pan left"},
	PanRight:      {[]string{"right"}, "pan right"},
	Fit:           {[]string{" ", "space"}, "fit to view"},
	ToggleHelp:    {[]string{"?"}, "toggle help"},
	Dismiss:       {[]string{"esc", "q"}, "close"},
}

// KeyMap binds commands to keys.
type KeyMap struct {
	bindings map[Command]key.Binding
}

// DefaultKeyMap returns the built-in bindings.
func DefaultKeyMap() KeyMap {
	m := KeyMap{bindings: make(map[Command]key.Binding, len(defaults))}
	for cmd, d := range defaults {
		m.bindings[cmd] = newBinding(d.keys, d.help)
	}
	return m
}

func newBinding(keys []string, help string) key.Binding {
	label := keys[0]
	if label == " " {
		label = "space"
	}
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(label, help))
}

// WithOverrides returns a copy of m where each named command is rebound to
// the given keys. Unknown command names are an error.
func (m KeyMap) WithOverrides(overrides map[string][]string) (KeyMap, error) {
	out := KeyMap{bindings: make(map[Command]key.Binding, len(m.bindings))}
	for c, b := range m.bindings {
		out.bindings[c] = b
	}
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd := Command(name)
		if _, ok := defaults[cmd]; !ok {
			return m, fmt.Errorf("unknown command %q in key bindings", name)
		}
		keys := overrides[name]
		if len(keys) == 0 {
			return m, fmt.Errorf("command %q has no keys", name)
		}
		out.bindings[cmd] = newBinding(keys, defaults[cmd].help)
	}
	return out, nil
}

type keyString string

func (k keyString) String() string { return string(k) }

// Resolve returns the command bound to k.
func (m KeyMap) Resolve(k string) Command {
	for _, cmd := range Commands {
		if b, ok := m.bindings[cmd]; ok && key.Matches(keyString(k), b) {
			return cmd
		}
	}
	return None
}

// Binding returns the binding for cmd.
func (m KeyMap) Binding(cmd Command) key.Binding {
	return m.bindings[cmd]
}

// ShortHelp implements help.KeyMap.
func (m KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		m.bindings[FocusIn], m.bindings[FocusOut], m.bindings[FocusNext],
		m.bindings[FocusPrevious], m.bindings[ToggleHelp], m.bindings[Dismiss],
	}
}

// FullHelp implements help.KeyMap.
func (m KeyMap) FullHelp() [][]key.Binding {
	group := func(cmds ...Command) []key.Binding {
		out := make([]key.Binding, len(cmds))
		for i, c := range cmds {
			out[i] = m.bindings[c]
		}
		return out
	}
	return [][]key.Binding{
		group(FocusIn, FocusOut, FocusNext, FocusPrevious, FocusReset),
		group(Level0, Level1, Level2, Level3, Level4, Level5),
		group(ExpandLevel, CollapseLevel, StepExpand, StepCollapse),
		group(ZoomIn, ZoomOut, PanUp, PanDown, PanLeft, PanRight, Fit),
		group(ToggleHelp, Dismiss),
	}
}
