package model

import "testing"

func TestNormalizeKey(t *testing.T) {
	for _, k := range []string{"markmap-display", "markMapDisplay", "markmap_display", " MARKMAP-DISPLAY "} {
		if got := NormalizeKey(k); got != KeyDisplay {
			t.Errorf("NormalizeKey(%q): expected %q, got %q", k, KeyDisplay, got)
		}
	}
}

func TestParseBlockOptions(t *testing.T) {
	tests := []struct {
		name     string
		props    map[string]any
		want     BlockOptions
		problems int
	}{
		{"empty", nil, BlockOptions{}, 0},
		{"hidden", map[string]any{"markmap-display": "Hidden"}, BlockOptions{Hidden: true}, 0},
		{"display other", map[string]any{"markmap-display": "shown"}, BlockOptions{}, 0},
		{"cut", map[string]any{"markmap-cut": "12"}, BlockOptions{TruncateAt: 12}, 0},
		{"cut float", map[string]any{"markmap-cut": 8.0}, BlockOptions{TruncateAt: 8}, 0},
		{"cut zero", map[string]any{"markmap-cut": 0}, BlockOptions{}, 1},
		{"cut junk", map[string]any{"markmap-cut": "many"}, BlockOptions{}, 1},
		{"color named", map[string]any{"background-color": "red"}, BlockOptions{BackgroundColor: "#af3a3a"}, 0},
		{"color short", map[string]any{"background-color": "#FA0"}, BlockOptions{BackgroundColor: "#ffaa00"}, 0},
		{"color bad", map[string]any{"background-color": "#12"}, BlockOptions{}, 1},
		{"limit", map[string]any{"markmap-limit": 3}, BlockOptions{SiblingLimit: 3}, 0},
		{"limit negative", map[string]any{"markmap-limit": -1}, BlockOptions{}, 1},
		{"collapsed", map[string]any{"collapsed": "true"}, BlockOptions{Collapsed: true}, 0},
		{"collapsed bool", map[string]any{"collapsed": true}, BlockOptions{Collapsed: true}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, problems := ParseBlockOptions(tt.props)
			if len(problems) != tt.problems {
				t.Errorf("expected %d problems, got %v", tt.problems, problems)
			}
			if got.Hidden != tt.want.Hidden || got.TruncateAt != tt.want.TruncateAt ||
				got.BackgroundColor != tt.want.BackgroundColor || got.SiblingLimit != tt.want.SiblingLimit ||
				got.Collapsed != tt.want.Collapsed {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestParseBlockOptionsKeepsUnknown(t *testing.T) {
	opts, _ := ParseBlockOptions(map[string]any{"owner": "ana", "markmap-limit": 2})
	if opts.Extra["owner"] != "ana" {
		t.Errorf("expected owner kept in Extra, got %v", opts.Extra)
	}
	if _, ok := opts.Extra["markmap-limit"]; ok {
		t.Error("recognized keys should not land in Extra")
	}
}

func TestParsePageOptions(t *testing.T) {
	opts, problems := ParsePageOptions(map[string]any{
		"markmap-title":     " Roadmap ",
		"markmap-limit-all": "4",
		"markmap-limit":     2,
		"markmap-collapsed": "EXTEND",
	})
	if len(problems) != 0 {
		t.Fatalf("unexpected problems: %v", problems)
	}
	if opts.Title != "Roadmap" {
		t.Errorf("expected title Roadmap, got %q", opts.Title)
	}
	if opts.LimitAll != 4 || opts.LimitFirstLevel != 2 {
		t.Errorf("expected limits 4/2, got %d/%d", opts.LimitAll, opts.LimitFirstLevel)
	}
	if opts.CollapsedMode != CollapsedExtend {
		t.Errorf("expected extend mode, got %q", opts.CollapsedMode)
	}

	opts, problems = ParsePageOptions(map[string]any{"markmap-collapsed": "sideways"})
	if len(problems) != 1 {
		t.Errorf("expected one problem, got %v", problems)
	}
	if opts.CollapsedMode != CollapsedHidden {
		t.Errorf("expected default hidden mode, got %q", opts.CollapsedMode)
	}
}

func TestPropString(t *testing.T) {
	props := map[string]any{"Tags": []any{"a", "b"}, "owner": " ana "}
	if got := PropString(props, "tags"); got != "a, b" {
		t.Errorf("expected joined list, got %q", got)
	}
	if got := PropString(props, "OWNER"); got != "ana" {
		t.Errorf("expected trimmed value, got %q", got)
	}
	if got := PropString(props, "missing"); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestNormalizeColor(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"#AABBCC", "#aabbcc", true},
		{"aabbcc", "#aabbcc", true},
		{"#abc", "#aabbcc", true},
		{`"green"`, "#4a8648", true},
		{"gold", "", false},
		{"#ggghhh", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeColor(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeColor(%q): expected (%q, %v), got (%q, %v)", tt.in, tt.want, tt.ok, got, ok)
		}
	}
}

func TestIsLight(t *testing.T) {
	tests := []struct {
		hex   string
		light bool
	}{
		{"#ffffff", true},
		{"#000000", false},
		{"#978626", false},
		{"#ffff00", true},
		{"#b0b0b0", false},
		{"#bbbbbb", true},
	}
	for _, tt := range tests {
		if got := IsLight(tt.hex); got != tt.light {
			t.Errorf("IsLight(%s): expected %v, got %v", tt.hex, tt.light, got)
		}
	}
}

func TestHexToRGB(t *testing.T) {
	r, g, b := HexToRGB("#102030")
	if r != 0x10 || g != 0x20 || b != 0x30 {
		t.Errorf("expected 16,32,48, got %d,%d,%d", r, g, b)
	}
	if r, g, b := HexToRGB("nope"); r+g+b != 0 {
		t.Errorf("expected zeros for invalid input, got %d,%d,%d", r, g, b)
	}
}

func TestHostConfigIsOrg(t *testing.T) {
	if !(HostConfig{PreferredFormat: FormatOrg}).IsOrg() {
		t.Error("expected org config to report IsOrg")
	}
	if (HostConfig{PreferredFormat: FormatMarkdown}).IsOrg() {
		t.Error("expected markdown config not to report IsOrg")
	}
}
