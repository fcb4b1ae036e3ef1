package model

import (
	"strconv"
	"strings"
)

// namedColors maps the host's named highlight colors to their hex values.
var namedColors = map[string]string{
	"yellow": "#978626",
	"red":    "#af3a3a",
	"pink":   "#ba3ba0",
	"green":  "#4a8648",
	"blue":   "#3a6fb0",
	"purple": "#7e3eb4",
	"gray":   "#6b6b6b",
}

// NormalizeColor accepts #rgb, #rrggbb (with or without '#') or a named host
// color and returns lower-case #rrggbb.
func NormalizeColor(s string) (string, bool) {
	s = strings.ToLower(strings.Trim(strings.TrimSpace(s), `"'`))
	if hex, ok := namedColors[s]; ok {
		return hex, true
	}
	s = strings.TrimPrefix(s, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return "", false
	}
	if _, err := strconv.ParseUint(s, 16, 32); err != nil {
		return "", false
	}
	return "#" + s, true
}

// HexToRGB splits a normalized #rrggbb color into components.
func HexToRGB(hex string) (r, g, b uint8) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 0, 0, 0
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v)
}

// IsLight reports whether text on this background should be dark, using the
// weighted luminance test 0.299R + 0.587G + 0.114B > 186.
func IsLight(hex string) bool {
	r, g, b := HexToRGB(hex)
	return float64(r)*0.299+float64(g)*0.587+float64(b)*0.114 > 186
}
