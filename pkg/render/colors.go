package render

import (
	"fmt"
	"image/color"

	"github.com/vanderheijden86/blockmap/pkg/model"
)

// branchPalette colors first-level branches and everything below them.
var branchPalette = []color.RGBA{
	{0x1f, 0x77, 0xb4, 0xff},
	{0xff, 0x7f, 0x0e, 0xff},
	{0x2c, 0xa0, 0x2c, 0xff},
	{0xd6, 0x27, 0x28, 0xff},
	{0x94, 0x67, 0xbd, 0xff},
	{0x8c, 0x56, 0x4b, 0xff},
	{0xe3, 0x77, 0xc2, 0xff},
	{0x7f, 0x7f, 0x7f, 0xff},
	{0xbc, 0xbd, 0x22, 0xff},
	{0x17, 0xbe, 0xcf, 0xff},
}

// BranchColor returns the color of a first-level branch.
func BranchColor(branch int) color.RGBA {
	if branch < 0 {
		return color.RGBA{0x6b, 0x72, 0x80, 0xff}
	}
	return branchPalette[branch%len(branchPalette)]
}

func parseColor(hex string, fallback color.RGBA) color.RGBA {
	norm, ok := model.NormalizeColor(hex)
	if !ok {
		return fallback
	}
	r, g, b := model.HexToRGB(norm)
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

func gray(v uint8) color.RGBA {
	return color.RGBA{R: v, G: v, B: v, A: 0xff}
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
