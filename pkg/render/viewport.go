package render

import "math"

const (
	minScale = 0.05
	maxScale = 8
)

// Viewport holds the transform of a fixed-size view over laid-out content.
// Engines embed it to implement the viewport half of Instance.
type Viewport struct {
	W, H    float64
	T       Transform
	Content Rect
}

// NewViewport returns an identity viewport of the given size.
func NewViewport(w, h float64) Viewport {
	return Viewport{W: w, H: h, T: Transform{K: 1}}
}

// Fit scales and centers the content inside the view, never enlarging past
// 1:1.
func (v *Viewport) Fit() error {
	c := v.Content
	if c.W <= 0 || c.H <= 0 || v.W <= 0 || v.H <= 0 {
		v.T = Transform{K: 1}
		return nil
	}
	k := math.Min(1, math.Min(v.W/c.W, v.H/c.H))
	v.T = Transform{
		K: k,
		X: (v.W-c.W*k)/2 - c.X*k,
		Y: (v.H-c.H*k)/2 - c.Y*k,
	}
	return nil
}

// Rescale multiplies the scale by factor around the view center.
func (v *Viewport) Rescale(factor float64) error {
	if factor <= 0 {
		return nil
	}
	k := math.Max(minScale, math.Min(maxScale, v.T.K*factor))
	cx, cy := v.W/2, v.H/2
	ratio := k / v.T.K
	v.T.X = cx - (cx-v.T.X)*ratio
	v.T.Y = cy - (cy-v.T.Y)*ratio
	v.T.K = k
	return nil
}

// Pan shifts the view by (dx, dy) screen units.
func (v *Viewport) Pan(dx, dy float64) error {
	v.T.X += dx
	v.T.Y += dy
	return nil
}

// Transform returns the current transform.
func (v *Viewport) Transform() Transform { return v.T }

// Bounds returns the content box in screen coordinates.
func (v *Viewport) Bounds() Rect {
	return Rect{
		X: v.Content.X*v.T.K + v.T.X,
		Y: v.Content.Y*v.T.K + v.T.Y,
		W: v.Content.W * v.T.K,
		H: v.Content.H * v.T.K,
	}
}
