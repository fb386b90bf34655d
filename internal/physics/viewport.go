package physics

// Viewport is the drawable area in pixels. It is queried every tick and
// passed explicitly into anything that needs spatial bounds, so it may
// change size between ticks.
type Viewport struct {
	Width  float64
	Height float64
}

// Valid reports whether the viewport has a usable area.
// A zero viewport stands for "no display context".
func (v Viewport) Valid() bool {
	return v.Width > 0 && v.Height > 0
}

// Center returns the viewport center, or the origin when the viewport is invalid.
func (v Viewport) Center() Vector {
	if !v.Valid() {
		return Vector{}
	}
	return Vector{X: v.Width / 2, Y: v.Height / 2}
}

// Contains reports whether p lies inside the viewport grown by margin on every side.
func (v Viewport) Contains(p Vector, margin float64) bool {
	return p.X >= -margin && p.X <= v.Width+margin &&
		p.Y >= -margin && p.Y <= v.Height+margin
}
