// Package geometry maps hotspot rectangles authored against a background
// image's natural pixel size onto the currently displayed image.
//
// Everything here is pure math on value types; nothing is rounded. Callers
// decide pixel snapping.
package geometry

import (
	"errors"
	"math"
)

// ErrInvalidNaturalWidth is reported by ScaleOf when the natural width is not
// positive. The returned scale is still usable (1).
var ErrInvalidNaturalWidth = errors.New("natural width must be positive")

// Point is a position in display pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is a convenience constructor for Point.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Rect is an axis-aligned rectangle with its origin at the top-left corner.
type Rect struct {
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Contains reports whether p lies inside r. The right and bottom edges are
// exclusive so adjacent rectangles never both claim a point.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width && p.Y >= r.Y && p.Y < r.Y+r.Height
}

// Area returns Width*Height.
func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// ScaleOf returns displayedWidth / naturalWidth. A non-positive natural width
// yields a scale of 1 together with ErrInvalidNaturalWidth.
func ScaleOf(naturalWidth, displayedWidth float64) (float64, error) {
	if naturalWidth <= 0 || math.IsNaN(naturalWidth) {
		return 1, ErrInvalidNaturalWidth
	}
	return displayedWidth / naturalWidth, nil
}

// ToDisplayRect multiplies every component of origin by scale.
func ToDisplayRect(origin Rect, scale float64) Rect {
	return Rect{
		X:      origin.X * scale,
		Y:      origin.Y * scale,
		Width:  origin.Width * scale,
		Height: origin.Height * scale,
	}
}

// FromDisplayRect is the inverse of ToDisplayRect. A non-positive scale
// returns display unchanged.
func FromDisplayRect(display Rect, scale float64) Rect {
	if scale <= 0 {
		return display
	}
	return Rect{
		X:      display.X / scale,
		Y:      display.Y / scale,
		Width:  display.Width / scale,
		Height: display.Height / scale,
	}
}

// Expand grows r by padding on every side. Padding is in r's own coordinate
// space, so origin-space rects must be expanded before scaling.
func Expand(r Rect, padding float64) Rect {
	if padding == 0 {
		return r
	}
	return Rect{
		X:      r.X - padding,
		Y:      r.Y - padding,
		Width:  r.Width + 2*padding,
		Height: r.Height + 2*padding,
	}
}

// Distance returns the euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
