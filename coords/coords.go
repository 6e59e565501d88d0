// Package coords converts positions between the three coordinate spaces a
// stamp passes through: normalized page fractions (origin top-left), PDF user
// space (points, origin bottom-left) and viewport pixels (origin top-left).
//
// All functions are pure and deterministic. Normalized positions are always
// measured from the top-left corner of the page; data stored in the legacy
// bottom-left convention must be converted once with FromConvention before it
// reaches any other function in this package.
package coords

import (
	"math"
)

// Normalized is a position on a page expressed as fractions of the page
// width and height, measured from the top-left corner.
type Normalized struct {
	X, Y float64
}

// Point is a position in PDF user space, measured in points from the
// bottom-left corner of the page.
type Point struct {
	X, Y float64
}

// Size is a width and height. Its unit depends on context: PDF points for
// page and stamp sizes, pixels for marker sizes.
type Size struct {
	Width, Height float64
}

// Rect is an axis-aligned rectangle in viewport pixels, origin top-left.
type Rect struct {
	Left, Top, Width, Height float64
}

// Center returns the center of the rectangle.
func (r Rect) Center() (x, y float64) {
	return r.Left + r.Width/2, r.Top + r.Height/2
}

// Geometry describes how a page was rasterized for display. It is recomputed
// on every render or resize and never persisted.
type Geometry struct {
	PageNumber      int
	DisplayWidthPx  float64
	DisplayHeightPx float64
	NativeWidthPt   float64
	NativeHeightPt  float64
}

// Scale returns the number of display pixels per PDF point.
func (g Geometry) Scale() float64 {
	return g.DisplayWidthPx / g.NativeWidthPt
}

// NativeSize returns the page size in PDF points.
func (g Geometry) NativeSize() Size {
	return Size{Width: g.NativeWidthPt, Height: g.NativeHeightPt}
}

// Validate reports whether every dimension is finite and non-negative.
func (g Geometry) Validate() error {
	if err := checkDimension("display width", g.DisplayWidthPx); err != nil {
		return err
	}
	if err := checkDimension("display height", g.DisplayHeightPx); err != nil {
		return err
	}
	if err := checkDimension("native width", g.NativeWidthPt); err != nil {
		return err
	}
	return checkDimension("native height", g.NativeHeightPt)
}

// Validate reports whether n lies inside the unit square.
func (n Normalized) Validate() error {
	if !inUnit(n.X) || !inUnit(n.Y) {
		return &OutOfBoundsError{X: n.X, Y: n.Y}
	}
	return nil
}

// Clamp returns n with both components limited to [0,1].
func (n Normalized) Clamp() Normalized {
	return Normalized{X: clamp01(n.X), Y: clamp01(n.Y)}
}

// ToPDFPoint returns the lower-left corner of a stamp whose top-left corner
// sits at n on a page of the given native size:
//
//	x = n.X * page.Width
//	y = page.Height - n.Y*page.Height - stamp.Height
func ToPDFPoint(n Normalized, page Size, stamp Size) (Point, error) {
	if err := n.Validate(); err != nil {
		return Point{}, err
	}
	if err := checkSize("page", page); err != nil {
		return Point{}, err
	}
	if err := checkSize("stamp", stamp); err != nil {
		return Point{}, err
	}
	return Point{
		X: n.X * page.Width,
		Y: page.Height - n.Y*page.Height - stamp.Height,
	}, nil
}

// FromPDFPoint is the inverse of ToPDFPoint: it recovers the normalized
// anchor of a stamp whose lower-left corner is p.
func FromPDFPoint(p Point, page Size, stamp Size) (Normalized, error) {
	if err := checkSize("page", page); err != nil {
		return Normalized{}, err
	}
	if err := checkSize("stamp", stamp); err != nil {
		return Normalized{}, err
	}
	if page.Width == 0 || page.Height == 0 {
		return Normalized{}, &InvalidDimensionError{Name: "page", Value: 0}
	}
	if !finite(p.X) || !finite(p.Y) {
		return Normalized{}, &InvalidDimensionError{Name: "point", Value: math.NaN()}
	}
	n := Normalized{
		X: p.X / page.Width,
		Y: (page.Height - p.Y - stamp.Height) / page.Height,
	}
	if err := n.Validate(); err != nil {
		return Normalized{}, err
	}
	return n, nil
}

// ToScreenRect returns a marker of the given pixel size centered on the
// viewport position of n.
func ToScreenRect(n Normalized, g Geometry, marker Size) (Rect, error) {
	x, y, err := toScreenPoint(n, g)
	if err != nil {
		return Rect{}, err
	}
	if err := checkSize("marker", marker); err != nil {
		return Rect{}, err
	}
	return Rect{
		Left:   x - marker.Width/2,
		Top:    y - marker.Height/2,
		Width:  marker.Width,
		Height: marker.Height,
	}, nil
}

// ToScreenStampRect returns the viewport footprint of a stamp of the given
// size in points, anchored by its top-left corner at n. It is the screen
// image of the rectangle ToPDFPoint places in the document.
func ToScreenStampRect(n Normalized, g Geometry, stamp Size) (Rect, error) {
	x, y, err := toScreenPoint(n, g)
	if err != nil {
		return Rect{}, err
	}
	if err := checkSize("stamp", stamp); err != nil {
		return Rect{}, err
	}
	if g.NativeWidthPt == 0 || g.NativeHeightPt == 0 {
		return Rect{}, &InvalidDimensionError{Name: "native size", Value: 0}
	}
	sx := g.DisplayWidthPx / g.NativeWidthPt
	sy := g.DisplayHeightPx / g.NativeHeightPt
	return Rect{
		Left:   x,
		Top:    y,
		Width:  stamp.Width * sx,
		Height: stamp.Height * sy,
	}, nil
}

// FromScreenClick maps a viewport click back to a normalized position. The
// result is clamped to the unit square so a click on the page border still
// places a field.
func FromScreenClick(clickX, clickY float64, g Geometry) (Normalized, error) {
	n, err := fromScreen(clickX, clickY, g)
	if err != nil {
		return Normalized{}, err
	}
	return n.Clamp(), nil
}

// FromScreenClickStrict is FromScreenClick without clamping: a click outside
// the rendered page fails with an OutOfBoundsError.
func FromScreenClickStrict(clickX, clickY float64, g Geometry) (Normalized, error) {
	n, err := fromScreen(clickX, clickY, g)
	if err != nil {
		return Normalized{}, err
	}
	if err := n.Validate(); err != nil {
		return Normalized{}, err
	}
	return n, nil
}

func toScreenPoint(n Normalized, g Geometry) (x, y float64, err error) {
	if err := n.Validate(); err != nil {
		return 0, 0, err
	}
	if err := g.Validate(); err != nil {
		return 0, 0, err
	}
	return n.X * g.DisplayWidthPx, n.Y * g.DisplayHeightPx, nil
}

func fromScreen(clickX, clickY float64, g Geometry) (Normalized, error) {
	if err := g.Validate(); err != nil {
		return Normalized{}, err
	}
	if g.DisplayWidthPx == 0 || g.DisplayHeightPx == 0 {
		return Normalized{}, &InvalidDimensionError{Name: "display size", Value: 0}
	}
	if !finite(clickX) || !finite(clickY) {
		return Normalized{}, &InvalidDimensionError{Name: "click", Value: math.NaN()}
	}
	return Normalized{
		X: clickX / g.DisplayWidthPx,
		Y: clickY / g.DisplayHeightPx,
	}, nil
}

func checkSize(name string, s Size) error {
	if err := checkDimension(name+" width", s.Width); err != nil {
		return err
	}
	return checkDimension(name+" height", s.Height)
}

func checkDimension(name string, v float64) error {
	if !finite(v) || v < 0 {
		return &InvalidDimensionError{Name: name, Value: v}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
