// Package selection models brushed selections: scalar ranges, vector
// component ranges and geographic regions.
package selection

import (
	"math"
)

// Selection is a brushed sub-range of a chart. A nil Selection means
// nothing is selected.
type Selection interface {
	// Components returns one [a, b] pair per dimension, in the order the
	// selection was made.
	Components() [][2]float64
	// Degenerate reports a zero width or height.
	Degenerate() bool
	// Clone returns a deep copy.
	Clone() Selection
	shape() Shape
}

// Shape names a selection variant on the wire.
type Shape string

const (
	ShapeRange  Shape = "range"
	ShapeVector Shape = "vector"
	ShapeRegion Shape = "region"
)

// Range is a scalar selection [lower, upper]. The endpoints may come in
// either order.
type Range [2]float64

// Min is the smaller endpoint.
func (r Range) Min() float64 { return math.Min(r[0], r[1]) }

// Max is the larger endpoint.
func (r Range) Max() float64 { return math.Max(r[0], r[1]) }

// Contains reports whether v lies in [Min, Max].
func (r Range) Contains(v float64) bool {
	return v >= r.Min() && v <= r.Max()
}

// Normalized orders the endpoints.
func (r Range) Normalized() Range { return Range{r.Min(), r.Max()} }

func (r Range) Components() [][2]float64 { return [][2]float64{r} }
func (r Range) Degenerate() bool         { return r[0] == r[1] }
func (r Range) Clone() Selection         { return r }
func (r Range) shape() Shape             { return ShapeRange }

// Vector holds one range per vector component, such as u and v.
type Vector []Range

func (v Vector) Components() [][2]float64 {
	out := make([][2]float64, len(v))
	for i, r := range v {
		out[i] = r
	}
	return out
}

// Degenerate reports whether any component has zero width.
func (v Vector) Degenerate() bool {
	if len(v) == 0 {
		return true
	}
	for _, r := range v {
		if r.Degenerate() {
			return true
		}
	}
	return false
}

func (v Vector) Clone() Selection {
	if v == nil {
		return Vector(nil)
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

func (v Vector) shape() Shape { return ShapeVector }

// Point is a longitude/latitude pair.
type Point [2]float64

// Region is a geographic box [[left, top], [right, bottom]].
type Region [2]Point

// NewRegion builds a normalized region from any two opposite corners.
func NewRegion(a, b Point) Region {
	return Region{
		{math.Min(a[0], b[0]), math.Max(a[1], b[1])},
		{math.Max(a[0], b[0]), math.Min(a[1], b[1])},
	}
}

func (r Region) Left() float64   { return math.Min(r[0][0], r[1][0]) }
func (r Region) Right() float64  { return math.Max(r[0][0], r[1][0]) }
func (r Region) Top() float64    { return math.Max(r[0][1], r[1][1]) }
func (r Region) Bottom() float64 { return math.Min(r[0][1], r[1][1]) }

// Normalized orders the corners as [[left, top], [right, bottom]].
func (r Region) Normalized() Region { return NewRegion(r[0], r[1]) }

// Contains reports whether lng/lat lies inside the box, edges included.
func (r Region) Contains(lng, lat float64) bool {
	return lng >= r.Left() && lng <= r.Right() && lat >= r.Bottom() && lat <= r.Top()
}

func (r Region) Components() [][2]float64 { return [][2]float64{r[0], r[1]} }
func (r Region) Degenerate() bool {
	return r[0][0] == r[1][0] || r[0][1] == r[1][1]
}
func (r Region) Clone() Selection { return r }
func (r Region) shape() Shape     { return ShapeRegion }

// ShapeOf names the variant of s, or "" for nil.
func ShapeOf(s Selection) Shape {
	if s == nil {
		return ""
	}
	return s.shape()
}

// Finite reports whether every endpoint is a finite number.
func Finite(s Selection) bool {
	if s == nil {
		return true
	}
	for _, c := range s.Components() {
		for _, v := range c {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// Normalize collapses degenerate or non-finite selections to nil, orders
// range endpoints and region corners, and returns a copy.
func Normalize(s Selection) Selection {
	if s == nil || s.Degenerate() || !Finite(s) {
		return nil
	}
	switch s := s.(type) {
	case Range:
		return s.Normalized()
	case Vector:
		out := make(Vector, len(s))
		for i, r := range s {
			out[i] = r.Normalized()
		}
		return out
	case Region:
		return s.Normalized()
	}
	return s.Clone()
}

// Equal compares two selections component by component.
func Equal(a, b Selection) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.shape() != b.shape() {
		return false
	}
	ac, bc := a.Components(), b.Components()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if ac[i] != bc[i] {
			return false
		}
	}
	return true
}

// Clamp moves a selection's endpoints into per-dimension bounds: one bound
// for a range, one per component for a vector, and longitude then latitude
// for a region. NaN endpoints snap to the lower bound. A pair lying wholly
// outside its bound is left as is, since clamping would collapse it to
// zero width.
func Clamp(s Selection, bounds [][2]float64) Selection {
	switch s := s.(type) {
	case Range:
		if len(bounds) < 1 {
			return s
		}
		return clampRange(s, bounds[0])
	case Vector:
		out := make(Vector, len(s))
		for i, r := range s {
			out[i] = r
			if i < len(bounds) {
				out[i] = clampRange(r, bounds[i])
			}
		}
		return out
	case Region:
		if len(bounds) < 2 {
			return s
		}
		lng := clampRange(Range{s[0][0], s[1][0]}, bounds[0])
		lat := clampRange(Range{s[0][1], s[1][1]}, bounds[1])
		return Region{{lng[0], lat[0]}, {lng[1], lat[1]}}
	}
	return s
}

func clampRange(r Range, bound [2]float64) Range {
	out := Range{clampTo(r[0], bound), clampTo(r[1], bound)}
	if out.Degenerate() && !r.Degenerate() {
		return r
	}
	return out
}

func clampTo(v float64, bound [2]float64) float64 {
	lo, hi := math.Min(bound[0], bound[1]), math.Max(bound[0], bound[1])
	switch {
	case math.IsNaN(v), v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}
