// Package geom maps data coordinates to pixels: linear scales, margins and
// the map projection used by the charts.
package geom

import (
	"math"

	"github.com/aclements/go-moremath/scale"
)

// DefaultTickCount approximates a continuous distribution when no explicit
// thresholds are given.
const DefaultTickCount = 160

// Linear maps a numeric domain onto a pixel range. The zero value maps
// everything to 0.
type Linear struct {
	domain [2]float64
	rng    [2]float64
	clamp  bool
}

// NewLinear builds a scale from domain [min, max] to range [r0, r1].
func NewLinear(domain, rng [2]float64) Linear {
	return Linear{domain: domain, rng: rng}
}

// Domain returns the domain bounds.
func (s Linear) Domain() [2]float64 { return s.domain }

// Range returns the pixel range.
func (s Linear) Range() [2]float64 { return s.rng }

// WithClamp returns a copy that clamps mapped and inverted values to the
// range and domain.
func (s Linear) WithClamp(clamp bool) Linear {
	s.clamp = clamp
	return s
}

func (s Linear) unit() scale.Linear {
	return scale.Linear{Min: s.domain[0], Max: s.domain[1], Clamp: s.clamp}
}

func (s Linear) degenerate() bool {
	return s.domain[0] == s.domain[1]
}

// Map converts a domain value to pixels. A degenerate domain maps every
// value to the middle of the range.
func (s Linear) Map(v float64) float64 {
	if s.degenerate() {
		return (s.rng[0] + s.rng[1]) / 2
	}
	t := s.unit().Map(v)
	return s.rng[0] + t*(s.rng[1]-s.rng[0])
}

// Invert converts pixels back to the domain. A degenerate range inverts to
// the domain minimum.
func (s Linear) Invert(px float64) float64 {
	span := s.rng[1] - s.rng[0]
	if span == 0 {
		return s.domain[0]
	}
	t := (px - s.rng[0]) / span
	if s.clamp {
		t = math.Max(0, math.Min(1, t))
	}
	if s.degenerate() {
		return s.domain[0]
	}
	return s.unit().Unmap(t)
}

// Nice returns a copy whose domain is rounded outward to tick boundaries
// for roughly count ticks.
func (s Linear) Nice(count int) Linear {
	lo, hi := NiceDomain(s.domain[0], s.domain[1], count)
	if s.domain[0] > s.domain[1] {
		lo, hi = hi, lo
	}
	s.domain = [2]float64{lo, hi}
	return s
}

// Ticks returns at most count major ticks inside the domain.
func (s Linear) Ticks(count int) []float64 {
	if s.degenerate() || count < 1 {
		return []float64{s.domain[0]}
	}
	u := s.unit()
	if u.Min > u.Max {
		u.Min, u.Max = u.Max, u.Min
	}
	major, _ := u.Ticks(scale.TickOptions{Max: count})
	return major
}

// NiceDomain rounds [lo, hi] outward to tick boundaries. A degenerate
// domain is widened to the unit interval around its value first.
func NiceDomain(lo, hi float64, count int) (float64, float64) {
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo == hi {
		lo, hi = math.Floor(lo), math.Floor(lo)+1
	}
	if count < 1 {
		count = DefaultTickCount
	}
	u := scale.Linear{Min: lo, Max: hi}
	u.Nice(scale.TickOptions{Max: count})
	return math.Min(u.Min, lo), math.Max(u.Max, hi)
}

// NiceThresholds returns ascending boundaries covering [lo, hi] on a niced
// grid of roughly count intervals. The first boundary is <= lo and the last
// is >= hi.
func NiceThresholds(lo, hi float64, count int) []float64 {
	nlo, nhi := NiceDomain(lo, hi, count)
	u := scale.Linear{Min: nlo, Max: nhi}
	major, _ := u.Ticks(scale.TickOptions{Max: count + 1})
	if len(major) < 2 {
		return []float64{nlo, nhi}
	}

	step := major[1] - major[0]
	eps := step * 1e-9
	out := make([]float64, 0, len(major)+2)
	if major[0]-nlo > eps {
		out = append(out, nlo)
	}
	out = append(out, major...)
	if out[0] > nlo {
		out[0] = nlo
	}
	if nhi-out[len(out)-1] > eps {
		out = append(out, nhi)
	} else {
		out[len(out)-1] = math.Max(out[len(out)-1], nhi)
	}
	return out
}
