package chart

import "math"

// Nine-class ColorBrewer schemes.
var (
	Purples = []string{"#fcfbfd", "#efedf5", "#dadaeb", "#bcbddc", "#9e9ac8", "#807dba", "#6a51a3", "#54278f", "#3f007d"}
	PuOr    = []string{"#b35806", "#e08214", "#fdb863", "#fee0b6", "#f7f7f7", "#d8daeb", "#b2abd2", "#8073ac", "#542788"}
	YlGnBu  = []string{"#ffffd9", "#edf8b1", "#c7e9b4", "#7fcdbb", "#41b6c4", "#1d91c0", "#225ea8", "#253494", "#081d58"}
)

// Quantize maps a continuous domain onto a discrete list of colors in equal
// steps.
type Quantize struct {
	Domain [2]float64
	Colors []string
}

// Color returns the color for v. Values outside the domain take the end
// colors.
func (q Quantize) Color(v float64) string {
	n := len(q.Colors)
	if n == 0 {
		return "none"
	}
	lo, hi := q.Domain[0], q.Domain[1]
	if hi <= lo || math.IsNaN(v) {
		return q.Colors[0]
	}
	i := int(math.Floor((v - lo) / (hi - lo) * float64(n)))
	if i < 0 {
		i = 0
	}
	if i > n-1 {
		i = n - 1
	}
	return q.Colors[i]
}

// FillScale picks the bubble map palette for values in [lower, upper]: a
// diverging scheme centered on zero unless both bounds share a sign.
func FillScale(lower, upper float64) Quantize {
	sameSign := (lower > 0 && upper > 0) || (lower < 0 && upper < 0)
	if sameSign {
		return Quantize{Domain: [2]float64{lower, upper}, Colors: Purples}
	}
	bound := math.Max(math.Abs(lower), math.Abs(upper))
	return Quantize{Domain: [2]float64{-bound, bound}, Colors: PuOr}
}

// Radius is a square-root scale from [0, max] onto [MinRadius, MaxRadius].
type Radius struct {
	Max float64
}

const (
	MinRadius = 0.5
	MaxRadius = 6
)

// Of returns the bubble radius for the magnitude of v.
func (r Radius) Of(v float64) float64 {
	if r.Max <= 0 || math.IsNaN(v) {
		return MinRadius
	}
	t := math.Sqrt(math.Min(math.Abs(v), r.Max) / r.Max)
	return MinRadius + t*(MaxRadius-MinRadius)
}
