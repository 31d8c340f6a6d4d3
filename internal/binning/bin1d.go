// Package binning partitions observations into histogram bins and heatmap
// cells.
package binning

import (
	"math"
	"sort"

	"github.com/aclements/go-moremath/stats"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/geom"
)

// Bin is the interval [X0, X1) and the members that fell into it. The last
// bin of a histogram is closed on the right.
type Bin[T any] struct {
	X0      float64 `json:"x0"`
	X1      float64 `json:"x1"`
	Members []T     `json:"members"`
}

// Len is the member count.
func (b Bin[T]) Len() int { return len(b.Members) }

// Histogram bins data by a scalar accessor. With no Thresholds the
// boundaries come from the niced data extent split into about Count bins.
type Histogram[T any] struct {
	Value      func(T) float64
	Thresholds []float64
	Count      int
}

// Bin1D bins raw values.
func Bin1D(values []float64, thresholds []float64) []Bin[float64] {
	h := Histogram[float64]{Value: func(v float64) float64 { return v }, Thresholds: thresholds}
	return h.Bin(values)
}

// Thresholds derives niced boundaries from the finite values. It returns
// nil when there is nothing to bin.
func Thresholds(values []float64, count int) []float64 {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return nil
	}
	if count <= 0 {
		count = geom.DefaultTickCount
	}
	lo, hi := stats.Bounds(finite)
	return geom.NiceThresholds(lo, hi, count)
}

// Bin assigns every datum to the bin containing its value. Empty bins are
// kept; values outside the threshold domain and NaNs are dropped.
func (h Histogram[T]) Bin(data []T) []Bin[T] {
	thresholds := h.Thresholds
	if thresholds == nil {
		values := make([]float64, len(data))
		for i, d := range data {
			values[i] = h.Value(d)
		}
		thresholds = Thresholds(values, h.Count)
	}
	thresholds = normalize(thresholds)
	if len(thresholds) < 2 {
		return nil
	}

	bins := make([]Bin[T], len(thresholds)-1)
	for i := range bins {
		bins[i] = Bin[T]{X0: thresholds[i], X1: thresholds[i+1], Members: []T{}}
	}

	lo, hi := thresholds[0], thresholds[len(thresholds)-1]
	for _, d := range data {
		v := h.Value(d)
		if math.IsNaN(v) || v < lo || v > hi {
			continue
		}
		i := bisectRight(thresholds, v) - 1
		if i >= len(bins) {
			i = len(bins) - 1
		}
		bins[i].Members = append(bins[i].Members, d)
	}
	return bins
}

// normalize returns a sorted copy without duplicates or NaNs.
func normalize(thresholds []float64) []float64 {
	out := make([]float64, 0, len(thresholds))
	for _, t := range thresholds {
		if !math.IsNaN(t) {
			out = append(out, t)
		}
	}
	sort.Float64s(out)
	uniq := make([]float64, 0, len(out))
	for _, t := range out {
		if len(uniq) == 0 || t != uniq[len(uniq)-1] {
			uniq = append(uniq, t)
		}
	}
	return uniq
}

// bisectRight returns the number of thresholds <= v.
func bisectRight(thresholds []float64, v float64) int {
	return sort.Search(len(thresholds), func(i int) bool { return thresholds[i] > v })
}
