package filter

import (
	"strings"

	"github.com/aclements/go-moremath/stats"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/binning"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/brushbus"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/geom"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/selection"
)

// DefaultField is binned and summarized when Options names none.
const DefaultField = "adjusted"

// DefaultCellCount is the approximate number of heatmap cells per axis.
const DefaultCellCount = 20

// Options selects what Aggregate derives.
type Options struct {
	// Field is binned into a histogram and summarized.
	Field      Field
	Thresholds []float64
	Count      int

	// X and Y are binned into heatmap cells when X.Name is set.
	X, Y                     Field
	XThresholds, YThresholds []float64
}

// Summary annotates a histogram.
type Summary struct {
	Count     int     `json:"count"`
	Mean      float64 `json:"mean"`
	Deviation float64 `json:"deviation"`
}

// BinCount is a histogram bar.
type BinCount struct {
	X0    float64 `json:"x0"`
	X1    float64 `json:"x1"`
	Count int     `json:"count"`
}

// CellCount is a heatmap cell.
type CellCount struct {
	X0    float64 `json:"x0"`
	X1    float64 `json:"x1"`
	Y0    float64 `json:"y0"`
	Y1    float64 `json:"y1"`
	Count int     `json:"count"`
}

// Result is everything a chart needs after filtering.
type Result struct {
	Features diag.FeatureCollection `json:"-"`
	Bins     []BinCount             `json:"bins"`
	Cells    []CellCount            `json:"cells,omitempty"`
	Summary  Summary                `json:"summary"`
}

// Update is a Result recomputed for one view. Query is the navigation
// state it was computed for.
type Update struct {
	View      brushbus.ChartID `json:"view"`
	Dimension string           `json:"dimension,omitempty"`
	Query     string           `json:"query"`
	Result
}

// Aggregate filters the full collection with set and recomputes bins, cells
// and the summary. It never reuses an earlier filtered set. Thresholds not
// given in opts are derived from the full collection so axes stay put while
// brushing.
func Aggregate(full diag.FeatureCollection, set Set, opts Options) Result {
	if opts.Field.Name == "" {
		opts.Field = Field{Name: DefaultField}
	}

	filtered := Apply(full, set.Predicate())
	values := filtered.Values(opts.Field.Name, opts.Field.Component)

	thresholds := opts.Thresholds
	if thresholds == nil {
		thresholds = binning.Thresholds(full.Values(opts.Field.Name, opts.Field.Component), opts.Count)
	}

	res := Result{
		Features: filtered,
		Bins:     countBins(binning.Bin1D(values, thresholds)),
		Summary:  Summarize(values),
	}

	if opts.X.Name != "" {
		if opts.Y.Name == "" {
			opts.Y = Field{Name: opts.X.Name, Component: "v"}
		}
		res.Cells = Cells(full, filtered, opts)
	}
	return res
}

// Cells bins the filtered features on the X and Y fields. Missing thresholds
// come from the extent of the full collection.
func Cells(full, filtered diag.FeatureCollection, opts Options) []CellCount {
	xt := opts.XThresholds
	if xt == nil {
		xt = gridThresholds(full.Values(opts.X.Name, opts.X.Component))
	}
	yt := opts.YThresholds
	if yt == nil {
		yt = gridThresholds(full.Values(opts.Y.Name, opts.Y.Component))
	}

	type point struct{ x, y float64 }
	points := make([]point, 0, len(filtered.Features))
	for _, f := range filtered.Features {
		x, okx := lookup(f, opts.X.Name, opts.X.Component)
		y, oky := lookup(f, opts.Y.Name, opts.Y.Component)
		if okx && oky {
			points = append(points, point{x, y})
		}
	}

	b := binning.NewBinner2D(xt, yt,
		func(p point) float64 { return p.x },
		func(p point) float64 { return p.y },
	)
	var out []CellCount
	for _, c := range b.Bin(points) {
		out = append(out, CellCount{X0: c.X0, X1: c.X1, Y0: c.Y0, Y1: c.Y1, Count: c.Len()})
	}
	return out
}

func gridThresholds(values []float64) []float64 {
	return binning.Thresholds(values, DefaultCellCount)
}

// Summarize returns the count, mean and sample standard deviation. The
// deviation of fewer than two values is 0.
func Summarize(values []float64) Summary {
	s := Summary{Count: len(values)}
	if s.Count == 0 {
		return s
	}
	s.Mean = stats.Mean(values)
	if s.Count > 1 {
		s.Deviation = stats.StdDev(values)
	}
	return s
}

func countBins(bins []binning.Bin[float64]) []BinCount {
	out := make([]BinCount, len(bins))
	for i, b := range bins {
		out[i] = BinCount{X0: b.X0, X1: b.X1, Count: b.Len()}
	}
	return out
}

// Extent returns the niced bounds of a field over a collection, for axes.
func Extent(fc diag.FeatureCollection, field Field, count int) (float64, float64, bool) {
	values := fc.Values(field.Name, field.Component)
	if len(values) == 0 {
		return 0, 0, false
	}
	lo, hi := stats.Bounds(values)
	lo, hi = geom.NiceDomain(lo, hi, count)
	return lo, hi, true
}

// Domain returns the bounds a selection on dimension is clamped to:
// longitude then latitude for the region, one bound per component for a
// vector selection, otherwise the extent of the field itself. It stops at
// the first component with no data.
func Domain(fc diag.FeatureCollection, dimension string, shape selection.Shape) [][2]float64 {
	if dimension == RegionDimension {
		return regionDomain(fc)
	}
	field := ParseField(dimension)
	fields := []Field{field}
	if shape == selection.ShapeVector {
		names := VectorComponents
		if field.Component != "" {
			names = strings.Split(field.Component, ",")
		}
		fields = make([]Field, len(names))
		for i, n := range names {
			fields[i] = Field{Name: field.Name, Component: n}
		}
	}

	bounds := make([][2]float64, 0, len(fields))
	for _, f := range fields {
		lo, hi, ok := Extent(fc, f, geom.DefaultTickCount)
		if !ok {
			break
		}
		bounds = append(bounds, [2]float64{lo, hi})
	}
	return bounds
}

func regionDomain(fc diag.FeatureCollection) [][2]float64 {
	lngs := make([]float64, 0, len(fc.Features))
	lats := make([]float64, 0, len(fc.Features))
	for _, f := range fc.Features {
		if p, ok := f.Geometry.Point(); ok {
			lngs = append(lngs, p.Lng())
			lats = append(lats, p.Lat())
		}
	}
	if len(lngs) == 0 {
		return nil
	}
	bounds := make([][2]float64, 0, 2)
	for _, values := range [][]float64{lngs, lats} {
		lo, hi := stats.Bounds(values)
		lo, hi = geom.NiceDomain(lo, hi, geom.DefaultTickCount)
		bounds = append(bounds, [2]float64{lo, hi})
	}
	return bounds
}
