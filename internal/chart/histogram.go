package chart

import (
	"context"
	"strconv"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/binning"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/brush"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/filter"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/geom"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/selection"
)

const (
	barFill       = "#2378c3"
	deviationFill = "#dfe1e2"
	selectionFill = "#dfe1e2"
	axisColor     = "currentColor"
)

// Histogram shows the distribution of one scalar field with its mean and
// standard deviation. Brushing selects an x range.
type Histogram struct {
	*Element

	field      filter.Field
	thresholds []float64
	bins       []filter.BinCount
	summary    filter.Summary
	x, y       geom.Linear
}

// NewHistogram builds a histogram of field. With an empty field name it
// loads plain numeric arrays instead of feature collections.
func NewHistogram(cfg Config, field filter.Field) *Histogram {
	h := &Histogram{field: field}
	h.Element = newElement(cfg, brush.ShapeRange, h)
	return h
}

// SetThresholds fixes the bin boundaries. Nil derives them from the data.
func (h *Histogram) SetThresholds(thresholds []float64) {
	h.update(func() { h.thresholds = append([]float64(nil), thresholds...) })
}

// SetValues bins raw values.
func (h *Histogram) SetValues(values []float64) {
	h.update(func() { h.setValues(values) })
}

// SetFeatures bins the histogram field of every feature.
func (h *Histogram) SetFeatures(fc diag.FeatureCollection) {
	values := fc.Values(h.field.Name, h.field.Component)
	h.SetValues(values)
}

// Bins returns the bars of the histogram.
func (h *Histogram) Bins() []filter.BinCount {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]filter.BinCount(nil), h.bins...)
}

// Summary returns the count, mean and deviation of the binned values.
func (h *Histogram) Summary() filter.Summary {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.summary
}

func (h *Histogram) setValues(values []float64) {
	t := h.thresholds
	if t == nil {
		t = binning.Thresholds(values, geom.DefaultTickCount)
	}
	bins := binning.Bin1D(values, t)
	h.bins = make([]filter.BinCount, len(bins))
	for i, b := range bins {
		h.bins[i] = filter.BinCount{X0: b.X0, X1: b.X1, Count: b.Len()}
	}
	h.summary = filter.Summarize(values)
}

func (h *Histogram) apply(r filter.Result) {
	h.bins = append([]filter.BinCount(nil), r.Bins...)
	h.summary = r.Summary
}

func (h *Histogram) fetch(ctx context.Context, l Loader, src string) (func(), error) {
	if h.field.Name == "" {
		values, err := l.LoadValues(ctx, src)
		if err != nil {
			return nil, err
		}
		return func() { h.setValues(values) }, nil
	}
	fc, err := l.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	values := fc.Values(h.field.Name, h.field.Component)
	return func() { h.setValues(values) }, nil
}

func (h *Histogram) domain() [2]float64 {
	if len(h.thresholds) > 1 {
		lo, hi := h.thresholds[0], h.thresholds[0]
		for _, t := range h.thresholds {
			lo, hi = min(lo, t), max(hi, t)
		}
		return [2]float64{lo, hi}
	}
	if len(h.bins) == 0 {
		return [2]float64{0, 1}
	}
	return [2]float64{h.bins[0].X0, h.bins[len(h.bins)-1].X1}
}

func (h *Histogram) marks(plot geom.Plot, fontSize float64) []Mark {
	maxCount := 0
	for _, b := range h.bins {
		maxCount = max(maxCount, b.Count)
	}
	h.x = geom.NewLinear(h.domain(), [2]float64{plot.X0, plot.X1})
	h.y = geom.NewLinear([2]float64{0, float64(maxCount)}, [2]float64{plot.Y1, plot.Y0})

	var out []Mark
	if h.summary.Count > 0 {
		lo := h.x.Map(h.summary.Mean - h.summary.Deviation)
		hi := h.x.Map(h.summary.Mean + h.summary.Deviation)
		out = append(out, Rect{X: lo, Y: plot.Y0, W: hi - lo, H: plot.Height(), Fill: deviationFill, Class: "deviation"})
	}
	for _, b := range h.bins {
		x0, x1 := h.x.Map(b.X0), h.x.Map(b.X1)
		y := h.y.Map(float64(b.Count))
		out = append(out, Rect{X: x0, Y: y, W: x1 - x0, H: h.y.Map(0) - y, Fill: barFill})
	}
	if h.summary.Count > 0 {
		mx := h.x.Map(h.summary.Mean)
		out = append(out,
			Line{X1: mx, Y1: plot.Y0, X2: mx, Y2: plot.Y1, Stroke: axisColor},
			Text{X: mx, Y: plot.Y0 + fontSize, Text: "μ " + formatTick(h.summary.Mean)},
		)
	}
	out = append(out, axes(h.x, h.y, plot, fontSize)...)
	return out
}

func (h *Histogram) invert(x, y float64) (float64, float64, bool) {
	return h.x.Invert(x), 0, true
}

func (h *Histogram) overlay(sel selection.Selection) []Mark {
	r, ok := sel.(selection.Range)
	if !ok {
		return nil
	}
	plot := h.Element.plot
	x0, x1 := h.x.Map(r.Min()), h.x.Map(r.Max())
	return []Mark{Rect{X: x0, Y: plot.Y0, W: x1 - x0, H: plot.Height(), Fill: selectionFill, Class: "selection"}}
}

// axes draws the bottom x axis and the left y axis with their tick labels.
func axes(x, y geom.Linear, plot geom.Plot, fontSize float64) []Mark {
	out := []Mark{
		Line{X1: plot.X0, Y1: plot.Y1, X2: plot.X1, Y2: plot.Y1, Stroke: axisColor},
		Line{X1: plot.X0, Y1: plot.Y0, X2: plot.X0, Y2: plot.Y1, Stroke: axisColor},
	}
	xCount := max(2, int(plot.Width()/(fontSize*5)))
	for _, t := range x.Ticks(xCount) {
		px := x.Map(t)
		out = append(out, Text{X: px, Y: plot.Y1 + 1.5*fontSize, Text: formatTick(t)})
	}
	yCount := max(2, int(plot.Height()/fontSize/2))
	for _, t := range y.Ticks(yCount) {
		py := y.Map(t)
		out = append(out, Text{X: plot.X0 - fontSize/2, Y: py, Text: formatTick(t), Anchor: "end"})
	}
	return out
}

func formatTick(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}
