package chart

import (
	"context"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/binning"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/brush"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/filter"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/geom"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/selection"
)

// Heatmap is a 2D density histogram over two fields, for example the u and
// v components of a wind field. Brushing selects one range per axis.
type Heatmap struct {
	*Element

	xField, yField filter.Field
	xFixed, yFixed []float64
	xThresholds    []float64
	yThresholds    []float64
	cells          []filter.CellCount
	x, y           geom.Linear
}

// NewHeatmap bins features on xField against yField.
func NewHeatmap(cfg Config, xField, yField filter.Field) *Heatmap {
	m := &Heatmap{xField: xField, yField: yField}
	m.Element = newElement(cfg, brush.ShapeVector, m)
	return m
}

// SetThresholds fixes the cell boundaries. Nil derives them from the data.
func (m *Heatmap) SetThresholds(x, y []float64) {
	m.update(func() {
		m.xFixed = append([]float64(nil), x...)
		m.yFixed = append([]float64(nil), y...)
		m.xThresholds, m.yThresholds = m.xFixed, m.yFixed
	})
}

// SetPoints bins raw x, y pairs.
func (m *Heatmap) SetPoints(points [][2]float64) {
	m.update(func() { m.setPoints(points) })
}

// SetFeatures bins the two fields of every feature that has both.
func (m *Heatmap) SetFeatures(fc diag.FeatureCollection) {
	m.SetPoints(m.points(fc))
}

// Cells returns the non-empty cells.
func (m *Heatmap) Cells() []filter.CellCount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]filter.CellCount(nil), m.cells...)
}

func (m *Heatmap) points(fc diag.FeatureCollection) [][2]float64 {
	out := make([][2]float64, 0, len(fc.Features))
	for _, f := range fc.Features {
		xv, okx := f.Properties.Field(m.xField.Name)
		yv, oky := f.Properties.Field(m.yField.Name)
		if !okx || !oky {
			continue
		}
		x, okx := xv.Component(m.xField.Component)
		y, oky := yv.Component(m.yField.Component)
		if okx && oky {
			out = append(out, [2]float64{x, y})
		}
	}
	return out
}

func (m *Heatmap) setPoints(points [][2]float64) {
	xt, yt := m.xFixed, m.yFixed
	if xt == nil || yt == nil {
		xs := make([]float64, len(points))
		ys := make([]float64, len(points))
		for i, p := range points {
			xs[i], ys[i] = p[0], p[1]
		}
		if xt == nil {
			xt = binning.Thresholds(xs, filter.DefaultCellCount)
		}
		if yt == nil {
			yt = binning.Thresholds(ys, filter.DefaultCellCount)
		}
	}
	m.xThresholds, m.yThresholds = xt, yt

	m.cells = m.cells[:0]
	for _, c := range binning.Bin2D(xt, yt).Bin(points) {
		m.cells = append(m.cells, filter.CellCount{X0: c.X0, X1: c.X1, Y0: c.Y0, Y1: c.Y1, Count: c.Len()})
	}
}

func (m *Heatmap) apply(r filter.Result) {
	m.cells = append([]filter.CellCount(nil), r.Cells...)
}

func (m *Heatmap) fetch(ctx context.Context, l Loader, src string) (func(), error) {
	fc, err := l.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	points := m.points(fc)
	return func() { m.setPoints(points) }, nil
}

func extent(thresholds []float64, lo, hi func(filter.CellCount) float64, cells []filter.CellCount) [2]float64 {
	if len(thresholds) > 1 {
		d := [2]float64{thresholds[0], thresholds[0]}
		for _, t := range thresholds {
			d[0], d[1] = min(d[0], t), max(d[1], t)
		}
		return d
	}
	if len(cells) == 0 {
		return [2]float64{0, 1}
	}
	d := [2]float64{lo(cells[0]), hi(cells[0])}
	for _, c := range cells {
		d[0], d[1] = min(d[0], lo(c)), max(d[1], hi(c))
	}
	return d
}

func (m *Heatmap) marks(plot geom.Plot, fontSize float64) []Mark {
	xd := extent(m.xThresholds, func(c filter.CellCount) float64 { return c.X0 }, func(c filter.CellCount) float64 { return c.X1 }, m.cells)
	yd := extent(m.yThresholds, func(c filter.CellCount) float64 { return c.Y0 }, func(c filter.CellCount) float64 { return c.Y1 }, m.cells)
	m.x = geom.NewLinear(xd, [2]float64{plot.X0, plot.X1})
	m.y = geom.NewLinear(yd, [2]float64{plot.Y1, plot.Y0})

	var out []Mark
	if len(m.cells) > 0 {
		lo, hi := m.cells[0].Count, m.cells[0].Count
		for _, c := range m.cells {
			lo, hi = min(lo, c.Count), max(hi, c.Count)
		}
		fill := Quantize{Domain: [2]float64{float64(lo), float64(hi)}, Colors: YlGnBu}
		for _, c := range m.cells {
			x0, x1 := m.x.Map(c.X0), m.x.Map(c.X1)
			y0, y1 := m.y.Map(c.Y1), m.y.Map(c.Y0)
			out = append(out, Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0, Fill: fill.Color(float64(c.Count))})
		}
	}
	return append(out, axes(m.x, m.y, plot, fontSize)...)
}

func (m *Heatmap) invert(x, y float64) (float64, float64, bool) {
	return m.x.Invert(x), m.y.Invert(y), true
}

func (m *Heatmap) overlay(sel selection.Selection) []Mark {
	v, ok := sel.(selection.Vector)
	if !ok || len(v) < 2 {
		return nil
	}
	x0, x1 := m.x.Map(v[0].Min()), m.x.Map(v[0].Max())
	y0, y1 := m.y.Map(v[1].Max()), m.y.Map(v[1].Min())
	return []Mark{Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0, Fill: selectionFill, Class: "selection"}}
}
