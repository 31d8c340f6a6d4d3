package chart

import (
	"context"
	"math"

	"github.com/aclements/go-moremath/stats"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/brush"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/filter"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/geom"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/selection"
)

// LegendSteps is the number of swatches in the map legend.
const LegendSteps = 9

// BubbleMap draws one bubble per observation, sized by the magnitude of the
// fill field and colored by its value. Brushing selects a region.
type BubbleMap struct {
	*Element

	fill     filter.Field
	features diag.FeatureCollection
	proj     geom.Equirectangular
}

// NewBubbleMap builds a map colored by fill.
func NewBubbleMap(cfg Config, fill filter.Field) *BubbleMap {
	if cfg.Dimension == "" {
		cfg.Dimension = filter.RegionDimension
	}
	m := &BubbleMap{fill: fill}
	m.Element = newElement(cfg, brush.ShapeRegion, m)
	return m
}

// SetFeatures replaces the observations on the map.
func (m *BubbleMap) SetFeatures(fc diag.FeatureCollection) {
	fc = fc.Clone()
	m.update(func() { m.features = fc })
}

// Features returns a copy of the observations on the map.
func (m *BubbleMap) Features() diag.FeatureCollection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.features.Clone()
}

// Scale returns the fill palette for the current observations.
func (m *BubbleMap) Scale() Quantize {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scale()
}

func (m *BubbleMap) scale() Quantize {
	values := m.features.Values(m.fill.Name, m.fill.Component)
	if len(values) == 0 {
		return Quantize{Colors: Purples}
	}
	lo, hi := stats.Bounds(values)
	return FillScale(lo, hi)
}

func (m *BubbleMap) apply(r filter.Result) {
	m.features = r.Features.Clone()
}

func (m *BubbleMap) fetch(ctx context.Context, l Loader, src string) (func(), error) {
	fc, err := l.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	return func() { m.features = fc }, nil
}

func (m *BubbleMap) marks(plot geom.Plot, fontSize float64) []Mark {
	mapArea := plot
	mapArea.Y1 -= 2 * fontSize

	points := make([][2]float64, 0, len(m.features.Features))
	for _, f := range m.features.Features {
		if p, ok := f.Geometry.Point(); ok {
			points = append(points, [2]float64{p.Lng(), p.Lat()})
		}
	}
	m.proj = geom.FitExtent(mapArea, points)

	fill := m.scale()
	var largest float64
	for _, v := range m.features.Values(m.fill.Name, m.fill.Component) {
		largest = math.Max(largest, math.Abs(v))
	}
	radius := Radius{Max: largest}

	var out []Mark
	for _, f := range m.features.Features {
		p, ok := f.Geometry.Point()
		if !ok {
			continue
		}
		v, ok := f.Properties.Field(m.fill.Name)
		if !ok {
			continue
		}
		c, ok := v.Component(m.fill.Component)
		if !ok {
			continue
		}
		x, y := m.proj.Project(p.Lng(), p.Lat())
		out = append(out, Circle{X: x, Y: y, R: radius.Of(c), Fill: fill.Color(c)})
	}
	return append(out, legend(fill, plot, fontSize)...)
}

// legend draws the palette swatches under the map with the domain ends.
func legend(q Quantize, plot geom.Plot, fontSize float64) []Mark {
	if len(q.Colors) == 0 {
		return nil
	}
	w := plot.Width() / float64(len(q.Colors))
	y := plot.Y1 - fontSize
	out := make([]Mark, 0, len(q.Colors)+2)
	for i, c := range q.Colors {
		out = append(out, Rect{X: plot.X0 + float64(i)*w, Y: y, W: w, H: fontSize / 2, Fill: c, Class: "legend"})
	}
	return append(out,
		Text{X: plot.X0, Y: plot.Y1, Text: formatTick(q.Domain[0]), Anchor: "start"},
		Text{X: plot.X1, Y: plot.Y1, Text: formatTick(q.Domain[1]), Anchor: "end"},
	)
}

func (m *BubbleMap) invert(x, y float64) (float64, float64, bool) {
	lng, lat := m.proj.Invert(x, y)
	return lng, lat, true
}

func (m *BubbleMap) overlay(sel selection.Selection) []Mark {
	r, ok := sel.(selection.Region)
	if !ok {
		return nil
	}
	r = r.Normalized()
	x0, y0 := m.proj.Project(r.Left(), r.Top())
	x1, y1 := m.proj.Project(r.Right(), r.Bottom())
	return []Mark{Rect{X: math.Min(x0, x1), Y: math.Min(y0, y1), W: math.Abs(x1 - x0), H: math.Abs(y1 - y0), Fill: selectionFill, Class: "selection"}}
}
