package chart

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/brush"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/brushbus"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/filter"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/selection"
)

// With the default font size a 400x300 chart plots x in [48, 384] and y in
// [16, 268].
const (
	width  = 400
	height = 300
)

type recorder struct {
	mu   sync.Mutex
	msgs []brushbus.Message
}

func (r *recorder) handle(m brushbus.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func (r *recorder) kinds() []brushbus.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]brushbus.Kind, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.Kind
	}
	return out
}

func (r *recorder) last() brushbus.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.msgs[len(r.msgs)-1]
}

func count[T Mark](marks []Mark, keep func(T) bool) int {
	n := 0
	for _, m := range marks {
		if t, ok := m.(T); ok && (keep == nil || keep(t)) {
			n++
		}
	}
	return n
}

func bars(s Scene) int {
	return count(s.Marks, func(r Rect) bool { return r.Fill == barFill })
}

func newTestHistogram(t *testing.T, bus *brushbus.Bus) *Histogram {
	t.Helper()
	h := NewHistogram(Config{ID: "histogram", Dimension: "adjusted", Bus: bus}, filter.Field{})
	h.SetThresholds([]float64{0, 2, 4, 10})
	h.SetValues([]float64{1, 2, 2, 3, 9})
	h.Attach()
	h.SetSize(width, height)
	t.Cleanup(h.Detach)
	return h
}

func TestHistogram_Renders(t *testing.T) {
	h := newTestHistogram(t, nil)

	assert.Equal(t, []filter.BinCount{
		{X0: 0, X1: 2, Count: 1},
		{X0: 2, X1: 4, Count: 3},
		{X0: 4, X1: 10, Count: 1},
	}, h.Bins())
	assert.Equal(t, 5, h.Summary().Count)
	assert.Equal(t, 1, h.Renders())
	assert.Equal(t, 3, bars(h.Scene()))
	assert.Equal(t, 1, count[Rect](h.Scene().Marks, func(r Rect) bool { return r.Class == "deviation" }))
}

func TestHistogram_NotReadyUntilAttached(t *testing.T) {
	h := NewHistogram(Config{}, filter.Field{})
	h.SetValues([]float64{1, 2, 3})
	h.SetSize(width, height)

	assert.False(t, h.Ready())
	assert.Zero(t, h.Renders())
	assert.False(t, h.PointerDown(100, 100))

	h.Attach()
	assert.True(t, h.Ready())
	assert.Equal(t, 1, h.Renders())
}

func TestHistogram_BrushPublishesRange(t *testing.T) {
	bus := brushbus.NewBus()
	page := &recorder{}
	bus.Subscribe("page", page.handle)
	h := newTestHistogram(t, bus)

	require.True(t, h.PointerDown(48, 100))
	assert.Equal(t, brush.Dragging, h.BrushState())
	h.PointerMove(216, 100)
	assert.Equal(t, 1, count[Rect](h.Scene().Overlay, nil))

	sel := h.PointerUp()
	require.IsType(t, selection.Range{}, sel)
	r := sel.(selection.Range)
	assert.InDelta(t, 0, r[0], 1e-9)
	assert.InDelta(t, 5, r[1], 1e-9)

	msg := page.last()
	assert.Equal(t, brushbus.KindBrush, msg.Kind)
	assert.Equal(t, brushbus.ChartID("histogram"), msg.Source)
	assert.Equal(t, "adjusted", msg.Dimension)
	assert.True(t, selection.Equal(sel, msg.Payload))
	assert.True(t, selection.Equal(sel, h.Selection()))
	assert.Equal(t, 1, h.Renders(), "brushing redraws only the overlay")
}

func TestHistogram_ClickClears(t *testing.T) {
	bus := brushbus.NewBus()
	page := &recorder{}
	bus.Subscribe("page", page.handle)
	h := newTestHistogram(t, bus)

	require.True(t, h.PointerDown(10, 10))
	assert.Nil(t, h.PointerUp())
	assert.Equal(t, []brushbus.Kind{brushbus.KindBrush}, page.kinds())
	assert.Nil(t, page.last().Payload)
	assert.Empty(t, h.Scene().Overlay)
}

func TestHistogram_SetSelectionRedrawsOverlayOnly(t *testing.T) {
	h := newTestHistogram(t, nil)
	sel := selection.Range{2, 4}
	h.SetSelection(sel)

	assert.Equal(t, 1, h.Renders())
	assert.Equal(t, 1, count[Rect](h.Scene().Overlay, func(r Rect) bool { return r.Class == "selection" }))

	got := h.Selection().(selection.Range)
	got[0] = 99
	assert.Equal(t, selection.Range{2, 4}, h.Selection())
}

func TestElement_AppliesOwnUpdatesOnly(t *testing.T) {
	bus := brushbus.NewBus()
	h := newTestHistogram(t, bus)
	result := filter.Result{Bins: []filter.BinCount{{X0: 0, X1: 10, Count: 7}}, Summary: filter.Summary{Count: 7, Mean: 5}}

	bus.Publish(brushbus.Message{Kind: brushbus.KindUpdate, Source: "page", Result: filter.Update{View: "other", Result: result}})
	assert.Len(t, h.Bins(), 3)

	bus.Publish(brushbus.Message{Kind: brushbus.KindUpdate, Source: "page", Result: filter.Update{View: "histogram", Result: result}})
	assert.Equal(t, result.Bins, h.Bins())
	assert.Equal(t, 7, h.Summary().Count)
	assert.Equal(t, 2, h.Renders())
}

func TestElement_DetachDropsData(t *testing.T) {
	bus := brushbus.NewBus()
	h := newTestHistogram(t, bus)
	h.Detach()

	h.SetValues([]float64{100})
	assert.Len(t, h.Bins(), 3)
	assert.Zero(t, bus.Len())
	assert.False(t, h.Ready())
}

type manualFrames struct {
	mu  sync.Mutex
	fns []func()
}

func (f *manualFrames) RequestFrame(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fns = append(f.fns, fn)
}

func (f *manualFrames) run() int {
	f.mu.Lock()
	fns := f.fns
	f.fns = nil
	f.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

func TestElement_CoalescesRenders(t *testing.T) {
	frames := &manualFrames{}
	h := NewHistogram(Config{Frames: frames}, filter.Field{})
	h.Attach()
	h.SetValues([]float64{1, 2, 3})
	h.SetSize(100, 100)
	h.SetSize(width, height)
	h.SetFontSize(12)

	assert.Equal(t, 1, frames.run())
	assert.Equal(t, 1, h.Renders())
	assert.Zero(t, frames.run())
}

type fakeLoader struct {
	mu     sync.Mutex
	calls  map[string]int
	fc     diag.FeatureCollection
	values []float64
	err    error
}

func (l *fakeLoader) record(src string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.calls == nil {
		l.calls = map[string]int{}
	}
	l.calls[src]++
	return l.err
}

func (l *fakeLoader) Load(_ context.Context, src string) (diag.FeatureCollection, error) {
	if err := l.record(src); err != nil {
		return diag.FeatureCollection{}, err
	}
	return l.fc.Clone(), nil
}

func (l *fakeLoader) LoadValues(_ context.Context, src string) ([]float64, error) {
	if err := l.record(src); err != nil {
		return nil, err
	}
	return append([]float64(nil), l.values...), nil
}

func obs(lng, lat, adjusted float64) diag.Feature {
	return diag.Observation{Variable: diag.Temperature, Loop: diag.LoopGuess, Longitude: lng, Latitude: lat, IsUsed: true, Adjusted: adjusted}.Feature()
}

func TestElement_LoadOncePerSource(t *testing.T) {
	bus := brushbus.NewBus()
	page := &recorder{}
	bus.Subscribe("page", page.handle)
	loader := &fakeLoader{fc: diag.NewFeatureCollection([]diag.Feature{obs(0, 0, 1), obs(1, 1, 3)})}

	h := NewHistogram(Config{ID: "h", Bus: bus}, filter.Field{Name: "adjusted"})
	h.Attach()
	defer h.Detach()

	require.NoError(t, h.Load(context.Background(), loader, "/a"))
	require.NoError(t, h.Load(context.Background(), loader, "/a"))
	assert.Equal(t, 1, loader.calls["/a"])
	assert.Equal(t, 2, h.Summary().Count)
	assert.Equal(t, "/a", h.Src())
	assert.Equal(t, []brushbus.Kind{brushbus.KindDataLoaded}, page.kinds())
}

func TestElement_LoadFailureKeepsData(t *testing.T) {
	loader := &fakeLoader{values: []float64{1, 2}}
	h := NewHistogram(Config{}, filter.Field{})
	h.Attach()
	require.NoError(t, h.Load(context.Background(), loader, "/values"))

	loader.err = errors.New("boom")
	assert.Error(t, h.Load(context.Background(), loader, "/other"))
	assert.Equal(t, 2, h.Summary().Count)
	assert.Equal(t, "/values", h.Src())
}

func TestElement_LoadAfterDetachIsDropped(t *testing.T) {
	loader := &fakeLoader{values: []float64{1, 2}}
	h := NewHistogram(Config{}, filter.Field{})
	h.Attach()
	h.Detach()

	require.NoError(t, h.Load(context.Background(), loader, "/values"))
	assert.Zero(t, h.Summary().Count)
	assert.Empty(t, loader.calls)
}

func TestHeatmap_CellsAndBrush(t *testing.T) {
	bus := brushbus.NewBus()
	page := &recorder{}
	bus.Subscribe("page", page.handle)

	m := NewHeatmap(Config{ID: "heatmap", Dimension: "adjusted", Bus: bus},
		filter.Field{Name: "adjusted", Component: "u"}, filter.Field{Name: "adjusted", Component: "v"})
	m.SetThresholds([]float64{0, 10, 20}, []float64{0, 5, 10})
	m.SetPoints([][2]float64{{1, 1}, {15, 8}})
	m.Attach()
	m.SetSize(width, height)
	defer m.Detach()

	assert.Equal(t, []filter.CellCount{
		{X0: 0, X1: 10, Y0: 0, Y1: 5, Count: 1},
		{X0: 10, X1: 20, Y0: 5, Y1: 10, Count: 1},
	}, m.Cells())
	assert.Equal(t, 2, count[Rect](m.Scene().Marks, func(r Rect) bool { return r.Class == "" }))

	require.True(t, m.PointerDown(48, 268))
	m.PointerMove(216, 142)
	sel := m.PointerUp()
	require.IsType(t, selection.Vector{}, sel)
	v := sel.(selection.Vector)
	assert.InDelta(t, 0, v[0][0], 1e-9)
	assert.InDelta(t, 10, v[0][1], 1e-9)
	assert.InDelta(t, 0, v[1][0], 1e-9)
	assert.InDelta(t, 5, v[1][1], 1e-9)
	assert.Equal(t, "adjusted", page.last().Dimension)
}

func TestHeatmap_SetFeatures(t *testing.T) {
	wind := func(u, v float64) diag.Feature {
		return diag.Observation{Variable: diag.Wind, Loop: diag.LoopAnalysis, IsUsed: true, Adjusted: u, AdjustedV: &v}.Feature()
	}
	m := NewHeatmap(Config{}, filter.Field{Name: "adjusted", Component: "u"}, filter.Field{Name: "adjusted", Component: "v"})
	m.SetThresholds([]float64{-10, 0, 10}, []float64{-10, 0, 10})
	m.SetFeatures(diag.NewFeatureCollection([]diag.Feature{wind(1, 1), wind(2, 3), wind(-1, -1), obs(0, 0, 4)}))

	assert.Equal(t, []filter.CellCount{
		{X0: -10, X1: 0, Y0: -10, Y1: 0, Count: 1},
		{X0: 0, X1: 10, Y0: 0, Y1: 10, Count: 2},
	}, m.Cells())
}

func TestBubbleMap_RendersAndBrushesRegion(t *testing.T) {
	bus := brushbus.NewBus()
	page := &recorder{}
	bus.Subscribe("page", page.handle)

	m := NewBubbleMap(Config{ID: "map", Bus: bus}, filter.Field{Name: "adjusted"})
	m.SetFeatures(diag.NewFeatureCollection([]diag.Feature{obs(-100, 40, -2), obs(-90, 30, 4), obs(-95, 35, 1)}))
	m.Attach()
	m.SetSize(width, height)
	defer m.Detach()

	assert.Equal(t, filter.RegionDimension, m.Dimension())
	assert.Equal(t, PuOr, m.Scale().Colors)
	assert.Equal(t, [2]float64{-4, 4}, m.Scale().Domain)

	circles := count[Circle](m.Scene().Marks, nil)
	assert.Equal(t, 3, circles)
	assert.Equal(t, LegendSteps, count[Rect](m.Scene().Marks, func(r Rect) bool { return r.Class == "legend" }))

	x0, y0 := m.proj.Project(-100, 40)
	x1, y1 := m.proj.Project(-90, 30)
	require.True(t, m.PointerDown(x1, y1))
	m.PointerMove(x0, y0)
	sel := m.PointerUp()

	require.IsType(t, selection.Region{}, sel)
	r := sel.(selection.Region)
	assert.InDelta(t, -100, r.Left(), 1e-6)
	assert.InDelta(t, -90, r.Right(), 1e-6)
	assert.InDelta(t, 40, r.Top(), 1e-6)
	assert.InDelta(t, 30, r.Bottom(), 1e-6)
	assert.Equal(t, filter.RegionDimension, page.last().Dimension)
	assert.Equal(t, 1, count[Rect](m.Scene().Overlay, nil))
}

func TestFillScale(t *testing.T) {
	assert.Equal(t, Quantize{Domain: [2]float64{1, 5}, Colors: Purples}, FillScale(1, 5))
	assert.Equal(t, Quantize{Domain: [2]float64{-5, -1}, Colors: Purples}, FillScale(-5, -1))
	assert.Equal(t, Quantize{Domain: [2]float64{-5, 5}, Colors: PuOr}, FillScale(-1, 5))
	assert.Equal(t, Quantize{Domain: [2]float64{-5, 5}, Colors: PuOr}, FillScale(0, 5))
}

func TestQuantize(t *testing.T) {
	q := Quantize{Domain: [2]float64{0, 9}, Colors: YlGnBu}
	assert.Equal(t, YlGnBu[0], q.Color(-1))
	assert.Equal(t, YlGnBu[0], q.Color(0))
	assert.Equal(t, YlGnBu[4], q.Color(4.5))
	assert.Equal(t, YlGnBu[8], q.Color(9))
	assert.Equal(t, YlGnBu[8], q.Color(100))
	assert.Equal(t, YlGnBu[0], Quantize{Domain: [2]float64{3, 3}, Colors: YlGnBu}.Color(3))
}

func TestRadius(t *testing.T) {
	r := Radius{Max: 4}
	assert.Equal(t, float64(MinRadius), r.Of(0))
	assert.Equal(t, float64(MaxRadius), r.Of(4))
	assert.Equal(t, float64(MaxRadius), r.Of(-4))
	assert.InDelta(t, MinRadius+0.5*(MaxRadius-MinRadius), r.Of(1), 1e-12)
	assert.Equal(t, float64(MinRadius), Radius{}.Of(3))
}

func TestScene_WriteSVG(t *testing.T) {
	h := newTestHistogram(t, nil)
	h.SetSelection(selection.Range{2, 4})

	var buf bytes.Buffer
	require.NoError(t, h.WriteSVG(&buf))
	out := buf.String()
	assert.Contains(t, out, "<svg")
	assert.Contains(t, out, `viewBox="0 0 400 300"`)
	assert.Equal(t, 3, strings.Count(out, `fill="`+barFill+`"`))
	assert.Contains(t, out, `class="selection"`)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "</svg>"))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed") }

func TestScene_WriteSVGError(t *testing.T) {
	assert.EqualError(t, Scene{Width: 1, Height: 1}.WriteSVG(failingWriter{}), "closed")
}

type sizable struct {
	ready bool
	w, h  float64
}

func (s *sizable) SetSize(w, h float64) { s.w, s.h = w, h }
func (s *sizable) Ready() bool          { return s.ready }

func TestContainer_DefersUntilReady(t *testing.T) {
	c := NewContainer()
	ready := &sizable{ready: true}
	late := &sizable{}
	c.Add(ready)
	c.Add(late)

	c.Resize(640, 480)
	assert.Equal(t, 640.0, ready.w)
	assert.Zero(t, late.w)
	assert.Equal(t, 1, c.Flush())

	late.ready = true
	assert.Zero(t, c.Flush())
	assert.Equal(t, 480.0, late.h)

	added := &sizable{ready: true}
	c.Add(added)
	assert.Equal(t, 640.0, added.w)

	c.Remove(added)
	assert.Equal(t, 2, c.Len())
}

func TestContainer_SizesCharts(t *testing.T) {
	c := NewContainer()
	h := NewHistogram(Config{}, filter.Field{})
	h.SetValues([]float64{1, 2, 3})
	c.Add(h)
	c.Resize(width, height)
	assert.Zero(t, h.Renders())

	h.Attach()
	defer h.Detach()
	c.Flush()
	w, hh := h.Size()
	assert.Equal(t, float64(width), w)
	assert.Equal(t, float64(height), hh)
	assert.Equal(t, 1, h.Renders())
}
