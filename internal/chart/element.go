// Package chart implements the brushable charts: histograms, 2D density
// heatmaps and bubble maps. Charts render to SVG scenes, take pointer
// events from the caller and talk to each other only through a brush bus.
package chart

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/brush"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/brushbus"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/filter"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/frame"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/geom"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/observability"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/selection"
)

// DefaultFontSize sizes margins when Config leaves it unset.
const DefaultFontSize = 16

// Config is shared by every chart constructor.
type Config struct {
	// ID defaults to a random id.
	ID brushbus.ChartID
	// Dimension is the filter dimension this chart's brush sets.
	Dimension string
	// Bus may be nil for a chart that is only rendered.
	Bus *brushbus.Bus
	// Frames defaults to rendering immediately.
	Frames   frame.Frames
	FontSize float64
	Logger   *log.Logger
}

// Loader fetches chart data. *source.Loader implements it.
type Loader interface {
	Load(ctx context.Context, src string) (diag.FeatureCollection, error)
	LoadValues(ctx context.Context, src string) ([]float64, error)
}

// view is what a concrete chart supplies to its Element. Every method is
// called with the element lock held.
type view interface {
	marks(plot geom.Plot, fontSize float64) []Mark
	invert(x, y float64) (float64, float64, bool)
	overlay(sel selection.Selection) []Mark
	apply(r filter.Result)
	fetch(ctx context.Context, l Loader, src string) (func(), error)
}

// Element holds the lifecycle every chart shares: size, margins, the
// frame-batched update, the selection and its brush.
type Element struct {
	id        brushbus.ChartID
	dimension string
	bus       *brushbus.Bus
	logger    *log.Logger

	updater   *frame.Updater
	selection *selection.State
	brush     *brush.Controller

	mu          sync.Mutex
	view        view
	width       float64
	height      float64
	fontSize    float64
	attached    bool
	detached    bool
	src         string
	plot        geom.Plot
	scene       Scene
	renders     int
	unsubscribe func()
}

func newElement(cfg Config, shape brush.Shape, v view) *Element {
	e := &Element{
		id:        cfg.ID,
		dimension: cfg.Dimension,
		bus:       cfg.Bus,
		logger:    cfg.Logger,
		view:      v,
		fontSize:  cfg.FontSize,
	}
	if e.id == "" {
		e.id = brushbus.NewChartID()
	}
	if e.logger == nil {
		e.logger = observability.Discard()
	}
	if e.fontSize <= 0 {
		e.fontSize = DefaultFontSize
	}
	frames := cfg.Frames
	if frames == nil {
		frames = frame.Immediate{}
	}
	e.updater = frame.NewUpdater(frames, e.render)
	e.selection = selection.NewState(e.redrawOverlay)
	e.brush = brush.NewController(shape, e, brush.Hooks{
		Overlay: e.selection.Set,
		Emit:    e.emit,
	})
	return e
}

// ID names the chart on the bus.
func (e *Element) ID() brushbus.ChartID { return e.id }

// Dimension is the filter dimension the chart brushes.
func (e *Element) Dimension() string { return e.dimension }

// Attach subscribes the chart to its bus. Until then the chart is not ready
// and does not render.
func (e *Element) Attach() {
	e.mu.Lock()
	if e.attached || e.detached {
		e.mu.Unlock()
		return
	}
	e.attached = true
	e.mu.Unlock()

	if e.bus != nil {
		unsubscribe := e.bus.Subscribe(e.id, e.handle)
		e.mu.Lock()
		e.unsubscribe = unsubscribe
		e.mu.Unlock()
	}
	e.RequestUpdate()
}

// Detach unsubscribes the chart. Data arriving afterwards is dropped and
// no further renders run.
func (e *Element) Detach() {
	e.mu.Lock()
	e.detached = true
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Ready reports whether the chart is attached and can take a size.
func (e *Element) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attached && !e.detached
}

// SetSize sets the pixel size and schedules a render.
func (e *Element) SetSize(width, height float64) {
	e.mu.Lock()
	e.width, e.height = width, height
	e.mu.Unlock()
	e.RequestUpdate()
}

// Size returns the pixel size.
func (e *Element) Size() (float64, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.width, e.height
}

// SetFontSize changes the font size margins derive from.
func (e *Element) SetFontSize(fs float64) {
	if fs <= 0 {
		return
	}
	e.mu.Lock()
	e.fontSize = fs
	e.mu.Unlock()
	e.RequestUpdate()
}

// RequestUpdate schedules a render on the next frame.
func (e *Element) RequestUpdate() {
	e.updater.RequestUpdate()
}

// Renders counts completed renders.
func (e *Element) Renders() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.renders
}

// Selection returns a copy of the current selection.
func (e *Element) Selection() selection.Selection {
	return e.selection.Get()
}

// SetSelection replaces the selection and redraws only the brush overlay.
func (e *Element) SetSelection(sel selection.Selection) {
	e.selection.Set(sel)
}

// PointerDown starts a brush at pixel x, y.
func (e *Element) PointerDown(x, y float64) bool { return e.brush.PointerDown(x, y) }

// PointerMove extends the brush.
func (e *Element) PointerMove(x, y float64) { e.brush.PointerMove(x, y) }

// PointerUp finalizes the brush and publishes it.
func (e *Element) PointerUp() selection.Selection { return e.brush.PointerUp() }

// BrushState reports whether a drag is in progress.
func (e *Element) BrushState() brush.State { return e.brush.State() }

// Scene returns the last rendered scene with the current overlay.
func (e *Element) Scene() Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.scene
	s.Marks = append([]Mark(nil), s.Marks...)
	s.Overlay = append([]Mark(nil), s.Overlay...)
	return s
}

// WriteSVG writes the last rendered scene.
func (e *Element) WriteSVG(w io.Writer) error {
	return e.Scene().WriteSVG(w)
}

// Load fetches src and replaces the chart data. An unchanged src is not
// fetched again. On failure the error is logged and the chart keeps its
// data. Data that arrives after Detach is dropped. A successful load is
// announced on the bus.
func (e *Element) Load(ctx context.Context, l Loader, src string) error {
	if src == "" {
		return nil
	}
	e.mu.Lock()
	if e.detached || src == e.src {
		e.mu.Unlock()
		return nil
	}
	v := e.view
	e.mu.Unlock()

	apply, err := v.fetch(ctx, l, src)
	if err != nil {
		e.logger.Error("load chart data", "chart", e.id, "src", src, "error", err)
		return err
	}

	e.mu.Lock()
	if e.detached {
		e.mu.Unlock()
		e.logger.Debug("dropping data for detached chart", "chart", e.id, "src", src)
		return nil
	}
	e.src = src
	apply()
	e.mu.Unlock()

	e.RequestUpdate()
	if e.bus != nil {
		e.bus.Publish(brushbus.Message{Kind: brushbus.KindDataLoaded, Source: e.id, Dimension: e.dimension})
	}
	return nil
}

// Src is the last successfully loaded source.
func (e *Element) Src() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

// Invert maps a pixel position to data coordinates through the scales of
// the last render.
func (e *Element) Invert(x, y float64) (float64, float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.renders == 0 {
		return 0, 0, false
	}
	return e.view.invert(x, y)
}

// Plot is the interactive area of the last render.
func (e *Element) Plot() geom.Plot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plot
}

// update runs fn under the element lock and schedules a render, unless
// the chart is detached.
func (e *Element) update(fn func()) {
	e.mu.Lock()
	if e.detached {
		e.mu.Unlock()
		return
	}
	fn()
	e.mu.Unlock()
	e.RequestUpdate()
}

func (e *Element) handle(msg brushbus.Message) {
	if msg.Kind != brushbus.KindUpdate {
		return
	}
	u, ok := msg.Result.(filter.Update)
	if !ok || u.View != e.id {
		return
	}
	e.update(func() { e.view.apply(u.Result) })
}

func (e *Element) emit(sel selection.Selection) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(brushbus.Brush(e.id, e.dimension, sel))
}

func (e *Element) render() {
	sel := e.selection.Get()

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.attached || e.detached || e.width <= 0 || e.height <= 0 {
		return
	}
	e.plot = geom.MarginFromFontSize(e.fontSize).Plot(e.width, e.height)
	e.scene = Scene{
		Width:    e.width,
		Height:   e.height,
		FontSize: e.fontSize,
		Marks:    e.view.marks(e.plot, e.fontSize),
	}
	e.renders++
	e.scene.Overlay = e.view.overlay(sel)
	e.logger.Debug("rendered chart", "chart", e.id, "marks", len(e.scene.Marks))
}

func (e *Element) redrawOverlay(sel selection.Selection) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.renders == 0 {
		return
	}
	e.scene.Overlay = e.view.overlay(sel)
}
