// Package brush turns pointer gestures on a chart into selections.
package brush

import (
	"math"
	"sync"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/geom"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/selection"
)

// State is the controller's gesture state.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Shape decides which selection a gesture produces.
type Shape int

const (
	// ShapeRange selects an x range (histograms).
	ShapeRange Shape = iota
	// ShapeVector selects x and y ranges (2D histograms).
	ShapeVector
	// ShapeRegion selects a longitude/latitude box (maps).
	ShapeRegion
)

// Inverter converts a pixel position to data coordinates using the chart's
// current scales or projection. ok is false when the chart cannot invert
// yet, for example before its first render.
type Inverter interface {
	Invert(x, y float64) (dx, dy float64, ok bool)
	// Plot is the interactive area; pointer positions are clamped to it.
	Plot() geom.Plot
}

// Hooks are called by the controller. Overlay runs synchronously on every
// change to the in-progress selection and should only redraw the brush.
// Emit receives the finalized selection, nil included.
type Hooks struct {
	Overlay func(selection.Selection)
	Emit    func(selection.Selection)
}

// Controller is the per-chart brush state machine.
type Controller struct {
	mu      sync.Mutex
	shape   Shape
	inv     Inverter
	hooks   Hooks
	state   State
	anchor  [2]float64
	current [2]float64
}

// NewController returns an idle controller.
func NewController(shape Shape, inv Inverter, hooks Hooks) *Controller {
	return &Controller{shape: shape, inv: inv, hooks: hooks}
}

// State reports whether a drag is in progress.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PointerDown starts a drag at pixel x, y. It is ignored while another drag
// is active or when the position cannot be inverted.
func (c *Controller) PointerDown(x, y float64) bool {
	c.mu.Lock()
	if c.state == Dragging {
		c.mu.Unlock()
		return false
	}
	p, ok := c.invert(x, y)
	if !ok {
		c.mu.Unlock()
		return false
	}
	c.state = Dragging
	c.anchor, c.current = p, p
	sel := c.selectionLocked()
	c.mu.Unlock()

	c.overlay(sel)
	return true
}

// PointerMove moves the free end of the selection while dragging.
func (c *Controller) PointerMove(x, y float64) {
	c.mu.Lock()
	if c.state != Dragging {
		c.mu.Unlock()
		return
	}
	p, ok := c.invert(x, y)
	if !ok {
		c.mu.Unlock()
		return
	}
	c.current = p
	sel := c.selectionLocked()
	c.mu.Unlock()

	c.overlay(sel)
}

// PointerUp ends the drag, normalizes the selection and emits it. A
// degenerate selection is emitted as nil. Outside a drag it does nothing
// and returns nil.
func (c *Controller) PointerUp() selection.Selection {
	c.mu.Lock()
	if c.state != Dragging {
		c.mu.Unlock()
		return nil
	}
	c.state = Idle
	sel := selection.Normalize(c.selectionLocked())
	c.mu.Unlock()

	c.overlay(sel)
	if c.hooks.Emit != nil {
		var out selection.Selection
		if sel != nil {
			out = sel.Clone()
		}
		c.hooks.Emit(out)
	}
	return sel
}

// Current returns the in-progress selection without normalizing it, or
// nil when idle.
func (c *Controller) Current() selection.Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Dragging {
		return nil
	}
	return c.selectionLocked()
}

func (c *Controller) overlay(sel selection.Selection) {
	if c.hooks.Overlay != nil {
		c.hooks.Overlay(sel)
	}
}

func (c *Controller) invert(x, y float64) ([2]float64, bool) {
	if c.inv == nil || math.IsNaN(x) || math.IsNaN(y) {
		return [2]float64{}, false
	}
	plot := c.inv.Plot()
	if plot.Empty() {
		return [2]float64{}, false
	}
	x, y = plot.Clamp(x, y)
	dx, dy, ok := c.inv.Invert(x, y)
	if !ok || !finite(dx) || (c.shape != ShapeRange && !finite(dy)) {
		return [2]float64{}, false
	}
	return [2]float64{dx, dy}, true
}

func (c *Controller) selectionLocked() selection.Selection {
	a, b := c.anchor, c.current
	switch c.shape {
	case ShapeVector:
		return selection.Vector{{a[0], b[0]}, {a[1], b[1]}}
	case ShapeRegion:
		return selection.Region{selection.Point(a), selection.Point(b)}
	default:
		return selection.Range{a[0], b[0]}
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
