// Package dashboard is the page-level controller of a brushing session. It
// keeps the filter set and navigation state, and recomputes every other
// view from the full observation set whenever a brush arrives.
package dashboard

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/brushbus"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/filter"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/observability"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/selection"
)

// ErrInvalidBrush is returned for brush messages the dashboard rejects.
var ErrInvalidBrush = errors.New("dashboard: invalid brush")

// View describes one chart the dashboard recomputes.
type View struct {
	// Dimension is the filter dimension the chart brushes. Its own
	// selection is left out when the chart is recomputed.
	Dimension string
	Options   filter.Options
}

// Option configures a Dashboard.
type Option func(*Dashboard)

// WithID names the dashboard on the bus.
func WithID(id brushbus.ChartID) Option {
	return func(d *Dashboard) { d.id = id }
}

func WithLogger(l *log.Logger) Option {
	return func(d *Dashboard) { d.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(d *Dashboard) { d.metrics = m }
}

// Dashboard listens to a bus for brushes and publishes one update per
// affected view.
type Dashboard struct {
	id      brushbus.ChartID
	bus     *brushbus.Bus
	nav     *brushbus.Navigation
	logger  *log.Logger
	metrics *observability.Metrics

	mu          sync.Mutex
	full        diag.FeatureCollection
	set         filter.Set
	views       map[brushbus.ChartID]View
	results     map[brushbus.ChartID]filter.Result
	unsubscribe func()
}

// New subscribes a dashboard to bus.
func New(bus *brushbus.Bus, opts ...Option) *Dashboard {
	d := &Dashboard{
		id:      "dashboard",
		bus:     bus,
		nav:     brushbus.NewNavigation(nil),
		set:     filter.Set{},
		views:   make(map[brushbus.ChartID]View),
		results: make(map[brushbus.ChartID]filter.Result),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = observability.Discard()
	}
	d.unsubscribe = bus.Subscribe(d.id, d.Handle)
	return d
}

// ID is the dashboard's name on the bus.
func (d *Dashboard) ID() brushbus.ChartID { return d.id }

// Close unsubscribes from the bus.
func (d *Dashboard) Close() {
	d.mu.Lock()
	unsubscribe := d.unsubscribe
	d.unsubscribe = nil
	d.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Restore replaces the filter set and navigation from a query string.
// Parameters named in skip are kept in the navigation but not parsed.
func (d *Dashboard) Restore(q url.Values, skip ...string) error {
	crit, err := filter.ParseQuery(q, skip...)
	if err != nil {
		return err
	}
	nav := brushbus.NewNavigation(q)
	for key, values := range q {
		if len(values) > 0 && strings.Contains(values[0], brushbus.Delimiter) && !slices.Contains(skip, key) {
			nav.Apply(key, crit.Selections[key])
		}
	}

	d.mu.Lock()
	d.set = crit.Set()
	d.nav = nav
	updates := d.recompute("")
	d.mu.Unlock()

	d.publish(updates)
	return nil
}

// Register adds or replaces a view and publishes its first result when
// data is present.
func (d *Dashboard) Register(id brushbus.ChartID, v View) {
	d.mu.Lock()
	d.views[id] = v
	var updates []brushbus.Message
	if len(d.full.Features) > 0 {
		updates = []brushbus.Message{d.compute(id, v)}
	}
	d.mu.Unlock()

	d.publish(updates)
}

// Views lists the registered views in id order.
func (d *Dashboard) Views() []brushbus.ChartID {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]brushbus.ChartID, 0, len(d.views))
	for id := range d.views {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SetData replaces the full observation set and recomputes every view.
func (d *Dashboard) SetData(fc diag.FeatureCollection) {
	fc = fc.Clone()

	d.mu.Lock()
	d.full = fc
	updates := d.recompute("")
	d.mu.Unlock()

	d.publish(updates)
}

// Len is the size of the full observation set.
func (d *Dashboard) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.full.Features)
}

// Set returns a copy of the current filter set.
func (d *Dashboard) Set() filter.Set {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.set.Clone()
}

// Query is the navigation state as a query string.
func (d *Dashboard) Query() string {
	d.mu.Lock()
	nav := d.nav
	d.mu.Unlock()
	return nav.Encode()
}

// Result returns the last result computed for a view.
func (d *Dashboard) Result(id brushbus.ChartID) (filter.Result, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.results[id]
	return r, ok
}

// Validate reports why a brush message would be rejected.
func (d *Dashboard) Validate(msg brushbus.Message) error {
	if msg.Kind != brushbus.KindBrush {
		return fmt.Errorf("%w: kind %q", ErrInvalidBrush, msg.Kind)
	}
	if msg.Dimension == "" {
		return fmt.Errorf("%w: missing dimension", ErrInvalidBrush)
	}
	if !selection.Finite(msg.Payload) {
		return fmt.Errorf("%w: non-finite selection", ErrInvalidBrush)
	}
	if msg.Dimension == filter.RegionDimension && msg.Payload != nil {
		if _, ok := msg.Payload.(selection.Region); !ok {
			return fmt.Errorf("%w: %s needs a region, got %s", ErrInvalidBrush, msg.Dimension, selection.ShapeOf(msg.Payload))
		}
	}
	return nil
}

// Handle is the bus subscriber. Brushes update the filter set and the
// navigation, then every view other than the sender is recomputed.
func (d *Dashboard) Handle(msg brushbus.Message) {
	d.count(msg.Kind)
	switch msg.Kind {
	case brushbus.KindBrush:
		if err := d.Validate(msg); err != nil {
			d.logger.Warn("rejected brush", "source", msg.Source, "error", err)
			return
		}
		d.brush(msg)
	case brushbus.KindDataLoaded:
		d.logger.Debug("chart data loaded", "chart", msg.Source)
	}
}

func (d *Dashboard) brush(msg brushbus.Message) {
	d.mu.Lock()
	msg.Payload = d.clamp(msg.Dimension, selection.Normalize(msg.Payload))
	d.set = d.set.With(msg.Dimension, msg.Payload)
	d.nav.Handle(msg)
	updates := d.recompute(msg.Source)
	d.mu.Unlock()

	d.logger.Debug("brush", "source", msg.Source, "dimension", msg.Dimension, "views", len(updates))
	d.publish(updates)
}

// clamp pulls sel into the domain of its dimension over the full set.
// Called with the lock held.
func (d *Dashboard) clamp(dimension string, sel selection.Selection) selection.Selection {
	if sel == nil {
		return nil
	}
	return selection.Clamp(sel, filter.Domain(d.full, dimension, selection.ShapeOf(sel)))
}

// recompute builds an update for every view except skip. Called with the
// lock held.
func (d *Dashboard) recompute(skip brushbus.ChartID) []brushbus.Message {
	if len(d.views) == 0 {
		return nil
	}
	start := time.Now()
	updates := make([]brushbus.Message, 0, len(d.views))
	for id, v := range d.views {
		if id == skip {
			continue
		}
		updates = append(updates, d.compute(id, v))
	}
	if d.metrics != nil {
		d.metrics.RecomputeDuration.Observe(time.Since(start).Seconds())
	}
	sort.Slice(updates, func(i, j int) bool {
		return updates[i].Result.(filter.Update).View < updates[j].Result.(filter.Update).View
	})
	return updates
}

// compute filters the full set with every selection but the view's own.
func (d *Dashboard) compute(id brushbus.ChartID, v View) brushbus.Message {
	set := d.set
	if v.Dimension != "" {
		set = set.With(v.Dimension, nil)
	}
	res := filter.Aggregate(d.full, set, v.Options)
	d.results[id] = res
	return brushbus.Message{
		Kind:      brushbus.KindUpdate,
		Source:    d.id,
		Dimension: v.Dimension,
		Result: filter.Update{
			View:      id,
			Dimension: v.Dimension,
			Query:     d.nav.Encode(),
			Result:    res,
		},
	}
}

func (d *Dashboard) publish(updates []brushbus.Message) {
	for _, u := range updates {
		d.count(u.Kind)
		d.bus.Publish(u)
	}
}

func (d *Dashboard) count(kind brushbus.Kind) {
	if d.metrics != nil {
		d.metrics.BusMessages.WithLabelValues(string(kind)).Inc()
	}
}
