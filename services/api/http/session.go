package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/binning"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/brushbus"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/chart"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/dashboard"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/filter"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/observability"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/selection"
)

const (
	// Chart ids inside a session.
	distributionChart brushbus.ChartID = "distribution"
	mapChart          brushbus.ChartID = "map"

	sendBuffer = 256
)

var (
	errUnknownChart    = errors.New("unknown chart")
	errSessionNotFound = errors.New("session not found")
)

type svgChart interface {
	Attach()
	Detach()
	SetSize(width, height float64)
	WriteSVG(w io.Writer) error
}

type sessionChart interface {
	svgChart
	ID() brushbus.ChartID
	Ready() bool
	PointerDown(x, y float64) bool
	PointerMove(x, y float64)
	PointerUp() selection.Selection
	Selection() selection.Selection
	SetSelection(sel selection.Selection)
}

// clientMessage is anything a websocket client may send. Brush messages
// are decoded again as brushbus.Message.
type clientMessage struct {
	Kind   string           `json:"kind"`
	Source brushbus.ChartID `json:"source"`
	Phase  string           `json:"phase"`
	X      float64          `json:"x"`
	Y      float64          `json:"y"`
	Width  float64          `json:"width"`
	Height float64          `json:"height"`
}

// session is one shared brushing dashboard over a run's observations.
// Every client connected to it sees every brush and every recomputed
// view.
type session struct {
	id        string
	key       string
	bus       *brushbus.Bus
	dash      *dashboard.Dashboard
	charts    map[brushbus.ChartID]sessionChart
	container *chart.Container
	logger    *log.Logger

	// input serializes client messages so pointer sequences and brushes
	// reach the bus in arrival order.
	input sync.Mutex

	mu      sync.Mutex
	clients map[brushbus.ChartID]*client
}

// newSession builds the charts for a variable and feeds them through a
// dashboard. Scalar variables get a histogram of the adjusted field, vector
// variables a 2D histogram of its u and v components; both get a map.
func newSession(id, key string, fc diag.FeatureCollection, typ diag.VariableType, bins int, metrics *observability.Metrics, logger *log.Logger) *session {
	logger = logger.With("session", id)
	bus := brushbus.NewBus()
	s := &session{
		id:        id,
		key:       key,
		bus:       bus,
		dash:      dashboard.New(bus, dashboard.WithLogger(logger), dashboard.WithMetrics(metrics)),
		charts:    make(map[brushbus.ChartID]sessionChart),
		container: chart.NewContainer(),
		logger:    logger,
		clients:   make(map[brushbus.ChartID]*client),
	}

	cfg := chart.Config{ID: distributionChart, Dimension: filter.DefaultField, Bus: bus, Logger: logger}
	if typ == diag.Vector {
		x := filter.Field{Name: filter.DefaultField, Component: "u"}
		y := filter.Field{Name: filter.DefaultField, Component: "v"}
		xt := binning.Thresholds(fc.Values(x.Name, x.Component), filter.DefaultCellCount)
		yt := binning.Thresholds(fc.Values(y.Name, y.Component), filter.DefaultCellCount)
		m := chart.NewHeatmap(cfg, x, y)
		m.SetThresholds(xt, yt)
		s.charts[distributionChart] = m
		s.dash.Register(distributionChart, dashboard.View{
			Dimension: cfg.Dimension,
			Options:   filter.Options{X: x, Y: y, XThresholds: xt, YThresholds: yt},
		})
	} else {
		field := filter.Field{Name: filter.DefaultField}
		thresholds := binning.Thresholds(fc.Values(field.Name, ""), bins)
		h := chart.NewHistogram(cfg, field)
		h.SetThresholds(thresholds)
		s.charts[distributionChart] = h
		s.dash.Register(distributionChart, dashboard.View{
			Dimension: cfg.Dimension,
			Options:   filter.Options{Field: field, Thresholds: thresholds},
		})
	}

	fill := filter.Field{Name: filter.DefaultField}
	if typ == diag.Vector {
		fill.Component = "magnitude"
	}
	s.charts[mapChart] = chart.NewBubbleMap(chart.Config{ID: mapChart, Dimension: filter.RegionDimension, Bus: bus, Logger: logger}, fill)
	s.dash.Register(mapChart, dashboard.View{Dimension: filter.RegionDimension})

	for _, ch := range s.charts {
		s.container.Add(ch)
		ch.Attach()
	}
	s.container.Resize(defaultChartWidth, defaultChartHeight)
	s.container.Flush()

	s.dash.SetData(fc)
	return s
}

// restore applies the selections of a query string to the session.
func (s *session) restore(q url.Values) error {
	if err := s.dash.Restore(q); err != nil {
		return err
	}
	set := s.dash.Set()
	for id, ch := range s.charts {
		dim := filter.DefaultField
		if id == mapChart {
			dim = filter.RegionDimension
		}
		ch.SetSelection(set[dim])
	}
	return nil
}

func (s *session) close() {
	s.dash.Close()
	for _, ch := range s.charts {
		s.container.Remove(ch)
		ch.Detach()
	}
}

func (s *session) chart(id brushbus.ChartID) (sessionChart, bool) {
	ch, ok := s.charts[id]
	return ch, ok
}

func (s *session) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// addClient subscribes c to the bus and sends it the current views.
func (s *session) addClient(c *client) {
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()

	c.unsubscribe = s.bus.Subscribe(c.id, func(msg brushbus.Message) { c.sendMessage(msg) })
	query := s.dash.Query()
	for _, id := range s.dash.Views() {
		res, ok := s.dash.Result(id)
		if !ok {
			continue
		}
		c.sendMessage(brushbus.Message{
			Kind:   brushbus.KindUpdate,
			Source: s.dash.ID(),
			Result: filter.Update{View: id, Query: query, Result: res},
		})
	}
}

// removeClient reports whether the session is now empty.
func (s *session) removeClient(c *client) bool {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c.id)
	return len(s.clients) == 0
}

// handle applies one client message.
func (s *session) handle(c *client, data []byte) error {
	var m clientMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}

	s.input.Lock()
	defer s.input.Unlock()

	switch m.Kind {
	case string(brushbus.KindBrush):
		var msg brushbus.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return err
		}
		if msg.Source == "" {
			msg.Source = c.id
		}
		if err := s.dash.Validate(msg); err != nil {
			return err
		}
		if ch, ok := s.chart(msg.Source); ok {
			ch.SetSelection(selection.Normalize(msg.Payload))
		}
		s.bus.Publish(msg)
	case "pointer":
		ch, ok := s.chart(m.Source)
		if !ok {
			return fmt.Errorf("%w: %q", errUnknownChart, m.Source)
		}
		switch m.Phase {
		case "down":
			ch.PointerDown(m.X, m.Y)
		case "move":
			ch.PointerMove(m.X, m.Y)
		case "up":
			ch.PointerUp()
		default:
			return fmt.Errorf("unknown pointer phase: %q", m.Phase)
		}
	case "resize":
		if m.Width <= 0 || m.Height <= 0 || m.Width > maxChartSize || m.Height > maxChartSize {
			return fmt.Errorf("invalid size %gx%g", m.Width, m.Height)
		}
		s.container.Resize(m.Width, m.Height)
	default:
		return fmt.Errorf("unknown message kind: %q", m.Kind)
	}
	return nil
}

// hub tracks the open sessions.
type hub struct {
	metrics *observability.Metrics
	logger  *log.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

func newHub(metrics *observability.Metrics, logger *log.Logger) *hub {
	return &hub{metrics: metrics, logger: logger, sessions: make(map[string]*session)}
}

func (h *hub) get(id string) (*session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	return s, ok
}

// open registers a new session with c as its first client.
func (h *hub) open(s *session, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[s.id] = s
	h.metrics.ActiveSessions.Inc()
	h.logger.Info("session opened", "session", s.id, "run", s.key)
	s.addClient(c)
}

// join adds c to an open session.
func (h *hub) join(id string, c *client) (*session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errSessionNotFound, id)
	}
	s.addClient(c)
	return s, nil
}

// leave removes c and closes its session once nobody is left.
func (h *hub) leave(s *session, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !s.removeClient(c) {
		return
	}
	if _, ok := h.sessions[s.id]; !ok {
		return
	}
	delete(h.sessions, s.id)
	s.close()
	h.metrics.ActiveSessions.Dec()
	h.logger.Info("session closed", "session", s.id)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		clients := make([]*client, 0, len(s.clients))
		for _, c := range s.clients {
			clients = append(clients, c)
		}
		s.mu.Unlock()
		for _, c := range clients {
			c.close()
		}
	}
}

// client is one websocket connection in a session.
type client struct {
	id          brushbus.ChartID
	conn        *websocket.Conn
	send        chan []byte
	logger      *log.Logger
	unsubscribe func()

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, logger *log.Logger) *client {
	return &client{
		id:     brushbus.NewChartID(),
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		logger: logger,
	}
}

func (c *client) sendMessage(msg brushbus.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("encode message", "client", c.id, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("dropping message for slow client", "client", c.id, "kind", msg.Kind)
	}
}

func (c *client) sendError(err error) {
	c.sendMessage(brushbus.Message{Kind: brushbus.KindError, Error: err.Error()})
}

// close stops the write pump. The read pump ends when the connection does.
func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump hands client messages to handle until the connection closes.
func (c *client) readPump(handle func([]byte) error) {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read", "client", c.id, "error", err)
			}
			return
		}
		if err := handle(message); err != nil {
			c.logger.Debug("rejected client message", "client", c.id, "error", err)
			c.sendError(err)
		}
	}
}

// writePump writes queued messages until the send channel is closed.
func (c *client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.logger.Debug("websocket write", "client", c.id, "error", err)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
