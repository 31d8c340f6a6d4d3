package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/brushbus"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/filter"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleSession upgrades to a websocket attached to a brushing session over
// one run. Without ?session= a new session is opened from the run in the
// path and the selections in the query string; its id is returned in the
// X-Session-Id header.
// GET /api/v1/diag/.../:init/:loop/session
func (s *Server) handleSession(c *gin.Context) {
	if id := c.Query("session"); id != "" {
		if _, ok := s.sessions.get(id); !ok {
			s.fail(c, fmt.Errorf("%w: session %s", errNotFound, id))
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, http.Header{"X-Session-Id": {id}})
		if err != nil {
			s.logger.Warn("websocket upgrade", "error", err)
			return
		}
		cl := newClient(conn, s.logger)
		sess, err := s.sessions.join(id, cl)
		if err != nil {
			// Closed between the lookup and the upgrade.
			go cl.writePump()
			cl.sendError(err)
			cl.close()
			return
		}
		s.serveClient(sess, cl)
		return
	}

	fc, _, q, err := s.observations(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.openSession(c, fc, q.Variable.Type(), fmt.Sprintf("%s/%s/%s", q.Analysis.Key(), q.Variable, q.Loop))
}

// handleRemoteSession opens a session over a GeoJSON feature collection
// fetched from src. Flag and equality filters in the query string apply
// to it like they do to stored runs.
// GET /api/v1/remote/session?src=https://...
func (s *Server) handleRemoteSession(c *gin.Context) {
	if s.sources == nil {
		s.fail(c, fmt.Errorf("%w: remote sources are disabled", errNotFound))
		return
	}
	src := c.Query("src")
	if src == "" {
		s.fail(c, badRequest("src is required"))
		return
	}
	crit, err := filter.ParseQuery(c.Request.URL.Query(), optionParams...)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	fc, err := s.sources.Load(ctx, src)
	if err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadGateway, err))
		return
	}
	fc = filter.Apply(fc, crit.Base())

	typ := diag.Scalar
	for _, f := range fc.Features {
		if f.Properties.Type == diag.Vector {
			typ = diag.Vector
			break
		}
	}
	s.openSession(c, fc, typ, src)
}

// openSession builds a session, restores the selections in the query string
// and serves the upgraded connection as its first client.
func (s *Server) openSession(c *gin.Context, fc diag.FeatureCollection, typ diag.VariableType, key string) {
	id := uuid.NewString()
	sess := newSession(id, key, fc, typ, s.cfg.HistogramBins, s.metrics, s.logger)
	if err := sess.restore(filterValues(c.Request.URL.Query())); err != nil {
		sess.close()
		s.fail(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, http.Header{"X-Session-Id": {id}})
	if err != nil {
		sess.close()
		s.logger.Warn("websocket upgrade", "error", err)
		return
	}
	cl := newClient(conn, s.logger)
	s.sessions.open(sess, cl)
	s.serveClient(sess, cl)
}

// serveClient pumps messages until the connection closes, then leaves the
// session.
func (s *Server) serveClient(sess *session, cl *client) {
	go cl.writePump()
	cl.readPump(func(data []byte) error { return sess.handle(cl, data) })
	s.sessions.leave(sess, cl)
	cl.close()
}

// handleSessionState returns the navigation query and the current result of
// every view in a session
// GET /api/v1/sessions/:session
func (s *Server) handleSessionState(c *gin.Context) {
	sess, ok := s.sessions.get(c.Param("session"))
	if !ok {
		s.fail(c, fmt.Errorf("%w: session %s", errNotFound, c.Param("session")))
		return
	}

	query := sess.dash.Query()
	views := make([]filter.Update, 0, len(sess.charts))
	for _, id := range sess.dash.Views() {
		res, ok := sess.dash.Result(id)
		if !ok {
			continue
		}
		views = append(views, filter.Update{View: id, Query: query, Result: res})
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"id":    sess.id,
			"run":   sess.key,
			"query": query,
			"views": views,
		},
		"meta": gin.H{"clients": sess.len()},
	})
}

// handleSessionChart renders one chart of a session as SVG
// GET /api/v1/sessions/:session/charts/:chart
func (s *Server) handleSessionChart(c *gin.Context) {
	sess, ok := s.sessions.get(c.Param("session"))
	if !ok {
		s.fail(c, fmt.Errorf("%w: session %s", errNotFound, c.Param("session")))
		return
	}
	ch, ok := sess.chart(brushbus.ChartID(c.Param("chart")))
	if !ok {
		s.fail(c, fmt.Errorf("%w: chart %s", errNotFound, c.Param("chart")))
		return
	}

	c.Header("Content-Type", "image/svg+xml")
	c.Status(http.StatusOK)
	if err := ch.WriteSVG(c.Writer); err != nil {
		s.logger.Error("write chart", "path", c.Request.URL.Path, "error", err)
	}
}
