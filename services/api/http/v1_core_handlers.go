package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/filter"
	"github.com/02loveslollipop/shizuku-diagnostics/services/api/db"
	"github.com/02loveslollipop/shizuku-diagnostics/services/api/history"
)

var (
	// errBadRequest marks malformed path or query parameters.
	errBadRequest = errors.New("bad request")
	errNotFound   = errors.New("not found")
	errBadGateway = errors.New("bad gateway")
)

// optionParams are request options rather than observation filters.
var optionParams = []string{"field", "thresholds", "count", "x", "y", "width", "height", "session", "src"}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, filter.ErrBadCriterion):
		return http.StatusBadRequest
	case errors.Is(err, errNotFound), errors.Is(err, errSessionNotFound),
		errors.Is(err, db.ErrNotFound), errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errBadGateway):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// filterValues drops the request options from a query string.
func filterValues(q url.Values) url.Values {
	out := url.Values{}
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	for _, k := range optionParams {
		out.Del(k)
	}
	return out
}

func analysisFromPath(c *gin.Context) diag.Analysis {
	return diag.Analysis{
		Model:              c.Param("model"),
		System:             c.Param("system"),
		Domain:             c.Param("domain"),
		Background:         c.Param("background"),
		Frequency:          c.Param("frequency"),
		InitializationTime: c.Param("init"),
	}
}

// runQuery reads the analysis, variable and loop from the path.
func runQuery(c *gin.Context) (db.ObservationQuery, error) {
	variable, err := diag.ParseVariable(c.Param("variable"))
	if err != nil {
		return db.ObservationQuery{}, badRequest("%v", err)
	}
	loop, err := diag.ParseLoop(c.Param("loop"))
	if err != nil {
		return db.ObservationQuery{}, badRequest("%v", err)
	}
	a := analysisFromPath(c)
	if _, err := diag.ParseInitTime(a.InitializationTime); err != nil {
		return db.ObservationQuery{}, badRequest("%v", err)
	}
	return db.ObservationQuery{Analysis: a, Variable: variable, Loop: loop}, nil
}

// observations loads the run in the path and applies the flag and equality
// criteria of the query string. Range selections are left to the caller.
func (s *Server) observations(c *gin.Context) (diag.FeatureCollection, filter.Criteria, db.ObservationQuery, error) {
	q, err := runQuery(c)
	if err != nil {
		return diag.FeatureCollection{}, filter.Criteria{}, q, err
	}
	crit, err := filter.ParseQuery(c.Request.URL.Query(), optionParams...)
	if err != nil {
		return diag.FeatureCollection{}, filter.Criteria{}, q, err
	}
	used, _ := crit.Used()
	q.Used = &used

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	rows, err := s.store.FetchObservations(ctx, q)
	if err != nil {
		return diag.FeatureCollection{}, filter.Criteria{}, q, err
	}
	return filter.Apply(diag.Collection(rows), crit.Base()), crit, q, nil
}

// handleModelMetadata lists models, systems, domains and init times
// GET /api/v1/diag/
func (s *Server) handleModelMetadata(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	md, err := s.store.ModelMetadata(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": md})
}

// handleObservations returns the filtered observations as GeoJSON
// GET /api/v1/diag/:model/:system/:domain/:background/:frequency/:variable/:init/:loop/
func (s *Server) handleObservations(c *gin.Context) {
	fc, crit, _, err := s.observations(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, filter.Apply(fc, crit.Selections.Predicate()))
}

// handleMagnitude is handleObservations with every field replaced by its
// magnitude
// GET /api/v1/diag/.../:init/:loop/magnitude/
func (s *Server) handleMagnitude(c *gin.Context) {
	fc, crit, _, err := s.observations(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, filter.Apply(fc, crit.Selections.Predicate()).Magnitude())
}

// binOptions reads field, thresholds and count from the query string.
func (s *Server) binOptions(c *gin.Context) (filter.Options, error) {
	opts := filter.Options{
		Field: filter.ParseField(c.DefaultQuery("field", filter.DefaultField)),
		Count: s.cfg.HistogramBins,
	}
	if countStr := c.Query("count"); countStr != "" {
		count, err := strconv.Atoi(countStr)
		if err != nil || count <= 0 {
			return opts, badRequest("invalid count: %s", countStr)
		}
		opts.Count = count
	}
	for _, t := range c.QueryArray("thresholds") {
		v, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return opts, badRequest("invalid threshold: %s", t)
		}
		opts.Thresholds = append(opts.Thresholds, v)
	}
	return opts, nil
}

// handleBins returns histogram bins and a summary of one field
// GET /api/v1/diag/.../:init/:loop/bins/?field=adjusted&count=40
func (s *Server) handleBins(c *gin.Context) {
	opts, err := s.binOptions(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	fc, crit, _, err := s.observations(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	res := filter.Aggregate(fc, crit.Set(), opts)
	c.JSON(http.StatusOK, gin.H{
		"data": res,
		"meta": gin.H{
			"field": opts.Field.String(),
			"count": len(res.Bins),
		},
	})
}

// handleHistory returns min, max, mean and count per initialization time
// GET /api/v1/diag/:model/:system/:domain/:background/:frequency/:variable/history/:loop/
func (s *Server) handleHistory(c *gin.Context) {
	variable, err := diag.ParseVariable(c.Param("variable"))
	if err != nil {
		s.fail(c, badRequest("%v", err))
		return
	}
	loop, err := diag.ParseLoop(c.Param("loop"))
	if err != nil {
		s.fail(c, badRequest("%v", err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	summaries, err := s.history.Summaries(ctx, analysisFromPath(c), variable, loop)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": summaries,
		"meta": gin.H{"count": len(summaries)},
	})
}
