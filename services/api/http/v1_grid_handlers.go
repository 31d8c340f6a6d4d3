package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/binning"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/chart"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/filter"
)

const (
	defaultChartWidth  = 640
	defaultChartHeight = 400
	maxChartSize       = 4096
)

// gridFields reads the x and y fields of a 2D histogram. Vector variables
// default to the u and v components of the adjusted field.
func gridFields(c *gin.Context, variable diag.Variable) (filter.Field, filter.Field, error) {
	x, y := c.Query("x"), c.Query("y")
	if x == "" && variable.Type() == diag.Vector {
		x = filter.DefaultField + ".u"
		if y == "" {
			y = filter.DefaultField + ".v"
		}
	}
	if x == "" || y == "" {
		return filter.Field{}, filter.Field{}, badRequest("x and y fields are required for %s", variable)
	}
	return filter.ParseField(x), filter.ParseField(y), nil
}

// handleCells returns the non-empty cells of a 2D histogram
// GET /api/v1/diag/.../:init/:loop/cells/?x=adjusted.u&y=adjusted.v
func (s *Server) handleCells(c *gin.Context) {
	q, err := runQuery(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	x, y, err := gridFields(c, q.Variable)
	if err != nil {
		s.fail(c, err)
		return
	}
	fc, crit, _, err := s.observations(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	filtered := filter.Apply(fc, crit.Selections.Predicate())
	cells := filter.Cells(fc, filtered, filter.Options{X: x, Y: y})
	if cells == nil {
		cells = []filter.CellCount{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data": cells,
		"meta": gin.H{
			"x":     x.String(),
			"y":     y.String(),
			"count": len(filtered.Features),
		},
	})
}

func chartSize(c *gin.Context) (float64, float64, error) {
	size := func(name string, def int) (float64, error) {
		v := c.Query(name)
		if v == "" {
			return float64(def), nil
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxChartSize {
			return 0, badRequest("invalid %s: %s", name, v)
		}
		return float64(n), nil
	}
	w, err := size("width", defaultChartWidth)
	if err != nil {
		return 0, 0, err
	}
	h, err := size("height", defaultChartHeight)
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

// renderChart sizes an attached chart and writes it as SVG.
func (s *Server) renderChart(c *gin.Context, ch svgChart, width, height float64) {
	ch.Attach()
	defer ch.Detach()
	ch.SetSize(width, height)

	c.Header("Content-Type", "image/svg+xml")
	c.Status(http.StatusOK)
	if err := ch.WriteSVG(c.Writer); err != nil {
		s.logger.Error("write chart", "path", c.Request.URL.Path, "error", err)
	}
}

// handleHistogramSVG renders the histogram of one field with the brushed
// range of that field drawn over it
// GET /api/v1/diag/.../:init/:loop/histogram.svg?field=adjusted
func (s *Server) handleHistogramSVG(c *gin.Context) {
	width, height, err := chartSize(c)
	if err != nil {
		s.fail(c, err)
		return
	}
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

	dim := opts.Field.String()
	thresholds := opts.Thresholds
	if thresholds == nil {
		thresholds = binning.Thresholds(fc.Values(opts.Field.Name, opts.Field.Component), opts.Count)
	}
	h := chart.NewHistogram(chart.Config{ID: "histogram", Dimension: dim, Logger: s.logger}, opts.Field)
	h.SetThresholds(thresholds)
	h.SetFeatures(filter.Apply(fc, crit.Set().With(dim, nil).Predicate()))
	h.SetSelection(crit.Selections[dim])
	s.renderChart(c, h, width, height)
}

// handleHeatmapSVG renders a 2D histogram
// GET /api/v1/diag/.../:init/:loop/heatmap.svg?x=adjusted.u&y=adjusted.v
func (s *Server) handleHeatmapSVG(c *gin.Context) {
	width, height, err := chartSize(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	q, err := runQuery(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	x, y, err := gridFields(c, q.Variable)
	if err != nil {
		s.fail(c, err)
		return
	}
	fc, crit, _, err := s.observations(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	m := chart.NewHeatmap(chart.Config{ID: "heatmap", Logger: s.logger}, x, y)
	m.SetThresholds(
		binning.Thresholds(fc.Values(x.Name, x.Component), filter.DefaultCellCount),
		binning.Thresholds(fc.Values(y.Name, y.Component), filter.DefaultCellCount),
	)
	m.SetFeatures(filter.Apply(fc, crit.Selections.Predicate()))
	s.renderChart(c, m, width, height)
}

// handleMapSVG renders the observations as bubbles colored by one field
// GET /api/v1/diag/.../:init/:loop/map.svg?field=adjusted
func (s *Server) handleMapSVG(c *gin.Context) {
	width, height, err := chartSize(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	q, err := runQuery(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	fc, crit, _, err := s.observations(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	fill := filter.ParseField(c.DefaultQuery("field", filter.DefaultField))
	if q.Variable.Type() == diag.Vector && fill.Component == "" {
		fill.Component = "magnitude"
	}
	m := chart.NewBubbleMap(chart.Config{ID: "map", Logger: s.logger}, fill)
	m.SetFeatures(filter.Apply(fc, crit.Set().With(filter.RegionDimension, nil).Predicate()))
	m.SetSelection(crit.Selections[filter.RegionDimension])
	s.renderChart(c, m, width, height)
}
