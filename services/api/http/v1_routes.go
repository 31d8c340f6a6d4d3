package http

import "github.com/gin-gonic/gin"

// registerV1Routes sets up the v1 API structure
// Groups: /api/v1/diag, /api/v1/remote, /api/v1/sessions
func (s *Server) registerV1Routes() {
	v1 := s.engine.Group("/api/v1")
	v1.Use(apiVersionMiddleware()) // Add X-API-Version: v1 header

	diag := v1.Group("/diag")
	{
		diag.GET("/", s.handleModelMetadata)

		variable := diag.Group("/:model/:system/:domain/:background/:frequency/:variable")
		variable.GET("/history/:loop/", s.handleHistory)

		run := variable.Group("/:init/:loop")
		{
			run.GET("/", s.handleObservations)
			run.GET("/magnitude/", s.handleMagnitude)
			run.GET("/bins/", s.handleBins)
			run.GET("/cells/", s.handleCells)
			run.GET("/histogram.svg", s.handleHistogramSVG)
			run.GET("/heatmap.svg", s.handleHeatmapSVG)
			run.GET("/map.svg", s.handleMapSVG)
			run.GET("/session", s.handleSession)
		}
	}

	v1.GET("/remote/session", s.handleRemoteSession)

	// Brushing sessions opened through the session endpoints above
	sessions := v1.Group("/sessions")
	{
		sessions.GET("/:session", s.handleSessionState)
		sessions.GET("/:session/charts/:chart", s.handleSessionChart)
	}
}

func apiVersionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-API-Version", "v1")
		c.Next()
	}
}
