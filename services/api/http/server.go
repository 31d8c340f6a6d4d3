package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/observability"
	"github.com/02loveslollipop/shizuku-diagnostics/services/api/config"
	"github.com/02loveslollipop/shizuku-diagnostics/services/api/db"
	"github.com/02loveslollipop/shizuku-diagnostics/services/api/history"
)

// Store reads analyses and observations. *db.Store implements it.
type Store interface {
	ModelMetadata(ctx context.Context) (db.Metadata, error)
	FetchObservations(ctx context.Context, q db.ObservationQuery) ([]diag.Observation, error)
}

// History summarizes past runs. *history.Reader implements it.
type History interface {
	Summaries(ctx context.Context, a diag.Analysis, v diag.Variable, loop diag.Loop) ([]history.Summary, error)
}

// Sources loads remote feature collections. *source.Loader implements it.
type Sources interface {
	Load(ctx context.Context, src string) (diag.FeatureCollection, error)
}

// Option configures optional server dependencies.
type Option func(*Server)

// WithSources enables sessions over remote GeoJSON sources.
func WithSources(src Sources) Option {
	return func(s *Server) { s.sources = src }
}

// Server bundles router and dependencies for the REST API.
type Server struct {
	cfg      config.Config
	store    Store
	history  History
	sources  Sources
	metrics  *observability.Metrics
	logger   *log.Logger
	sessions *hub
	engine   *gin.Engine
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, store Store, hist History, metrics *observability.Metrics, logger *log.Logger, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())
	engine.Use(corsMiddleware())

	if cfg.BearerToken != "" {
		engine.Use(bearerAuthMiddleware(cfg.BearerToken))
	}
	if logger == nil {
		logger = observability.Discard()
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}

	server := &Server{
		cfg:      cfg,
		store:    store,
		history:  hist,
		metrics:  metrics,
		logger:   logger,
		sessions: newHub(metrics, logger),
		engine:   engine,
	}
	for _, opt := range opts {
		opt(server)
	}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.sessions.closeAll()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.registerV1Routes()
}

func bearerAuthMiddleware(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Next()
			return
		}
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token != expected {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// fail maps an error to a status code and writes it as {"error": ...}.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
