package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/observability"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/source"
	"github.com/02loveslollipop/shizuku-diagnostics/services/watcher/internal/config"
	"github.com/02loveslollipop/shizuku-diagnostics/services/watcher/internal/db"
	"github.com/02loveslollipop/shizuku-diagnostics/services/watcher/internal/feed"
	"github.com/02loveslollipop/shizuku-diagnostics/services/watcher/internal/models"
	"github.com/02loveslollipop/shizuku-diagnostics/services/watcher/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config error", "error", err)
	}

	logger, err := observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal("logger error", "error", err)
	}

	if err := run(cfg, logger, observability.NewMetrics()); err != nil {
		logger.Fatal("watcher failed", "error", err)
	}
}

func run(cfg config.Config, logger *log.Logger, metrics *observability.Metrics) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, cfg.HTTPTimeout*time.Duration(len(cfg.Variables)+1)+10*time.Second)
	defer cancelTimeout()

	loader, err := source.NewLoader(
		source.WithLogger(logger),
		source.WithMetrics(metrics),
		source.WithCacheSize(0),
		source.WithRetryMax(cfg.RetryMax),
		source.WithTimeout(cfg.HTTPTimeout),
	)
	if err != nil {
		return err
	}

	a := cfg.Analysis
	batches, err := feed.NewClient(loader, cfg.FeedBaseURL, cfg.NullSentinel).FetchAll(ctx, a, cfg.Variables)
	if err != nil {
		return err
	}
	rows := 0
	for _, b := range batches {
		rows += len(b.Rows)
		logger.Info("fetched feed",
			"variable", b.Variable,
			"loop", b.Loop,
			"rows", len(b.Rows),
			"used", utils.CountUsed(b.Rows),
			"dropped", b.Dropped,
		)
	}

	if cfg.DryRun {
		logDryRun(logger, a, batches)
		return nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	analysisID, err := db.UpsertAnalysis(ctx, pool, a)
	if err != nil {
		return err
	}
	if err := db.ReplaceObservations(ctx, pool, analysisID, batches); err != nil {
		return err
	}

	for _, b := range batches {
		metrics.RowsIngested.WithLabelValues(string(b.Loop)).Add(float64(len(b.Rows)))
	}
	logger.Info("ingested analysis", "analysis", a.Key(), "id", analysisID, "rows", rows)
	return nil
}

func logDryRun(logger *log.Logger, a diag.Analysis, batches []models.Batch) {
	logger.Info("dry-run: skipping writes", "analysis", a.Key(), "documents", len(batches))
	for _, b := range batches {
		if len(b.Rows) == 0 {
			continue
		}
		o := b.Rows[0]
		logger.Debug("dry-run: would insert",
			"variable", b.Variable,
			"loop", b.Loop,
			"rows", len(b.Rows),
			"first_lon", o.Longitude,
			"first_lat", o.Latitude,
			"first_adjusted_v", utils.ValuePtrString(o.AdjustedV),
		)
	}
}
