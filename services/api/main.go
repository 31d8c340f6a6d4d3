package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/charmbracelet/log"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/observability"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/source"
	apiconfig "github.com/02loveslollipop/shizuku-diagnostics/services/api/config"
	"github.com/02loveslollipop/shizuku-diagnostics/services/api/db"
	"github.com/02loveslollipop/shizuku-diagnostics/services/api/history"
	httpserver "github.com/02loveslollipop/shizuku-diagnostics/services/api/http"
)

func main() {
	cfg, err := apiconfig.Load()
	if err != nil {
		log.Fatal("config error", "error", err)
	}

	logger, err := observability.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal("logger error", "error", err)
	}
	metrics := observability.NewMetrics()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db connection error", "error", err)
	}
	defer store.Close()

	var opts []history.Option
	if history.IsS3(cfg.HistoryPath) {
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Fatal("aws config error", "error", err)
		}
		opts = append(opts, history.WithS3(s3.NewFromConfig(awsCfg)))
	}
	hist := history.NewReader(cfg.HistoryPath, opts...)

	loader, err := source.NewLoader(
		source.WithLogger(logger),
		source.WithMetrics(metrics),
		source.WithCacheSize(cfg.SourceCacheSize),
	)
	if err != nil {
		logger.Fatal("source loader error", "error", err)
	}

	srv := httpserver.New(cfg, store, hist, metrics, logger, httpserver.WithSources(loader))
	logger.Info("REST API listening", "addr", cfg.ListenAddr(), "history", cfg.HistoryPath)

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server error", "error", err)
	}
}
