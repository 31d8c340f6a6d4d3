package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
)

const (
	defaultHTTPTimeout  = 30 * time.Second
	defaultRetryMax     = 3
	defaultNullSentinel = -900
)

// Config holds runtime configuration for the watcher service.
type Config struct {
	DatabaseURL  string
	FeedBaseURL  string
	Analysis     diag.Analysis
	Variables    []diag.Variable
	HTTPTimeout  time.Duration
	RetryMax     int
	NullSentinel float64
	LogLevel     string
	LogFormat    string
	DryRun       bool
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{
		Variables:    append([]diag.Variable(nil), diag.Variables...),
		HTTPTimeout:  defaultHTTPTimeout,
		RetryMax:     defaultRetryMax,
		NullSentinel: defaultNullSentinel,
		LogLevel:     "info",
		LogFormat:    "text",
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	cfg.FeedBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("FEED_BASE_URL")), "/")
	if cfg.FeedBaseURL == "" {
		return cfg, errors.New("FEED_BASE_URL is required")
	}

	cfg.Analysis = diag.Analysis{
		Model:      strings.TrimSpace(os.Getenv("WATCHER_MODEL")),
		System:     strings.TrimSpace(os.Getenv("WATCHER_SYSTEM")),
		Domain:     strings.TrimSpace(os.Getenv("WATCHER_DOMAIN")),
		Background: strings.TrimSpace(os.Getenv("WATCHER_BACKGROUND")),
		Frequency:  strings.TrimSpace(os.Getenv("WATCHER_FREQUENCY")),
	}
	for name, v := range map[string]string{
		"WATCHER_MODEL":     cfg.Analysis.Model,
		"WATCHER_SYSTEM":    cfg.Analysis.System,
		"WATCHER_DOMAIN":    cfg.Analysis.Domain,
		"WATCHER_FREQUENCY": cfg.Analysis.Frequency,
	} {
		if v == "" {
			return cfg, fmt.Errorf("%s is required", name)
		}
	}

	initTime := strings.TrimSpace(os.Getenv("WATCHER_INIT_TIME"))
	if initTime == "" {
		return cfg, errors.New("WATCHER_INIT_TIME is required")
	}
	t, err := diag.ParseInitTime(initTime)
	if err != nil {
		return cfg, fmt.Errorf("invalid WATCHER_INIT_TIME: %s", initTime)
	}
	cfg.Analysis.InitializationTime = diag.FormatInitTime(t)

	if v := strings.TrimSpace(os.Getenv("WATCHER_VARIABLES")); v != "" {
		cfg.Variables = cfg.Variables[:0]
		for _, part := range strings.Split(v, ",") {
			variable, err := diag.ParseVariable(part)
			if err != nil {
				return cfg, fmt.Errorf("invalid WATCHER_VARIABLES: %w", err)
			}
			cfg.Variables = append(cfg.Variables, variable)
		}
	}

	if v := strings.TrimSpace(os.Getenv("WATCHER_HTTP_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid WATCHER_HTTP_TIMEOUT: %s", v)
		}
		cfg.HTTPTimeout = d
	}

	if v := strings.TrimSpace(os.Getenv("WATCHER_RETRY_MAX")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return cfg, fmt.Errorf("invalid WATCHER_RETRY_MAX: %s", v)
		}
		cfg.RetryMax = n
	}

	if v := strings.TrimSpace(os.Getenv("WATCHER_NULL_SENTINEL")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid WATCHER_NULL_SENTINEL: %w", err)
		}
		cfg.NullSentinel = f
	}

	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		cfg.LogLevel = level
	}
	if format := strings.TrimSpace(os.Getenv("LOG_FORMAT")); format != "" {
		cfg.LogFormat = format
	}

	dryRun := strings.TrimSpace(os.Getenv("WATCHER_DRY_RUN"))
	cfg.DryRun = dryRun == "1" || strings.EqualFold(dryRun, "true")

	return cfg, nil
}
