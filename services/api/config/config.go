package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the REST API.
type Config struct {
	DatabaseURL     string
	Port            int
	BearerToken     string
	HistoryPath     string
	AWSRegion       string
	LogLevel        string
	LogFormat       string
	SourceCacheSize int
	HistogramBins   int
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		Port:            8080,
		HistoryPath:     "history.parquet",
		LogLevel:        "info",
		LogFormat:       "text",
		SourceCacheSize: 64,
		HistogramBins:   160,
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	} else if portStr := os.Getenv("API_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid API_PORT: %s", portStr)
		}
	}

	if path := os.Getenv("HISTORY_PATH"); path != "" {
		cfg.HistoryPath = path
	}
	cfg.AWSRegion = os.Getenv("AWS_REGION")

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.LogFormat = format
	}

	if sizeStr := os.Getenv("SOURCE_CACHE_SIZE"); sizeStr != "" {
		if size, err := strconv.Atoi(sizeStr); err == nil && size >= 0 {
			cfg.SourceCacheSize = size
		} else {
			return cfg, fmt.Errorf("invalid SOURCE_CACHE_SIZE: %s", sizeStr)
		}
	}

	if binsStr := os.Getenv("HISTOGRAM_BINS"); binsStr != "" {
		if bins, err := strconv.Atoi(binsStr); err == nil && bins > 0 {
			cfg.HistogramBins = bins
		} else {
			return cfg, fmt.Errorf("invalid HISTOGRAM_BINS: %s", binsStr)
		}
	}

	cfg.BearerToken = os.Getenv("API_BEARER_TOKEN")

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
