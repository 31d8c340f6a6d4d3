package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "debug", "json")
	require.NoError(t, err)

	logger.Debug("loaded", "features", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "loaded", entry["msg"])
	assert.Equal(t, "debug", entry["level"])
	assert.EqualValues(t, 3, entry["features"])
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "WARN", "text")
	require.NoError(t, err)

	logger.Info("hidden")
	assert.Zero(t, buf.Len())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewLogger_Invalid(t *testing.T) {
	_, err := NewLogger(nil, "loud", "text")
	assert.EqualError(t, err, "invalid LOG_LEVEL: loud")

	_, err = NewLogger(nil, "info", "xml")
	assert.EqualError(t, err, "invalid LOG_FORMAT: xml")
}

func TestMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.SourceCache.WithLabelValues("hit").Inc()
	a.ActiveSessions.Set(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.SourceCache.WithLabelValues("hit")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SourceCache.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.ActiveSessions))

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(a.RecomputeDuration))
}
