package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shizuku_diag"

// Metrics holds the Prometheus collectors for brushing, recomputation,
// remote loads and live sessions.
type Metrics struct {
	// Brush bus traffic. labels: kind={brush,data-loaded,update,error}
	BusMessages *prometheus.CounterVec

	// Duration of one filter and aggregate pass.
	RecomputeDuration prometheus.Histogram

	// Remote source loads.
	SourceFetches *prometheus.CounterVec // labels: outcome={success,error}
	SourceCache   *prometheus.CounterVec // labels: result={hit,miss}

	ActiveSessions prometheus.Gauge

	// Watcher ingest.
	RowsIngested *prometheus.CounterVec // labels: loop={ges,anl}
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		BusMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_messages_total",
			Help:      help("Messages published on session brush buses by kind."),
		}, []string{"kind"}),
		RecomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recompute_duration_seconds",
			Help:      help("Duration of filtering and re-binning after a brush."),
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		SourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      help("Remote chart source fetches by outcome."),
		}, []string{"outcome"}),
		SourceCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_cache_total",
			Help:      help("Chart source cache lookups by result."),
		}, []string{"result"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      help("Open websocket brushing sessions."),
		}),
		RowsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watcher_rows_ingested_total",
			Help:      help("Observation rows written by the watcher by loop."),
		}, []string{"loop"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.BusMessages,
		m.RecomputeDuration,
		m.SourceFetches,
		m.SourceCache,
		m.ActiveSessions,
		m.RowsIngested,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus
// registry. Call it once per process.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as
// many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}
