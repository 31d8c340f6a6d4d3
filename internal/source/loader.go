// Package source fetches chart data from a URL. Loads of the same URL are
// shared and cached, and every caller gets its own copy.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/singleflight"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/observability"
)

const (
	DefaultCacheSize = 64
	DefaultRetryMax  = 3
	DefaultTimeout   = 30 * time.Second
)

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger for failed loads and retries.
func WithLogger(logger *log.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithMetrics records fetch and cache counters.
func WithMetrics(m *observability.Metrics) Option {
	return func(l *Loader) { l.metrics = m }
}

// WithCacheSize bounds the number of cached sources. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(l *Loader) { l.cacheSize = n }
}

// WithRetryMax sets how often a failed request is retried.
func WithRetryMax(n int) Option {
	return func(l *Loader) { l.retryMax = n }
}

// WithTimeout bounds a single fetch including retries.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) { l.timeout = d }
}

// WithHeader adds a request header, such as Authorization.
func WithHeader(key, value string) Option {
	return func(l *Loader) { l.header.Set(key, value) }
}

// Loader fetches JSON documents over HTTP.
type Loader struct {
	client    *http.Client
	cache     *lru.Cache
	group     singleflight.Group
	header    http.Header
	logger    *log.Logger
	metrics   *observability.Metrics
	cacheSize int
	retryMax  int
	timeout   time.Duration
}

// NewLoader builds a loader with a retrying HTTP client.
func NewLoader(opts ...Option) (*Loader, error) {
	l := &Loader{
		header:    http.Header{},
		logger:    observability.Discard(),
		cacheSize: DefaultCacheSize,
		retryMax:  DefaultRetryMax,
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = l.retryMax
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = l.logger.StandardLog(log.StandardLogOptions{ForceLevel: log.DebugLevel})
	l.client = rc.StandardClient()
	l.client.Timeout = l.timeout

	if l.cacheSize > 0 {
		cache, err := lru.New(l.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("source cache: %w", err)
		}
		l.cache = cache
	}
	return l, nil
}

// Load fetches a GeoJSON feature collection.
func (l *Loader) Load(ctx context.Context, src string) (diag.FeatureCollection, error) {
	body, err := l.Fetch(ctx, src)
	if err != nil {
		return diag.FeatureCollection{}, err
	}
	var fc diag.FeatureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		l.logger.Error("decode source", "src", src, "error", err)
		return diag.FeatureCollection{}, fmt.Errorf("decode %s: %w", src, err)
	}
	return fc, nil
}

// LoadValues fetches a JSON array of numbers. Nulls are dropped.
func (l *Loader) LoadValues(ctx context.Context, src string) ([]float64, error) {
	body, err := l.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	var raw []*float64
	if err := json.Unmarshal(body, &raw); err != nil {
		l.logger.Error("decode source", "src", src, "error", err)
		return nil, fmt.Errorf("decode %s: %w", src, err)
	}
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out, nil
}

// Fetch returns the raw body of src. Concurrent fetches of one URL share a
// single request, and successful bodies are cached.
func (l *Loader) Fetch(ctx context.Context, src string) ([]byte, error) {
	if l.cache != nil {
		if v, ok := l.cache.Get(src); ok {
			l.count(l.cacheCounter("hit"))
			return clone(v.([]byte)), nil
		}
		l.count(l.cacheCounter("miss"))
	}

	v, err, _ := l.group.Do(src, func() (any, error) {
		body, err := l.get(ctx, src)
		if err != nil {
			return nil, err
		}
		if l.cache != nil {
			l.cache.Add(src, body)
		}
		return body, nil
	})
	if err != nil {
		l.logger.Error("load source", "src", src, "error", err)
		l.count(l.fetchCounter("error"))
		return nil, err
	}
	l.count(l.fetchCounter("success"))
	return clone(v.([]byte)), nil
}

// Forget drops src from the cache so the next load refetches it.
func (l *Loader) Forget(src string) {
	if l.cache != nil {
		l.cache.Remove(src)
	}
}

func (l *Loader) get(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", src, err)
	}
	for k, v := range l.header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", src, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src, err)
	}
	return body, nil
}

type counter interface{ Inc() }

func (l *Loader) cacheCounter(result string) counter {
	if l.metrics == nil {
		return nil
	}
	return l.metrics.SourceCache.WithLabelValues(result)
}

func (l *Loader) fetchCounter(outcome string) counter {
	if l.metrics == nil {
		return nil
	}
	return l.metrics.SourceFetches.WithLabelValues(outcome)
}

func (l *Loader) count(c counter) {
	if c != nil {
		c.Inc()
	}
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
