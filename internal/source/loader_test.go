package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/02loveslollipop/shizuku-diagnostics/internal/diag"
	"github.com/02loveslollipop/shizuku-diagnostics/internal/observability"
)

const collection = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[-105,40]},
  "properties":{"type":"scalar","variable":"t","loop":"ges","adjusted":1.5,"is_used":true}}]}`

func newServer(t *testing.T, body string, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestLoader_LoadCachesAndCopies(t *testing.T) {
	srv, hits := newServer(t, collection, http.StatusOK)
	metrics := observability.NewMetricsForTesting()
	l, err := NewLoader(WithMetrics(metrics))
	require.NoError(t, err)

	first, err := l.Load(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, first.Features, 1)
	first.Features[0].Properties.Fields["adjusted"] = diag.ScalarValue(99)

	second, err := l.Load(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5}, second.Values("adjusted", ""))
	assert.EqualValues(t, 1, hits.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SourceCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SourceFetches.WithLabelValues("success")))
}

func TestLoader_ForgetRefetches(t *testing.T) {
	srv, hits := newServer(t, collection, http.StatusOK)
	l, err := NewLoader()
	require.NoError(t, err)

	_, err = l.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	l.Forget(srv.URL)
	_, err = l.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
}

func TestLoader_NoCache(t *testing.T) {
	srv, hits := newServer(t, `[1, null, 2.5]`, http.StatusOK)
	l, err := NewLoader(WithCacheSize(0))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		values, err := l.LoadValues(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2.5}, values)
	}
	assert.EqualValues(t, 2, hits.Load())
}

func TestLoader_ConcurrentLoadsShareResult(t *testing.T) {
	srv, hits := newServer(t, collection, http.StatusOK)
	l, err := NewLoader()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fc, err := l.Load(context.Background(), srv.URL)
			assert.NoError(t, err)
			assert.Len(t, fc.Features, 1)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, hits.Load(), int32(8))
	assert.GreaterOrEqual(t, hits.Load(), int32(1))
}

func TestLoader_Errors(t *testing.T) {
	missing, _ := newServer(t, `not found`, http.StatusNotFound)
	garbage, _ := newServer(t, `{`, http.StatusOK)
	metrics := observability.NewMetricsForTesting()
	l, err := NewLoader(WithRetryMax(0), WithMetrics(metrics))
	require.NoError(t, err)

	_, err = l.Load(context.Background(), missing.URL)
	assert.ErrorContains(t, err, "status 404")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SourceFetches.WithLabelValues("error")))

	_, err = l.Load(context.Background(), garbage.URL)
	assert.ErrorContains(t, err, "decode")

	_, err = l.Load(context.Background(), "http://[::1]:namedport")
	assert.Error(t, err)
}

func TestLoader_SendsHeaders(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	l, err := NewLoader(WithHeader("Authorization", "Bearer token"))
	require.NoError(t, err)
	_, err = l.LoadValues(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Bearer token", got)
}
