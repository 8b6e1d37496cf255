package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heysubinoy/pyazkv/internal/store"
	"github.com/heysubinoy/pyazkv/pkg/kv"
)

func TestMetricsHandlers(t *testing.T) {
	instrumented := store.NewInstrumentedStore(kv.NewMemStore())
	require.NoError(t, instrumented.Set("a", kv.Int(1)))
	_, _ = instrumented.Get("a")
	_, _ = instrumented.Get("b")

	rec := do(MetricsHandler(instrumented), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"get":2`)
	assert.Contains(t, rec.Body.String(), `"misses":1`)

	assert.Equal(t, http.StatusMethodNotAllowed,
		do(MetricsHandler(instrumented), http.MethodPost, "/metrics", "").Code)

	prom, err := PrometheusHandler(instrumented)
	require.NoError(t, err)
	rec = do(prom, http.MethodGet, "/metrics/prometheus", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `pyazkv_store_operations_total{op="set"} 1`)
}
