package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heysubinoy/pyazkv/internal/store"
	"github.com/heysubinoy/pyazkv/pkg/codec"
)

// MetricsHandler returns current store metrics as JSON.
// Only works if the server was initialized with an InstrumentedStore.
func MetricsHandler(instrumentedStore *store.InstrumentedStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		metrics := instrumentedStore.GetMetrics()

		response := map[string]interface{}{
			"operations": map[string]uint64{
				"get":    metrics.GetCount,
				"set":    metrics.SetCount,
				"delete": metrics.DeleteCount,
			},
			"misses": metrics.MissCount,
			"avg_latency": map[string]string{
				"get":    metrics.GetAvgLatency.String(),
				"set":    metrics.SetAvgLatency.String(),
				"delete": metrics.DeleteAvgLatency.String(),
			},
		}

		w.Header().Set("Content-Type", "application/json")
		codec.JSON.NewEncoder(w).Encode(response)
	}
}

// PrometheusHandler registers the store collector on a fresh registry and
// serves it in the Prometheus exposition format.
func PrometheusHandler(instrumentedStore *store.InstrumentedStore) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(instrumentedStore); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
