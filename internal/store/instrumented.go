package store

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/heysubinoy/pyazkv/pkg/kv"
)

// Metrics holds timing statistics for store operations.
// Uses atomic operations for thread-safe updates without locks.
type Metrics struct {
	GetCount    atomic.Uint64
	SetCount    atomic.Uint64
	DeleteCount atomic.Uint64
	MissCount   atomic.Uint64

	// Cumulative latencies in nanoseconds
	GetLatencyNs    atomic.Uint64
	SetLatencyNs    atomic.Uint64
	DeleteLatencyNs atomic.Uint64
}

// InstrumentedStore wraps any kv.Store implementation with timing metrics.
// This pattern works for both in-memory and Raft-backed stores.
// Get, Lookup and Has all count as reads.
type InstrumentedStore struct {
	store   kv.Store
	metrics *Metrics

	opsDesc     *prometheus.Desc
	latencyDesc *prometheus.Desc
	missDesc    *prometheus.Desc
}

// Compile-time checks.
var (
	_ kv.Store             = (*InstrumentedStore)(nil)
	_ prometheus.Collector = (*InstrumentedStore)(nil)
)

// NewInstrumentedStore wraps a store with instrumentation.
func NewInstrumentedStore(store kv.Store) *InstrumentedStore {
	return &InstrumentedStore{
		store:   store,
		metrics: &Metrics{},
		opsDesc: prometheus.NewDesc(
			"pyazkv_store_operations_total",
			"Total number of store operations",
			[]string{"op"}, nil,
		),
		latencyDesc: prometheus.NewDesc(
			"pyazkv_store_operation_seconds_total",
			"Cumulative time spent in store operations",
			[]string{"op"}, nil,
		),
		missDesc: prometheus.NewDesc(
			"pyazkv_store_misses_total",
			"Reads of keys that were not present",
			nil, nil,
		),
	}
}

// Unwrap returns the wrapped store.
func (s *InstrumentedStore) Unwrap() kv.Store {
	return s.store
}

// Get delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Get(key string) (kv.Value, error) {
	start := time.Now()
	value, err := s.store.Get(key)
	s.recordRead(start, err == nil)
	return value, err
}

// Lookup delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Lookup(key string) (kv.Value, bool) {
	start := time.Now()
	value, found := s.store.Lookup(key)
	s.recordRead(start, found)
	return value, found
}

// Has delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Has(key string) bool {
	start := time.Now()
	found := s.store.Has(key)
	s.recordRead(start, found)
	return found
}

// Set delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Set(key string, value kv.Value) error {
	start := time.Now()
	err := s.store.Set(key, value)
	elapsed := time.Since(start).Nanoseconds()

	s.metrics.SetCount.Add(1)
	s.metrics.SetLatencyNs.Add(uint64(elapsed))

	return err
}

// Delete delegates to the wrapped store and records timing.
func (s *InstrumentedStore) Delete(key string) error {
	start := time.Now()
	err := s.store.Delete(key)
	elapsed := time.Since(start).Nanoseconds()

	s.metrics.DeleteCount.Add(1)
	s.metrics.DeleteLatencyNs.Add(uint64(elapsed))

	return err
}

// Snapshot delegates to the wrapped store. It is not counted.
func (s *InstrumentedStore) Snapshot() map[string]kv.Value {
	return s.store.Snapshot()
}

func (s *InstrumentedStore) recordRead(start time.Time, found bool) {
	elapsed := time.Since(start).Nanoseconds()

	s.metrics.GetCount.Add(1)
	s.metrics.GetLatencyNs.Add(uint64(elapsed))
	if !found {
		s.metrics.MissCount.Add(1)
	}
}

// GetMetrics returns a snapshot of current metrics.
func (s *InstrumentedStore) GetMetrics() MetricsSnapshot {
	getCount := s.metrics.GetCount.Load()
	setCount := s.metrics.SetCount.Load()
	deleteCount := s.metrics.DeleteCount.Load()

	return MetricsSnapshot{
		GetCount:         getCount,
		SetCount:         setCount,
		DeleteCount:      deleteCount,
		MissCount:        s.metrics.MissCount.Load(),
		GetAvgLatency:    s.avgLatency(s.metrics.GetLatencyNs.Load(), getCount),
		SetAvgLatency:    s.avgLatency(s.metrics.SetLatencyNs.Load(), setCount),
		DeleteAvgLatency: s.avgLatency(s.metrics.DeleteLatencyNs.Load(), deleteCount),
	}
}

// ResetMetrics clears all metrics counters.
func (s *InstrumentedStore) ResetMetrics() {
	s.metrics.GetCount.Store(0)
	s.metrics.SetCount.Store(0)
	s.metrics.DeleteCount.Store(0)
	s.metrics.MissCount.Store(0)
	s.metrics.GetLatencyNs.Store(0)
	s.metrics.SetLatencyNs.Store(0)
	s.metrics.DeleteLatencyNs.Store(0)
}

// Describe implements prometheus.Collector.
func (s *InstrumentedStore) Describe(ch chan<- *prometheus.Desc) {
	ch <- s.opsDesc
	ch <- s.latencyDesc
	ch <- s.missDesc
}

// Collect implements prometheus.Collector from the same counters GetMetrics reads.
func (s *InstrumentedStore) Collect(ch chan<- prometheus.Metric) {
	ops := []struct {
		name    string
		count   *atomic.Uint64
		latency *atomic.Uint64
	}{
		{"get", &s.metrics.GetCount, &s.metrics.GetLatencyNs},
		{"set", &s.metrics.SetCount, &s.metrics.SetLatencyNs},
		{"delete", &s.metrics.DeleteCount, &s.metrics.DeleteLatencyNs},
	}
	for _, op := range ops {
		ch <- prometheus.MustNewConstMetric(s.opsDesc, prometheus.CounterValue,
			float64(op.count.Load()), op.name)
		ch <- prometheus.MustNewConstMetric(s.latencyDesc, prometheus.CounterValue,
			time.Duration(op.latency.Load()).Seconds(), op.name)
	}
	ch <- prometheus.MustNewConstMetric(s.missDesc, prometheus.CounterValue,
		float64(s.metrics.MissCount.Load()))
}

func (s *InstrumentedStore) avgLatency(totalNs, count uint64) time.Duration {
	if count == 0 {
		return 0
	}
	return time.Duration(totalNs / count)
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	GetCount         uint64
	SetCount         uint64
	DeleteCount      uint64
	MissCount        uint64
	GetAvgLatency    time.Duration
	SetAvgLatency    time.Duration
	DeleteAvgLatency time.Duration
}
