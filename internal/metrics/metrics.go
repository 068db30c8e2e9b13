// Package metrics provides discovery-level metrics collection.
// Counters are plain atomics so hot paths never block; Collector exposes
// the same values to a Prometheus registry.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds application metrics using atomic counters for thread safety.
type Metrics struct {
	// Derivation metrics
	derivationsTotal   atomic.Int64
	derivationFailures atomic.Int64

	// Balance metrics
	balanceFetchesTotal   atomic.Int64
	balanceFetchFailures  atomic.Int64
	balanceLatencyNanos   atomic.Int64
	balanceLatencySamples atomic.Int64

	// Batch metrics
	batchesTotal    atomic.Int64
	batchAddresses  atomic.Int64
	batchLatencyNs  atomic.Int64
	gapTruncations  atomic.Int64
	sessionsStarted atomic.Int64

	// Cache metrics
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
}

// Global is the global metrics instance.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = &Metrics{}

// RecordDerivation records a single address derivation.
func (m *Metrics) RecordDerivation(err error) {
	m.derivationsTotal.Add(1)
	if err != nil {
		m.derivationFailures.Add(1)
	}
}

// RecordBalanceFetch records a balance lookup with its duration.
func (m *Metrics) RecordBalanceFetch(duration time.Duration, err error) {
	m.balanceFetchesTotal.Add(1)
	m.balanceLatencyNanos.Add(duration.Nanoseconds())
	m.balanceLatencySamples.Add(1)
	if err != nil {
		m.balanceFetchFailures.Add(1)
	}
}

// RecordBatch records a completed batch scan.
func (m *Metrics) RecordBatch(size int, duration time.Duration) {
	m.batchesTotal.Add(1)
	m.batchAddresses.Add(int64(size))
	m.batchLatencyNs.Add(duration.Nanoseconds())
}

// RecordGapTruncation records an initial batch collapsed to a single fresh address.
func (m *Metrics) RecordGapTruncation() {
	m.gapTruncations.Add(1)
}

// RecordSessionStart records a new discovery session.
func (m *Metrics) RecordSessionStart() {
	m.sessionsStarted.Add(1)
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	DerivationsTotal     int64 `json:"derivations_total"`
	DerivationFailures   int64 `json:"derivation_failures"`
	BalanceFetchesTotal  int64 `json:"balance_fetches_total"`
	BalanceFetchFailures int64 `json:"balance_fetch_failures"`
	BatchesTotal         int64 `json:"batches_total"`
	BatchAddresses       int64 `json:"batch_addresses"`
	GapTruncations       int64 `json:"gap_truncations"`
	SessionsStarted      int64 `json:"sessions_started"`
	CacheHits            int64 `json:"cache_hits"`
	CacheMisses          int64 `json:"cache_misses"`
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		DerivationsTotal:     m.derivationsTotal.Load(),
		DerivationFailures:   m.derivationFailures.Load(),
		BalanceFetchesTotal:  m.balanceFetchesTotal.Load(),
		BalanceFetchFailures: m.balanceFetchFailures.Load(),
		BatchesTotal:         m.batchesTotal.Load(),
		BatchAddresses:       m.batchAddresses.Load(),
		GapTruncations:       m.gapTruncations.Load(),
		SessionsStarted:      m.sessionsStarted.Load(),
		CacheHits:            m.cacheHits.Load(),
		CacheMisses:          m.cacheMisses.Load(),
	}
}

// BalanceLatencyAvgMs returns the average balance fetch latency in milliseconds.
// Returns 0 if no fetches have been made.
func (m *Metrics) BalanceLatencyAvgMs() float64 {
	samples := m.balanceLatencySamples.Load()
	if samples == 0 {
		return 0
	}
	return float64(m.balanceLatencyNanos.Load()) / float64(samples) / 1e6
}

// BatchLatencyAvgMs returns the average batch latency in milliseconds.
func (m *Metrics) BatchLatencyAvgMs() float64 {
	batches := m.batchesTotal.Load()
	if batches == 0 {
		return 0
	}
	return float64(m.batchLatencyNs.Load()) / float64(batches) / 1e6
}

// CacheHitRate returns the cache hit rate as a percentage (0-100).
// Returns 0 if no cache operations have occurred.
func (m *Metrics) CacheHitRate() float64 {
	hits := m.cacheHits.Load()
	misses := m.cacheMisses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// Reset resets all metrics to zero.
// Useful for testing.
func (m *Metrics) Reset() {
	m.derivationsTotal.Store(0)
	m.derivationFailures.Store(0)
	m.balanceFetchesTotal.Store(0)
	m.balanceFetchFailures.Store(0)
	m.balanceLatencyNanos.Store(0)
	m.balanceLatencySamples.Store(0)
	m.batchesTotal.Store(0)
	m.batchAddresses.Store(0)
	m.batchLatencyNs.Store(0)
	m.gapTruncations.Store(0)
	m.sessionsStarted.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
}

// Collector exports a Metrics instance as Prometheus counters.
type Collector struct {
	m     *Metrics
	descs map[string]*prometheus.Desc
}

// Compile-time interface check
var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a Prometheus collector reading from m.
func NewCollector(namespace string, m *Metrics) *Collector {
	if m == nil {
		m = Global
	}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "discovery", name), help, nil, nil)
	}
	return &Collector{
		m: m,
		descs: map[string]*prometheus.Desc{
			"derivations_total":          desc("derivations_total", "Addresses derived."),
			"derivation_failures_total":  desc("derivation_failures_total", "Address derivations that failed."),
			"balance_fetches_total":      desc("balance_fetches_total", "Balance lookups issued."),
			"balance_fetch_errors_total": desc("balance_fetch_errors_total", "Balance lookups that failed."),
			"batches_total":              desc("batches_total", "Batches scanned."),
			"gap_truncations_total":      desc("gap_truncations_total", "Initial batches collapsed to one fresh address."),
			"sessions_total":             desc("sessions_total", "Discovery sessions started."),
			"cache_hits_total":           desc("cache_hits_total", "Balance cache hits."),
			"cache_misses_total":         desc("cache_misses_total", "Balance cache misses."),
		},
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snap := c.m.Snapshot()
	values := map[string]int64{
		"derivations_total":          snap.DerivationsTotal,
		"derivation_failures_total":  snap.DerivationFailures,
		"balance_fetches_total":      snap.BalanceFetchesTotal,
		"balance_fetch_errors_total": snap.BalanceFetchFailures,
		"batches_total":              snap.BatchesTotal,
		"gap_truncations_total":      snap.GapTruncations,
		"sessions_total":             snap.SessionsStarted,
		"cache_hits_total":           snap.CacheHits,
		"cache_misses_total":         snap.CacheMisses,
	}
	for name, d := range c.descs {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(values[name]))
	}
}
