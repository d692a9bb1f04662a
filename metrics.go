package authcore

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter or histogram in the in-process metrics
// system. Exporters under metrics/export read snapshots keyed by it.
type MetricID uint16

const (
	// MetricAuthSuccess counts successful Authenticate calls.
	MetricAuthSuccess MetricID = iota
	// MetricAuthFailure counts rejected Authenticate calls, revocations
	// excluded.
	MetricAuthFailure
	// MetricAuthRevoked counts Authenticate calls rejected by a denylist
	// hit, regardless of scope.
	MetricAuthRevoked
	// MetricRevocationFailOpen counts revocation reads downgraded to
	// "not revoked" because the cache errored.
	MetricRevocationFailOpen
	// MetricOriginMismatch counts origin-binding rejections.
	MetricOriginMismatch
	// MetricTokensIssued counts issued token triples.
	MetricTokensIssued
	// MetricLoginSuccess counts successful logins (password or OTP).
	MetricLoginSuccess
	// MetricLoginFailure counts failed logins.
	MetricLoginFailure
	// MetricLoginRateLimited counts throttled login attempts.
	MetricLoginRateLimited
	// MetricRefreshSuccess counts completed refresh rotations.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh rotations.
	MetricRefreshFailure
	// MetricLogout counts logout operations.
	MetricLogout
	// MetricLogoutPartial counts logouts where a revocation write failed.
	MetricLogoutPartial
	// MetricOTPIssued counts issued one-time codes.
	MetricOTPIssued
	// MetricOTPVerified counts successful OTP verifications.
	MetricOTPVerified
	// MetricOTPFailure counts failed OTP verifications.
	MetricOTPFailure
	// MetricOTPRateLimited counts throttled OTP operations.
	MetricOTPRateLimited
	// MetricOTPMasterUsed counts master-code bypass uses. Nonzero values
	// in production deserve attention.
	MetricOTPMasterUsed
	// MetricAuthLatency is the Authenticate latency histogram.
	MetricAuthLatency

	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and an optional latency histogram. A nil
// or disabled Metrics makes every operation a no-op.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a [Metrics] instance per the given config.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether metric writes are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc atomically increments the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records one latency sample into the Authenticate histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricAuthLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot deep-copies all metrics for export.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricAuthLatency].buckets[i])
		}
		s.Histograms[MetricAuthLatency] = buckets
	}
	return s
}

// bucketIndex maps a latency sample to the fixed bucket layout
// (≤5ms, ≤10, ≤25, ≤50, ≤100, ≤250, ≤500, +Inf).
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()
	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
