package portalAuth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLogout
	// MetricLogoutRemoteFailure counts logouts whose server call failed;
	// local state is cleared regardless.
	MetricLogoutRemoteFailure
	MetricRefreshSuccess
	MetricRefreshFailure
	// MetricRefreshThrottled counts refreshes declined by the guard.
	MetricRefreshThrottled
	MetricReplaySuccess
	MetricReplayFailure
	// MetricUnauthorized counts 401 responses eligible for refresh handling.
	MetricUnauthorized
	MetricStartupVerified
	// MetricStartupOffline counts start-ups that kept the cached user because
	// the server could not be reached.
	MetricStartupOffline
	MetricStartupRejected
	MetricStorageFailure
	MetricProactiveRefresh
	MetricForcedLogout
	// MetricRequestLatency is the only histogram-backed metric.
	MetricRequestLatency
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

// Metrics is a lock-free counter set. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	latency       metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a counter set configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters record.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the latency histogram. Only MetricRequestLatency
// is histogram-backed; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricRequestLatency {
		return
	}
	atomic.AddUint64(&m.latency.buckets[bucketIndex(d)], 1)
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. Disabled metrics return empty maps.
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
			buckets[i] = atomic.LoadUint64(&m.latency.buckets[i])
		}
		s.Histograms[MetricRequestLatency] = buckets
	}
	return s
}

// LatencyBucketBounds are the inclusive upper bounds of the histogram
// buckets; the last bucket is unbounded.
var LatencyBucketBounds = [histBucketCount - 1]time.Duration{
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	2500 * time.Millisecond,
	5 * time.Second,
}

func bucketIndex(d time.Duration) int {
	for i, bound := range LatencyBucketBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}

// metricsObserver feeds transport measurements into Metrics.
type metricsObserver struct {
	m *Metrics
}

func (o metricsObserver) AttemptFinished(_ int, elapsed time.Duration) {
	o.m.Observe(MetricRequestLatency, elapsed)
}

func (o metricsObserver) Unauthorized()     { o.m.Inc(MetricUnauthorized) }
func (o metricsObserver) RefreshThrottled() { o.m.Inc(MetricRefreshThrottled) }

func (o metricsObserver) Replayed(ok bool) {
	if ok {
		o.m.Inc(MetricReplaySuccess)
		return
	}
	o.m.Inc(MetricReplayFailure)
}
