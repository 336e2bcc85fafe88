package portalAuth

import (
	"testing"
	"time"
)

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricUnauthorized)
	}
}

func BenchmarkMetricsIncDisabled(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricUnauthorized)
	}
}

// A 401 storm hits the same few counters from every request goroutine.
var stormMetricIDs = [...]MetricID{
	MetricUnauthorized,
	MetricRefreshThrottled,
	MetricReplaySuccess,
	MetricUnauthorized,
	MetricReplaySuccess,
	MetricReplayFailure,
}

func BenchmarkMetricsStormParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	d := 180 * time.Millisecond
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		idx := 0
		for pb.Next() {
			m.Inc(stormMetricIDs[idx])
			m.Observe(MetricRequestLatency, d)
			idx++
			if idx == len(stormMetricIDs) {
				idx = 0
			}
		}
	})
}

func BenchmarkMetricsSnapshot(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	for _, id := range stormMetricIDs {
		m.Inc(id)
	}
	m.Observe(MetricRequestLatency, 40*time.Millisecond)
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = m.Snapshot()
	}
}
