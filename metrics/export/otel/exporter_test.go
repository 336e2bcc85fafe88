package otel

import (
	"context"
	"sync"
	"testing"

	portalAuth "github.com/MrEthical07/portalAuth"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type stubSource struct {
	mu       sync.Mutex
	counters map[portalAuth.MetricID]uint64
	latency  []uint64
	dropped  uint64
}

func (s *stubSource) MetricsSnapshot() portalAuth.MetricsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := portalAuth.MetricsSnapshot{
		Counters:   map[portalAuth.MetricID]uint64{},
		Histograms: map[portalAuth.MetricID][]uint64{},
	}
	for id, n := range s.counters {
		snap.Counters[id] = n
	}
	snap.Histograms[portalAuth.MetricRequestLatency] = append([]uint64(nil), s.latency...)
	return snap
}

func (s *stubSource) AuditDropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *stubSource) setLogins(n uint64) {
	s.mu.Lock()
	s.counters[portalAuth.MetricLoginSuccess] = n
	s.mu.Unlock()
}

// collected flattens one collection into scalar values by instrument name
// plus the latency buckets keyed by their "le" attribute.
type collected struct {
	values  map[string]int64
	buckets map[string]int64
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) collected {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := collected{values: map[string]int64{}, buckets: map[string]int64{}}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out.values[m.Name] = dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					if le, ok := dp.Attributes.Value(attribute.Key("le")); ok {
						out.buckets[le.AsString()] = dp.Value
						continue
					}
					out.values[m.Name] = dp.Value
				}
			}
		}
	}
	return out
}

func newReaderAndExporter(t *testing.T, src MetricsSource) (*sdkmetric.ManualReader, *OTelExporter) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("portalauth-test")
	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	t.Cleanup(func() {
		if err := exp.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return reader, exp
}

func TestExporterReportsCountersAndCumulativeLatency(t *testing.T) {
	src := &stubSource{
		counters: map[portalAuth.MetricID]uint64{portalAuth.MetricLoginSuccess: 3},
		latency:  []uint64{1, 1, 1, 1, 1, 1, 1, 1},
		dropped:  1,
	}
	reader, _ := newReaderAndExporter(t, src)

	got := collect(t, reader)
	if n := got.values["portalauth_login_success_total"]; n != 3 {
		t.Fatalf("login_success = %d, want 3", n)
	}
	if len(got.buckets) != 8 || got.buckets["0.25"] != 3 || got.buckets["+Inf"] != 8 {
		t.Fatalf("unexpected cumulative buckets %v", got.buckets)
	}
	if n := got.values["portalauth_request_latency_seconds_count"]; n != 8 {
		t.Fatalf("latency count = %d, want 8", n)
	}
	if n := got.values["portalauth_audit_dropped_total"]; n != 1 {
		t.Fatalf("audit dropped = %d, want 1", n)
	}
}

func TestExporterFollowsSourceBetweenCollections(t *testing.T) {
	src := &stubSource{counters: map[portalAuth.MetricID]uint64{}, latency: make([]uint64, 8)}
	reader, _ := newReaderAndExporter(t, src)

	src.setLogins(2)
	if n := collect(t, reader).values["portalauth_login_success_total"]; n != 2 {
		t.Fatalf("first collection = %d, want 2", n)
	}
	src.setLogins(9)
	if n := collect(t, reader).values["portalauth_login_success_total"]; n != 9 {
		t.Fatalf("second collection = %d, want 9", n)
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	meter := sdkmetric.NewMeterProvider().Meter("portalauth-test")
	if _, err := NewOTelExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestExporterParallelCollect(t *testing.T) {
	src := &stubSource{counters: map[portalAuth.MetricID]uint64{}, latency: make([]uint64, 8)}
	reader, _ := newReaderAndExporter(t, src)

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func(n uint64) {
			defer wg.Done()
			src.setLogins(n)
			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i))
	}
	wg.Wait()
}
