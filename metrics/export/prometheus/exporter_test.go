package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	portalAuth "github.com/MrEthical07/portalAuth"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

type fakeSource struct {
	snapshot portalAuth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() portalAuth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }

func sampleSource() fakeSource {
	return fakeSource{
		snapshot: portalAuth.MetricsSnapshot{
			Counters: map[portalAuth.MetricID]uint64{
				portalAuth.MetricLoginSuccess:   7,
				portalAuth.MetricRefreshSuccess: 3,
			},
			Histograms: map[portalAuth.MetricID][]uint64{
				portalAuth.MetricRequestLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	}
}

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: portalAuth.MetricsSnapshot{
			Counters:   map[portalAuth.MetricID]uint64{},
			Histograms: map[portalAuth.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounterAndHistogram(t *testing.T) {
	out := NewPrometheusExporterFromSource(sampleSource()).Render()
	for _, want := range []string{
		"portalauth_login_success_total 7",
		"portalauth_refresh_success_total 3",
		"portalauth_request_latency_seconds_bucket{le=\"0.05\"} 1",
		"portalauth_request_latency_seconds_bucket{le=\"+Inf\"} 36",
		"portalauth_request_latency_seconds_count 36",
		"portalauth_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(sampleSource())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCollectorGathers(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewCollector(sampleSource())); err != nil {
		t.Fatalf("register: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	byName := map[string]*dto.MetricFamily{}
	for _, f := range families {
		byName[f.GetName()] = f
	}
	login := byName["portalauth_login_success_total"]
	if login == nil || login.GetMetric()[0].GetCounter().GetValue() != 7 {
		t.Fatalf("expected login counter 7, got %v", login)
	}
	hist := byName["portalauth_request_latency_seconds"]
	if hist == nil {
		t.Fatalf("expected latency histogram")
	}
	h := hist.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 36 {
		t.Fatalf("expected 36 samples, got %d", h.GetSampleCount())
	}
	if first := h.GetBucket()[0]; first.GetUpperBound() != 0.05 || first.GetCumulativeCount() != 1 {
		t.Fatalf("unexpected first bucket %v", first)
	}
}

func TestRegistryHandlerServes(t *testing.T) {
	h, err := RegistryHandler(sampleSource())
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "portalauth_audit_dropped_total 2") {
		t.Fatalf("unexpected response %d:\n%s", rec.Code, rec.Body.String())
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(sampleSource())

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
