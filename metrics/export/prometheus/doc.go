// Package prometheus exposes portalAuth engine metrics to Prometheus.
//
// [PrometheusExporter] renders the text exposition format directly and needs
// no registry. [Collector] plugs the same series into a client_golang
// registry. Counters are named portalauth_*_total; the single histogram is
// portalauth_request_latency_seconds.
package prometheus
