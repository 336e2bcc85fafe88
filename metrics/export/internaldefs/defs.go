package internaldefs

import (
	portalAuth "github.com/MrEthical07/portalAuth"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   portalAuth.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   portalAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: portalAuth.MetricLoginSuccess, Name: "portalauth_login_success_total", Help: "Successful logins."},
	{ID: portalAuth.MetricLoginFailure, Name: "portalauth_login_failure_total", Help: "Failed logins, including validation and network failures."},
	{ID: portalAuth.MetricLogout, Name: "portalauth_logout_total", Help: "Explicit logouts."},
	{ID: portalAuth.MetricLogoutRemoteFailure, Name: "portalauth_logout_remote_failure_total", Help: "Logouts whose server call failed after local state was cleared."},
	{ID: portalAuth.MetricRefreshSuccess, Name: "portalauth_refresh_success_total", Help: "Successful refresh-token exchanges."},
	{ID: portalAuth.MetricRefreshFailure, Name: "portalauth_refresh_failure_total", Help: "Failed refresh-token exchanges."},
	{ID: portalAuth.MetricRefreshThrottled, Name: "portalauth_refresh_throttled_total", Help: "Refreshes declined by the throttle guard."},
	{ID: portalAuth.MetricReplaySuccess, Name: "portalauth_replay_success_total", Help: "Requests replayed successfully after a refresh."},
	{ID: portalAuth.MetricReplayFailure, Name: "portalauth_replay_failure_total", Help: "Requests that failed again after a refresh."},
	{ID: portalAuth.MetricUnauthorized, Name: "portalauth_unauthorized_total", Help: "401 responses eligible for refresh handling."},
	{ID: portalAuth.MetricStartupVerified, Name: "portalauth_startup_verified_total", Help: "Start-ups that verified the stored session with the server."},
	{ID: portalAuth.MetricStartupOffline, Name: "portalauth_startup_offline_total", Help: "Start-ups that kept the cached user without reaching the server."},
	{ID: portalAuth.MetricStartupRejected, Name: "portalauth_startup_rejected_total", Help: "Start-ups whose stored session was rejected."},
	{ID: portalAuth.MetricStorageFailure, Name: "portalauth_storage_failure_total", Help: "Token store reads or writes that failed."},
	{ID: portalAuth.MetricProactiveRefresh, Name: "portalauth_proactive_refresh_total", Help: "Refreshes started before the access token expired."},
	{ID: portalAuth.MetricForcedLogout, Name: "portalauth_forced_logout_total", Help: "Logouts forced by an unrecoverable 401."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: portalAuth.MetricRequestLatency, Name: "portalauth_request_latency_seconds", Help: "Backend request latency per attempt."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const (
	AuditDroppedName = "portalauth_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramBounds are the Prometheus le labels, in seconds.
var HistogramBounds = []string{
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"+Inf",
}

// HistogramUpperBounds mirrors HistogramBounds without the +Inf bucket.
var HistogramUpperBounds = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// HistogramBoundSuffix is HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
