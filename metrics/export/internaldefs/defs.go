package internaldefs

import (
	"github.com/merbs-org/clientauth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   clientauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for exporters.
type HistogramDef struct {
	ID   clientauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: clientauth.MetricLoginSuccess, Name: "clientauth_login_success_total", Help: "Successful logins."},
	{ID: clientauth.MetricLoginFailure, Name: "clientauth_login_failure_total", Help: "Logins rejected by the backend or transport."},
	{ID: clientauth.MetricLoginRateLimited, Name: "clientauth_login_rate_limited_total", Help: "Login attempts denied by the attempt ledger."},
	{ID: clientauth.MetricRegisterSuccess, Name: "clientauth_register_success_total", Help: "Successful registrations."},
	{ID: clientauth.MetricRegisterFailure, Name: "clientauth_register_failure_total", Help: "Registrations rejected by the backend or transport."},
	{ID: clientauth.MetricRegisterRateLimited, Name: "clientauth_register_rate_limited_total", Help: "Registration attempts denied by the attempt ledger."},
	{ID: clientauth.MetricRateLimiterUnavailable, Name: "clientauth_rate_limiter_unavailable_total", Help: "Attempts denied because the ledger could not be consulted."},
	{ID: clientauth.MetricSessionCreated, Name: "clientauth_session_created_total", Help: "Created sessions."},
	{ID: clientauth.MetricSessionRestored, Name: "clientauth_session_restored_total", Help: "Sessions restored from storage at start."},
	{ID: clientauth.MetricSessionWarning, Name: "clientauth_session_warning_total", Help: "Inactivity warnings raised."},
	{ID: clientauth.MetricSessionExpired, Name: "clientauth_session_expired_total", Help: "Sessions expired after inactivity."},
	{ID: clientauth.MetricLogout, Name: "clientauth_logout_total", Help: "Explicit logouts."},
	{ID: clientauth.MetricBackendLogoutFailed, Name: "clientauth_backend_logout_failed_total", Help: "Backend logout notifications that failed."},
	{ID: clientauth.MetricVerifySuccess, Name: "clientauth_verify_success_total", Help: "Sessions confirmed by the backend."},
	{ID: clientauth.MetricVerifyFailure, Name: "clientauth_verify_failure_total", Help: "Sessions the backend did not confirm."},
	{ID: clientauth.MetricRefreshSuccess, Name: "clientauth_refresh_success_total", Help: "Successful backend token refreshes."},
	{ID: clientauth.MetricRefreshFailure, Name: "clientauth_refresh_failure_total", Help: "Failed backend token refreshes."},
	{ID: clientauth.MetricActivityRecorded, Name: "clientauth_activity_recorded_total", Help: "Debounced activity updates written to the session."},
	{ID: clientauth.MetricBotDetected, Name: "clientauth_bot_detected_total", Help: "Sessions cleared by the interaction-cadence heuristic."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: clientauth.MetricLoginLatency, Name: "clientauth_login_latency_seconds", Help: "Login round-trip latency."},
}

// DroppedEventsName is the counter for events the bus discarded.
const DroppedEventsName = "clientauth_events_dropped_total"

// DroppedEventsHelp describes [DroppedEventsName].
const DroppedEventsHelp = "Lifecycle events dropped because the bus buffer was full."

// HistogramBounds are the upper bounds, in seconds, of the engine's eight
// latency buckets.
var HistogramBounds = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// BucketLabels are the "le" label values of the eight buckets, matching
// HistogramBounds with a trailing +Inf.
var BucketLabels = []string{"0.05", "0.1", "0.25", "0.5", "1", "2.5", "5", "+Inf"}

// NormalizeBuckets copies raw into a fixed eight-bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
