// Package prometheus exposes clientauth engine metrics to Prometheus.
//
// [NewExporter] wraps an [clientauth.Engine] in a [prometheus.Collector]. Counter
// names are clientauth_*_total; the single histogram is
// clientauth_login_latency_seconds.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry. Callers register the
//     collector or mount Handler.
//   - Mutate engine state.
package prometheus
