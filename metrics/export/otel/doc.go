// Package otel mirrors clientauth engine metrics into OpenTelemetry.
//
// [NewExporter] creates one observable counter per engine counter, a bucket
// gauge keyed by the "le" attribute plus a count for the login latency
// histogram, and a counter for events the bus dropped. Values are read from
// [clientauth.Engine.MetricsSnapshot] inside a single callback.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
