// Package prometheus exposes tokenguard engine metrics through
// prometheus/client_golang.
//
// [NewCollector] returns a prometheus.Collector that converts each
// MetricsSnapshot into constant metrics at scrape time. Counter names are
// tokenguard_*_total; the single histogram is
// tokenguard_validate_latency_seconds. [Handler] mounts the collector on a
// private registry.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
