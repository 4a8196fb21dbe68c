// Package prometheus exports engine metrics through client_golang.
//
// [NewCollector] wraps an [goIdentity.Engine] in a [prometheus.Collector].
// Register it on the registry served by promhttp; every scrape takes one
// [goIdentity.Engine.MetricsSnapshot]. Counters are named goidentity_*_total
// and latency histograms goidentity_*_latency_seconds.
//
// # What this package must NOT do
//
//   - Register itself on the default registry. Callers choose the registry.
//   - Mutate engine state.
package prometheus
