// Package metrics exposes the Prometheus registry shared by the exporter.
// All metrics are defined in their respective packages (client, cache, ratelimit,
// pagination, enrich) and registered there via promauto.
//
// The exporter is a one-shot CLI, so metrics are not scraped. Instead the
// default gatherer can be dumped to a node-exporter textfile at the end of a run.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the exporter.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads back everything registered on Registry.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes the current value of every registered metric to path in
// the Prometheus text format. The write is atomic.
func WriteTextfile(path string) error {
	if path == "" {
		return fmt.Errorf("metrics file path is empty")
	}
	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - hh_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status ("cached" for cache hits)
//   - hh_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - hh_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network, parse)
//
// Retry Metrics (pkg/client):
//   - hh_retries_total{error_class} (Counter): Retry attempts by error class
//   - hh_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - hh_retry_exhausted_total{error_class} (Counter): Requests that exhausted max attempts
//
// Rate Limit Metrics (pkg/ratelimit):
//   - hh_rate_limit_signals_total (Counter): 429 responses observed
//   - hh_rate_limit_consecutive (Gauge): 429 responses since the last non-429
//   - hh_rate_limit_wait_seconds (Histogram): Time spent waiting for a request slot
//
// Cache Metrics (pkg/cache):
//   - hh_cache_hits_total (Counter): Cache hits
//   - hh_cache_misses_total (Counter): Cache misses
//   - hh_cache_size_bytes (Gauge): Bytes written to the cache during the run
//   - hh_cache_errors_total{operation} (Counter): Cache operation errors
//
// Collection Metrics (pkg/pagination, pkg/enrich):
//   - hh_pages_total{outcome} (Counter): Search pages by outcome (ok, error)
//   - hh_duplicate_vacancies_total (Counter): Vacancies dropped as duplicates
//   - hh_details_total{outcome} (Counter): Detail fetches by outcome (ok, empty, failed)
//
// Example Prometheus Queries (textfile collector):
//
//   # Share of detail fetches that failed
//   hh_details_total{outcome="failed"} / ignoring(outcome) sum(hh_details_total)
//
//   # Runs that hit rate limiting
//   hh_rate_limit_signals_total > 0
//
//   # Cache Hit Rate
//   hh_cache_hits_total / (hh_cache_hits_total + hh_cache_misses_total)
