// Package metrics provides Prometheus metrics for the dashboard client.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP client metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiodash_http_requests_total",
			Help: "Total number of backend requests issued",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aiodash_http_request_duration_seconds",
			Help:    "Backend request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	httpRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiodash_http_retries_total",
			Help: "Total number of retried backend requests",
		},
		[]string{"route"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aiodash_upload_bytes_total",
			Help: "Total bytes sent in multipart uploads",
		},
	)

	// Query cache metrics
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiodash_query_cache_lookups_total",
			Help: "Query cache lookups by result",
		},
		[]string{"result"},
	)

	cacheCoalescedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aiodash_query_coalesced_total",
			Help: "Fetches that joined an in-flight fetch for the same key",
		},
	)

	cacheInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aiodash_query_invalidations_total",
			Help: "Cache entries marked stale by invalidation",
		},
	)

	cacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aiodash_query_cache_entries",
			Help: "Number of entries held by the query cache",
		},
	)

	pollsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "aiodash_query_polls_total",
			Help: "Interval refetches fired by polling queries",
		},
	)

	// Session metrics
	sessionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aiodash_session_transitions_total",
			Help: "Auth session state transitions",
		},
		[]string{"from", "to"},
	)
)

// RecordHTTPRequest records a completed backend request. Status 0 means the
// request never produced a response.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordRetry records a retried request.
func RecordRetry(route string) {
	httpRetriesTotal.WithLabelValues(route).Inc()
}

// AddUploadBytes records bytes written to an upload body.
func AddUploadBytes(n int64) {
	uploadBytesTotal.Add(float64(n))
}

// RecordCacheHit records a lookup served from a fresh entry.
func RecordCacheHit() {
	cacheLookupsTotal.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records a lookup that required a fetch.
func RecordCacheMiss() {
	cacheLookupsTotal.WithLabelValues("miss").Inc()
}

// RecordCoalesced records a fetch that shared another caller's result.
func RecordCoalesced() {
	cacheCoalescedTotal.Inc()
}

// RecordInvalidations records entries marked stale.
func RecordInvalidations(n int) {
	cacheInvalidationsTotal.Add(float64(n))
}

// SetCacheEntries sets the current entry count.
func SetCacheEntries(n int) {
	cacheEntries.Set(float64(n))
}

// RecordPoll records one interval refetch.
func RecordPoll() {
	pollsTotal.Inc()
}

// RecordSessionTransition records a session state change.
func RecordSessionTransition(from, to string) {
	sessionTransitionsTotal.WithLabelValues(from, to).Inc()
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
