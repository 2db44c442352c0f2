// Package observability exposes the Prometheus metrics of the history
// cache on the default registry.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "histcache_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "histcache_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	rangeRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "histcache_range_requests_total",
			Help: "Range queries by coverage outcome.",
		},
		[]string{"outcome", "dataset"},
	)

	upstreamFetchSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "histcache_upstream_fetch_seconds",
			Help:    "Latency of upstream history fetches in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"status"},
	)

	storeOpSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "histcache_store_op_seconds",
			Help:    "Latency of record store operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "status"},
	)

	droppedRowsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "histcache_dropped_rows_total",
			Help: "Upstream rows dropped during normalization (out of bounds or unparseable).",
		},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "histcache_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ObserveHTTP(method, route string, code int, durationSeconds float64) {
	st := strconv.Itoa(code)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

// IncRangeOutcome counts one range query classified as outcome
// (full_hit, left_gap, right_gap, full_miss or forced).
func IncRangeOutcome(outcome, dataset string) {
	rangeRequestsTotal.WithLabelValues(outcome, dataset).Inc()
}

func ObserveFetch(err error, durationSeconds float64) {
	upstreamFetchSeconds.WithLabelValues(status(err)).Observe(durationSeconds)
}

func ObserveStoreOp(op string, err error, durationSeconds float64) {
	storeOpSeconds.WithLabelValues(op, status(err)).Observe(durationSeconds)
}

func AddDroppedRows(n int) {
	if n > 0 {
		droppedRowsTotal.Add(float64(n))
	}
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
