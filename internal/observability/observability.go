// Package observability registers and records the Prometheus metrics emitted
// by the density service.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	transformDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "density_transform_duration_seconds",
			Help:    "Duration of density fit+aggregate runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"op", "resolution"},
	)

	transformRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "density_transform_records_total",
			Help: "Input records processed by density transforms.",
		},
		[]string{"op"},
	)

	feedFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gbfs_feed_fetch_total",
			Help: "GBFS feed fetch attempts by outcome.",
		},
		[]string{"outcome"},
	)

	feedRecordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gbfs_feed_records_total",
			Help: "Bike records flattened from successful GBFS feeds.",
		},
	)

	cacheOpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "density_cache_op_duration_seconds",
			Help:    "Duration of cache operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "outcome"},
	)

	cacheResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "density_cache_results_total",
			Help: "Density response cache results by outcome.",
		},
		[]string{"outcome"},
	)

	ingestRecordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_records_total",
			Help: "Location records accepted from the Kafka ingest stream.",
		},
	)

	ingestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_errors_total",
			Help: "Kafka ingest failures by kind.",
		},
		[]string{"kind"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveTransform(op string, resolution, records int, durationSeconds float64) {
	transformDurationSeconds.WithLabelValues(op, strconv.Itoa(resolution)).Observe(durationSeconds)
	transformRecordsTotal.WithLabelValues(op).Add(float64(records))
}

// outcome is one of ok|connect_error|bad_status|bad_shape.
func IncFeedFetch(outcome string) {
	feedFetchTotal.WithLabelValues(outcome).Inc()
}

func AddFeedRecords(n int) {
	if n > 0 {
		feedRecordsTotal.Add(float64(n))
	}
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	cacheOpDurationSeconds.WithLabelValues(op, outcome).Observe(durationSeconds)
}

func IncCacheHit()  { cacheResultsTotal.WithLabelValues("hit").Inc() }
func IncCacheMiss() { cacheResultsTotal.WithLabelValues("miss").Inc() }

func AddIngestRecords(n int) {
	if n > 0 {
		ingestRecordsTotal.Add(float64(n))
	}
}

func IncIngestError(kind string) {
	ingestErrorsTotal.WithLabelValues(kind).Inc()
}
