// Package metrics defines the Prometheus metric collectors used by the
// harness and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the harness.
type Metrics struct {
	DocsIndexedTotal     prometheus.Counter
	IndexBuildsTotal     *prometheus.CounterVec
	IndexBuildDuration   prometheus.Histogram
	QueriesTotal         *prometheus.CounterVec
	QueryLatency         *prometheus.HistogramVec
	QueryResultsCount    prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	PrecisionAtK         *prometheus.GaugeVec
	InterpolatedAverage  *prometheus.GaugeVec
	EventsPublishedTotal *prometheus.CounterVec
	RunsStoredTotal      *prometheus.CounterVec
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
}

// New creates all collectors and registers them with reg. A nil reg uses
// the process-wide default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		DocsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "irh_docs_indexed_total",
				Help: "Total documents indexed across all builds.",
			},
		),
		IndexBuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "irh_index_builds_total",
				Help: "Total index builds by status (ok, error).",
			},
			[]string{"status"},
		),
		IndexBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "irh_index_build_duration_seconds",
				Help:    "Index build latency in seconds, including persistence.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
			},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "irh_queries_total",
				Help: "Total queries executed by model and result type (hit, zero_result).",
			},
			[]string{"model", "result_type"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "irh_query_latency_seconds",
				Help:    "Query execution latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"model"},
		),
		QueryResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "irh_query_results_count",
				Help:    "Number of hits returned per query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "irh_result_cache_hits_total",
				Help: "Total number of result cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "irh_result_cache_misses_total",
				Help: "Total number of result cache misses.",
			},
		),
		PrecisionAtK: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "irh_precision_at_k",
				Help: "Precision at cutoff k of the most recent run.",
			},
			[]string{"configuration", "query", "k"},
		),
		InterpolatedAverage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "irh_interpolated_precision_average",
				Help: "Averaged 11-point interpolated precision per recall level.",
			},
			[]string{"configuration", "recall"},
		),
		EventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "irh_events_published_total",
				Help: "Evaluation events published by status.",
			},
			[]string{"status"},
		),
		RunsStoredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "irh_runs_stored_total",
				Help: "Evaluation runs persisted to the run store by status.",
			},
			[]string{"status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "irh_http_requests_total",
				Help: "Requests served by the metrics server by method, path and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "irh_http_request_duration_seconds",
				Help:    "Metrics server request latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	reg.MustRegister(
		m.DocsIndexedTotal,
		m.IndexBuildsTotal,
		m.IndexBuildDuration,
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.PrecisionAtK,
		m.InterpolatedAverage,
		m.EventsPublishedTotal,
		m.RunsStoredTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
