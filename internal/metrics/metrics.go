// Package metrics exposes Prometheus collectors for the curation service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	curatorItemsCollectedTotal     *prometheus.CounterVec
	curatorFetchRetriesTotal       *prometheus.CounterVec
	curatorPipelineRunsTotal       *prometheus.CounterVec
	curatorPipelineDurationSeconds prometheus.Histogram
	curatorCuratedItems            prometheus.Gauge
	httpRequestsTotal              *prometheus.CounterVec
	httpRequestDurationSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		curatorItemsCollectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "curator_items_collected_total",
				Help: "Total number of items collected, labeled by source.",
			},
			[]string{"source"},
		)

		curatorFetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "curator_fetch_retries_total",
				Help: "Total number of fetch retries, labeled by reason.",
			},
			[]string{"reason"},
		)

		curatorPipelineRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "curator_pipeline_runs_total",
				Help: "Total number of pipeline runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		curatorPipelineDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "curator_pipeline_duration_seconds",
				Help:    "Histogram of full pipeline run durations.",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
			},
		)

		curatorCuratedItems = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "curator_curated_items",
				Help: "Number of items in the latest curated set.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCollected adds to the per-source collected item counter.
func ObserveCollected(source string, count int) {
	if count > 0 {
		curatorItemsCollectedTotal.WithLabelValues(source).Add(float64(count))
	}
}

// ObserveFetchRetry increments the retry counter for the given reason.
func ObserveFetchRetry(reason string) {
	curatorFetchRetriesTotal.WithLabelValues(reason).Inc()
}

// ObservePipelineRun records one pipeline run with its outcome and duration.
func ObservePipelineRun(outcome string, duration time.Duration) {
	curatorPipelineRunsTotal.WithLabelValues(outcome).Inc()
	curatorPipelineDurationSeconds.Observe(duration.Seconds())
}

// SetCuratedItems sets the size of the latest curated set.
func SetCuratedItems(count int) {
	curatorCuratedItems.Set(float64(count))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
