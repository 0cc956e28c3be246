// Package metrics exposes Prometheus collectors for the crawler and its API.
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

// Crawl stage labels.
const (
	StageSeed    = "seed"
	StageCredits = "credits"
	StageActor   = "actor"
)

var (
	crawlerPagesTotal          *prometheus.CounterVec
	crawlerRequestErrorsTotal  *prometheus.CounterVec
	crawlerCreditsTotal        prometheus.Counter
	crawlerRunDurationSeconds  prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. It is safe to call multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "castcrawler_pages_total",
				Help: "Total number of pages fetched, labeled by crawl stage and status code.",
			},
			[]string{"stage", "status"},
		)

		crawlerRequestErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "castcrawler_request_errors_total",
				Help: "Total number of failed requests, labeled by crawl stage and status code.",
			},
			[]string{"stage", "status"},
		)

		crawlerCreditsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "castcrawler_credits_total",
				Help: "Total number of actor credits extracted.",
			},
		)

		crawlerRunDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "castcrawler_run_duration_seconds",
				Help:    "Histogram of end-to-end crawl durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
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

// ObservePage counts a fetched page for the given stage.
func ObservePage(stage string, statusCode int) {
	Init()
	crawlerPagesTotal.WithLabelValues(stage, strconv.Itoa(statusCode)).Inc()
}

// ObserveRequestError counts a failed request for the given stage.
func ObserveRequestError(stage string, statusCode int) {
	Init()
	crawlerRequestErrorsTotal.WithLabelValues(stage, strconv.Itoa(statusCode)).Inc()
}

// ObserveCredits adds n extracted credits.
func ObserveCredits(n int) {
	Init()
	if n > 0 {
		crawlerCreditsTotal.Add(float64(n))
	}
}

// ObserveRun records the duration of a finished crawl.
func ObserveRun(d time.Duration) {
	Init()
	crawlerRunDurationSeconds.Observe(d.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
