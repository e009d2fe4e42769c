// Package metrics exposes Prometheus collectors for the review harvester.
package metrics

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal               *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	moviesTotal                *prometheus.CounterVec
	criticsTotal               *prometheus.CounterVec
	criticsFailedTwiceTotal    prometheus.Counter
	reviewsHarvestedTotal      prometheus.Counter
	datasetRowsTotal           prometheus.Counter
	rateLimitWaitSeconds       prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "critics_fetches_total",
				Help: "Total number of page fetches, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "critics_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		moviesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "critics_movies_total",
				Help: "Total number of movies scanned for critics, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		criticsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "critics_processed_total",
				Help: "Total number of critic feed retrievals, labeled by pass and outcome.",
			},
			[]string{"pass", "outcome"},
		)

		criticsFailedTwiceTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "critics_failed_twice_total",
				Help: "Critics whose feed failed on both the first pass and the retry pass.",
			},
		)

		reviewsHarvestedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "critics_reviews_harvested_total",
				Help: "Raw reviews collected from critic feeds.",
			},
		)

		datasetRowsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "critics_dataset_rows_total",
				Help: "Rows emitted by the dataset assembler.",
			},
		)

		rateLimitWaitSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "critics_rate_limit_wait_seconds",
				Help:    "Histogram of rate limiter wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
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

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// WriteTextfile dumps the default registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	Init()
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// ObserveFetch records one page fetch.
func ObserveFetch(site string, status string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	fetchesTotal.WithLabelValues(sanitizedSite, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveMovie records the outcome of critic discovery for one movie.
func ObserveMovie(outcome string) {
	Init()
	moviesTotal.WithLabelValues(outcome).Inc()
}

// ObserveCritic records the outcome of one critic feed retrieval.
func ObserveCritic(pass, outcome string, reviews int) {
	Init()
	criticsTotal.WithLabelValues(pass, outcome).Inc()
	if reviews > 0 {
		reviewsHarvestedTotal.Add(float64(reviews))
	}
}

// ObserveFailedTwice records critics lost after the retry pass.
func ObserveFailedTwice(n int) {
	Init()
	if n > 0 {
		criticsFailedTwiceTotal.Add(float64(n))
	}
}

// ObserveDatasetRows records the size of an assembled dataset.
func ObserveDatasetRows(n int) {
	Init()
	if n > 0 {
		datasetRowsTotal.Add(float64(n))
	}
}

// ObserveRateLimitWait records the duration of a rate limiter wait.
func ObserveRateLimitWait(duration time.Duration) {
	Init()
	rateLimitWaitSeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
