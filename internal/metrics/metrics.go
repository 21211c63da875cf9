// Package metrics exposes Prometheus collectors for a conversion run.
package metrics

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch outcome labels.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var (
	registry *prometheus.Registry

	pagesTotal             *prometheus.CounterVec
	bytesTotal             *prometheus.CounterVec
	fetchRetriesTotal      *prometheus.CounterVec
	fetchDurationSeconds   *prometheus.HistogramVec
	rateLimitDelaysSeconds *prometheus.HistogramVec
	placemarksTotal        prometheus.Counter
	runsTotal              *prometheus.CounterVec
	runDurationSeconds     prometheus.Histogram

	once sync.Once
)

// Init initializes the collectors on a private registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		pagesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabelog2kml_pages_total",
				Help: "Total number of pages fetched, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		bytesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabelog2kml_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		fetchRetriesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabelog2kml_fetch_retries_total",
				Help: "Total number of retried fetch attempts, labeled by site.",
			},
			[]string{"site"},
		)

		fetchDurationSeconds = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tabelog2kml_fetch_duration_seconds",
				Help:    "Histogram of single fetch attempt latencies.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"site"},
		)

		rateLimitDelaysSeconds = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tabelog2kml_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		placemarksTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tabelog2kml_placemarks_total",
				Help: "Total number of placemarks written.",
			},
		)

		runsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tabelog2kml_runs_total",
				Help: "Total number of runs, labeled by status.",
			},
			[]string{"status"},
		)

		runDurationSeconds = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tabelog2kml_run_duration_seconds",
				Help:    "Histogram of whole-run durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
			},
		)

		registry.MustRegister(
			pagesTotal,
			bytesTotal,
			fetchRetriesTotal,
			fetchDurationSeconds,
			rateLimitDelaysSeconds,
			placemarksTotal,
			runsTotal,
			runDurationSeconds,
		)
	})
}

// Registry returns the private registry, initializing it on first use.
func Registry() *prometheus.Registry {
	Init()
	return registry
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

// ObserveFetch counts a finished fetch for site.
func ObserveFetch(site, status string, bytesFetched int) {
	Init()
	pagesTotal.WithLabelValues(site, status).Inc()
	if bytesFetched > 0 {
		bytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveRetry counts a retried attempt.
func ObserveRetry(site string) {
	Init()
	fetchRetriesTotal.WithLabelValues(site).Inc()
}

// ObserveFetchDuration records the latency of one attempt.
func ObserveFetchDuration(site string, duration time.Duration) {
	Init()
	fetchDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObservePlacemarks adds n written placemarks.
func ObservePlacemarks(n int) {
	Init()
	placemarksTotal.Add(float64(n))
}

// ObserveRun records a finished run.
func ObserveRun(status string, duration time.Duration) {
	Init()
	runsTotal.WithLabelValues(status).Inc()
	runDurationSeconds.Observe(duration.Seconds())
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry()); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
