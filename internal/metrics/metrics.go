// Package metrics exposes Prometheus collectors for the feed aggregator.
package metrics

import (
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
	sourceFetchesTotal         *prometheus.CounterVec
	sourceBytesTotal           *prometheus.CounterVec
	sourceFetchDuration        *prometheus.HistogramVec
	entriesNormalizedTotal     *prometheus.CounterVec
	rendersTotal               *prometheus.CounterVec
	renderedEntries            prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaySeconds      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		sourceFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedagg_source_fetches_total",
				Help: "Total number of source fetches, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		sourceBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedagg_source_bytes_total",
				Help: "Total number of feed bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		sourceFetchDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "feedagg_source_fetch_duration_seconds",
				Help:    "Histogram of source fetch latencies, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 12},
			},
			[]string{"site"},
		)

		entriesNormalizedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedagg_entries_normalized_total",
				Help: "Total number of entries normalized, labeled by source format.",
			},
			[]string{"format"},
		)

		rendersTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedagg_renders_total",
				Help: "Total number of aggregated feed renders, labeled by status.",
			},
			[]string{"status"},
		)

		renderedEntries = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "feedagg_rendered_entries",
				Help: "Number of entries in the most recently rendered feed.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method, route pattern and code.",
			},
			[]string{"method", "route", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "feedagg_rate_limit_delay_seconds",
				Help:    "Histogram of per-host rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"domain"},
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

// ObserveSourceFetch records the outcome of one source fetch.
func ObserveSourceFetch(site, outcome string, bytesFetched int, duration time.Duration) {
	sanitizedSite := SanitizeSite(site)
	sourceFetchesTotal.WithLabelValues(sanitizedSite, outcome).Inc()
	if bytesFetched > 0 {
		sourceBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
	if duration > 0 {
		sourceFetchDuration.WithLabelValues(sanitizedSite).Observe(duration.Seconds())
	}
}

// ObserveEntriesNormalized adds count entries for the given source format.
func ObserveEntriesNormalized(format string, count int) {
	if count <= 0 {
		return
	}
	entriesNormalizedTotal.WithLabelValues(format).Add(float64(count))
}

// ObserveRender records a render attempt and, on success, the number of entries written.
func ObserveRender(status string, entries int) {
	rendersTotal.WithLabelValues(status).Inc()
	if status == "success" {
		renderedEntries.Set(float64(entries))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
