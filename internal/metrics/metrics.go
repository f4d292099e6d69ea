// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Index page statuses not produced by the parser.
const (
	PageStatusFetchFailed = "fetch_failed"
)

// Record statuses for failures; successful upserts use their outcome name.
const (
	RecordExtractFailed = "extract_failed"
	RecordPersistFailed = "persist_failed"
)

var (
	harvestPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_index_pages_total",
			Help: "Total number of index pages processed, labeled by parse status.",
		},
		[]string{"status"},
	)

	harvestRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_records_total",
			Help: "Total number of post summaries processed, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	harvestFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_fetches_total",
			Help: "Total number of HTTP fetches, labeled by site and status code.",
		},
		[]string{"site", "code"},
	)

	harvestFetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvest_fetch_duration_seconds",
			Help:    "Histogram of fetch latencies, labeled by site.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"site"},
	)

	harvestBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_bytes_total",
			Help: "Total number of bytes fetched, labeled by site.",
		},
		[]string{"site"},
	)

	harvestRateLimitDelaysSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "harvest_rate_limit_delays_seconds",
			Help:    "Histogram of rate limit wait durations, labeled by limiter.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		},
		[]string{"limiter"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harvest_http_requests_total",
			Help: "Total number of requests served by the status endpoint, labeled by method, route and code.",
		},
		[]string{"method", "route", "code"},
	)
)

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

// ObservePage increments the index page counter.
func ObservePage(status string) {
	harvestPagesTotal.WithLabelValues(status).Inc()
}

// ObserveRecord increments the record counter for the given outcome.
func ObserveRecord(outcome string) {
	harvestRecordsTotal.WithLabelValues(outcome).Inc()
}

// ObserveFetch records one HTTP fetch. A zero code means the request never got a response.
func ObserveFetch(rawURL string, code int, bytesFetched int, duration time.Duration) {
	site := SanitizeSite(rawURL)
	harvestFetchesTotal.WithLabelValues(site, strconv.Itoa(code)).Inc()
	harvestFetchDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
	if bytesFetched > 0 {
		harvestBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(limiter string, duration time.Duration) {
	harvestRateLimitDelaysSeconds.WithLabelValues(limiter).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the status endpoint request counter.
func ObserveHTTPRequest(method, route string, code int) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}
