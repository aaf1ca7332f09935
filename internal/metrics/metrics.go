// Package metrics exposes Prometheus collectors for the capture service.
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
	capturesTotal              *prometheus.CounterVec
	captureDurationSeconds     *prometheus.HistogramVec
	browserSessionsActive      prometheus.Gauge
	assetOperationsTotal       *prometheus.CounterVec
	orphanedAssetsTotal        prometheus.Counter
	renditionRequestsTotal     *prometheus.CounterVec
	tagRemovalFailuresTotal    prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	jobsTotal                  *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	rateLimitedTotal           *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		capturesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cornell_captures_total",
				Help: "Total number of URL captures, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		captureDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cornell_capture_duration_seconds",
				Help:    "Histogram of capture latencies, labeled by browser mode.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"mode"},
		)

		browserSessionsActive = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "cornell_browser_sessions_active",
				Help: "Number of browser sessions currently open.",
			},
		)

		assetOperationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cornell_asset_operations_total",
				Help: "Total asset store calls, labeled by operation and status.",
			},
			[]string{"op", "status"},
		)

		orphanedAssetsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cornell_orphaned_assets_total",
				Help: "Assets left behind after their note row was deleted.",
			},
		)

		renditionRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cornell_rendition_requests_total",
				Help: "Rendition URL lookups, labeled by cache result.",
			},
			[]string{"result"},
		)

		tagRemovalFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "cornell_tag_removal_failures_total",
				Help: "Per-note update failures during bulk tag removal.",
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

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cornell_jobs_total",
				Help: "Total number of capture jobs processed, labeled by status.",
			},
			[]string{"status"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "cornell_active_workers",
				Help: "Number of workers currently processing a capture job.",
			},
		)

		rateLimitedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cornell_rate_limited_total",
				Help: "Requests rejected by the capture rate limiter, labeled by route.",
			},
			[]string{"route"},
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
	Init()
	return promhttp.Handler()
}

// ObserveCapture records one capture outcome (succeeded, degraded, failed).
func ObserveCapture(site, outcome, mode string, duration time.Duration) {
	Init()
	capturesTotal.WithLabelValues(SanitizeSite(site), outcome).Inc()
	captureDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// IncBrowserSessions increments the open browser sessions gauge.
func IncBrowserSessions() {
	Init()
	browserSessionsActive.Inc()
}

// DecBrowserSessions decrements the open browser sessions gauge.
func DecBrowserSessions() {
	Init()
	browserSessionsActive.Dec()
}

// ObserveAssetOperation counts an asset store call.
func ObserveAssetOperation(op string, err error) {
	Init()
	status := "ok"
	if err != nil {
		status = "error"
	}
	assetOperationsTotal.WithLabelValues(op, status).Inc()
}

// IncOrphanedAssets counts an asset whose delete failed after its row was removed.
func IncOrphanedAssets() {
	Init()
	orphanedAssetsTotal.Inc()
}

// ObserveRendition counts a rendition lookup as a cache hit or miss.
func ObserveRendition(hit bool) {
	Init()
	result := "miss"
	if hit {
		result = "hit"
	}
	renditionRequestsTotal.WithLabelValues(result).Inc()
}

// AddTagRemovalFailures counts notes that failed to update during a bulk tag removal.
func AddTagRemovalFailures(n int) {
	Init()
	tagRemovalFailuresTotal.Add(float64(n))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	Init()
	jobsTotal.WithLabelValues(status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimited counts a request rejected by the rate limiter.
func ObserveRateLimited(route string) {
	Init()
	rateLimitedTotal.WithLabelValues(route).Inc()
}
