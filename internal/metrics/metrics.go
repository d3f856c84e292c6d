// Package metrics exposes Prometheus collectors for the listing extractor.
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
	pageLoadsTotal             *prometheus.CounterVec
	attemptsTotal              *prometheus.CounterVec
	attemptDurationSeconds     prometheus.Histogram
	listingsTotal              *prometheus.CounterVec
	recordsStoredTotal         prometheus.Counter
	zoneSourcesTotal           *prometheus.CounterVec
	categorizedTotal           *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pageLoadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listings_page_loads_total",
				Help: "Index page loads, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		attemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listings_attempts_total",
				Help: "Per-listing extraction attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		attemptDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "listings_attempt_duration_seconds",
				Help:    "Duration of one extract-and-navigate attempt, including settle waits.",
				Buckets: []float64{1, 5, 10, 20, 30, 60, 120},
			},
		)

		listingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listings_processed_total",
				Help: "Listings processed, labeled by result (extracted or skipped).",
			},
			[]string{"result"},
		)

		recordsStoredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "listings_records_stored_total",
				Help: "Records handed to the document store.",
			},
		)

		zoneSourcesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zones_sources_total",
				Help: "Zoning sources scraped, labeled by status.",
			},
			[]string{"status"},
		)

		categorizedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listings_categorized_total",
				Help: "Documents labeled by the price-density analysis, labeled by category.",
			},
			[]string{"category"},
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

// ObservePageLoad counts one index page load.
func ObservePageLoad(pageURL string, status string) {
	pageLoadsTotal.WithLabelValues(SanitizeSite(pageURL), status).Inc()
}

// ObserveAttempt records one listing attempt.
func ObserveAttempt(success bool, duration time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	attemptsTotal.WithLabelValues(outcome).Inc()
	attemptDurationSeconds.Observe(duration.Seconds())
}

// ObserveListing counts a listing as extracted or skipped.
func ObserveListing(extracted bool) {
	result := "skipped"
	if extracted {
		result = "extracted"
	}
	listingsTotal.WithLabelValues(result).Inc()
}

// ObserveStored counts a record written to the document store.
func ObserveStored() {
	recordsStoredTotal.Inc()
}

// ObserveZoneSource counts one zoning source by status.
func ObserveZoneSource(status string) {
	zoneSourcesTotal.WithLabelValues(status).Inc()
}

// ObserveCategory counts one labeled document.
func ObserveCategory(category string) {
	categorizedTotal.WithLabelValues(category).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
