// Package metrics exposes Prometheus collectors for the award watcher.
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
	awardFetchTotal            *prometheus.CounterVec
	awardSweepsTotal           *prometheus.CounterVec
	awardSweepDurationSeconds  prometheus.Histogram
	awardAlertsTotal           *prometheus.CounterVec
	awardBestPoints            *prometheus.GaugeVec
	awardSessionRestartsTotal  prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		awardFetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "award_fetch_total",
				Help: "Total number of points fetches, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		awardSweepsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "award_sweeps_total",
				Help: "Total number of sweeps, labeled by result.",
			},
			[]string{"result"},
		)

		awardSweepDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "award_sweep_duration_seconds",
				Help:    "Histogram of full sweep durations.",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
			},
		)

		awardAlertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "award_alerts_total",
				Help: "Total number of alert deliveries, labeled by channel and result.",
			},
			[]string{"channel", "result"},
		)

		awardBestPoints = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "award_best_points",
				Help: "Best points value recorded per origin and date.",
			},
			[]string{"key"},
		)

		awardSessionRestartsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "award_session_restarts_total",
				Help: "Total number of browser sessions discarded after a sweep fault.",
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
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch counts one fetch attempt.
func ObserveFetch(outcome string) {
	Init()
	awardFetchTotal.WithLabelValues(outcome).Inc()
}

// ObserveSweep counts a sweep and records its duration.
func ObserveSweep(result string, duration time.Duration) {
	Init()
	awardSweepsTotal.WithLabelValues(result).Inc()
	awardSweepDurationSeconds.Observe(duration.Seconds())
}

// ObserveAlert counts one channel delivery attempt.
func ObserveAlert(channel string, ok bool) {
	Init()
	result := "success"
	if !ok {
		result = "failure"
	}
	awardAlertsTotal.WithLabelValues(channel, result).Inc()
}

// SetBestPoints publishes the current best value for a key.
func SetBestPoints(key string, value int64) {
	Init()
	awardBestPoints.WithLabelValues(key).Set(float64(value))
}

// ObserveSessionRestart counts a discarded browser session.
func ObserveSessionRestart() {
	Init()
	awardSessionRestartsTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
