package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		weatherHTTPRequestsTotal,
		weatherHTTPRetriesTotal,
		weatherHTTPLatency,
	)
}

var (
	weatherHTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_http_requests_total",
			Help: "Outbound weather provider calls by final outcome.",
		},
		[]string{"outcome"}, // 'ok', 'client_error', 'exhausted', 'breaker_open'
	)

	weatherHTTPRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "weather_http_retries_total",
			Help: "Retry attempts made after transient failures.",
		},
	)

	weatherHTTPLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "weather_http_attempt_duration_seconds",
			Help:    "Latency of individual outbound attempts.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func IncWeatherHTTPRequest(outcome string) {
	weatherHTTPRequestsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncWeatherHTTPRetry() {
	weatherHTTPRetriesTotal.Inc()
}

func ObserveWeatherHTTPAttempt(d time.Duration) {
	weatherHTTPLatency.Observe(d.Seconds())
}
