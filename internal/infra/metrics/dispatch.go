package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		dispatchTicksTotal,
		dispatchMessagesTotal,
		dispatchCityFetchFailuresTotal,
		dispatchTickDuration,
	)
}

var (
	dispatchTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_ticks_total",
			Help: "Daily dispatch ticks by outcome.",
		},
		[]string{"outcome"}, // 'empty', 'completed', 'panic', 'skipped', 'error'
	)

	dispatchMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_messages_total",
			Help: "Messages delivered by the dispatcher.",
		},
		[]string{"kind", "outcome"}, // kind='daily'|'alert', outcome='sent'|'failed'
	)

	dispatchCityFetchFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_city_fetch_failures_total",
			Help: "Cities skipped in a tick because weather could not be fetched.",
		},
	)

	dispatchTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_tick_duration_seconds",
			Help:    "Wall time of a full dispatch tick including deliveries.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

func IncDispatchTick(outcome string) {
	dispatchTicksTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncDispatchMessage(kind, outcome string) {
	dispatchMessagesTotal.WithLabelValues(norm(kind), norm(outcome)).Inc()
}

func IncCityFetchFailure() {
	dispatchCityFetchFailuresTotal.Inc()
}

func ObserveDispatchTick(d time.Duration) {
	dispatchTickDuration.Observe(d.Seconds())
}
