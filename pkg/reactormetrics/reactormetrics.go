/*
Package reactormetrics exposes Prometheus instrumentation for the signal
engine: gauges for how many hubs/subscribers/sources exist, counters for
dispatches and effect runs, and histograms for effect latency — package-level
vars registered once via MustRegister in init, pointed at this engine's own
domain (hubs, sources, dispatches, effects) instead of cluster/container
counters.
*/
package reactormetrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HubsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "signalcore_hubs_total",
			Help: "Total number of hubs by kind (state, derived, event, effect)",
		},
		[]string{"kind"},
	)

	ExternalSubscribersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "signalcore_external_subscribers_total",
			Help: "Total number of external subscribers by hub kind",
		},
		[]string{"kind"},
	)

	SourcesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "signalcore_sources_total",
			Help: "Total number of registered sources by kind (lazy, stateful)",
		},
		[]string{"kind"},
	)

	DelayedQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "signalcore_delayed_queue_depth",
			Help: "Current number of thunks pending in the delayed queue",
		},
	)

	DispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalcore_dispatches_total",
			Help: "Total number of dispatches by outcome (delivered, deferred, cancelled)",
		},
		[]string{"outcome"},
	)

	ReducerPanicsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "signalcore_reducer_panics_total",
			Help: "Total number of reducer invocations that panicked and were discarded",
		},
	)

	HubRebuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalcore_hub_rebuilds_total",
			Help: "Total number of hub rebuilds triggered by a source error or completion",
		},
		[]string{"reason"},
	)

	EffectRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalcore_effect_runs_total",
			Help: "Total number of effect runs by outcome (success, error, cancelled)",
		},
		[]string{"effect", "outcome"},
	)

	EffectDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signalcore_effect_duration_seconds",
			Help:    "Effect run duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"effect"},
	)
)

func init() {
	prometheus.MustRegister(HubsTotal)
	prometheus.MustRegister(ExternalSubscribersTotal)
	prometheus.MustRegister(SourcesTotal)
	prometheus.MustRegister(DelayedQueueDepth)
	prometheus.MustRegister(DispatchesTotal)
	prometheus.MustRegister(ReducerPanicsTotal)
	prometheus.MustRegister(HubRebuildsTotal)
	prometheus.MustRegister(EffectRunsTotal)
	prometheus.MustRegister(EffectDuration)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer times one operation and reports its duration to a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
