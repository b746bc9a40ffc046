// Package metrics exposes domain counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ridedeck/ridedeck/internal/provider/resilience"
	"github.com/ridedeck/ridedeck/internal/recommend"
)

const namespace = "ridedeck"

// Recorder holds the domain collectors. It satisfies the observer interfaces
// of the readiness, availability and dashboard services.
type Recorder struct {
	registry *prometheus.Registry

	readinessScores  *prometheus.HistogramVec
	recommendations  *prometheus.CounterVec
	recommendEmpty   prometheus.Counter
	scheduleLookups  *prometheus.CounterVec
	providerState    *prometheus.GaugeVec
	providerFailures *prometheus.GaugeVec
}

// NewRecorder creates a Recorder on its own registry, including the Go and
// process collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		readinessScores: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "readiness",
			Name:      "score",
			Help:      "Computed readiness scores by source.",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}, []string{"source"}),
		recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "recommendations_total",
			Help:      "Recommendations produced per length bucket.",
		}, []string{"length"}),
		recommendEmpty: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recommend",
			Name:      "empty_results_total",
			Help:      "Recommendation requests that produced no routes.",
		}),
		scheduleLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schedule",
			Name:      "cache_lookups_total",
			Help:      "World schedule cache lookups by result.",
		}, []string{"result"}),
		providerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "circuit_state",
			Help:      "Circuit breaker state per upstream provider (0 closed, 1 half-open, 2 open).",
		}, []string{"provider"}),
		providerFailures: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "consecutive_failures",
			Help:      "Consecutive failed requests per upstream provider.",
		}, []string{"provider"}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.readinessScores,
		r.recommendations,
		r.recommendEmpty,
		r.scheduleLookups,
		r.providerState,
		r.providerFailures,
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// ObserveReadiness records a computed readiness score.
func (r *Recorder) ObserveReadiness(source string, score int) {
	r.readinessScores.WithLabelValues(source).Observe(float64(score))
}

// ObserveRecommendations counts produced recommendations per bucket.
func (r *Recorder) ObserveRecommendations(recs []recommend.Recommendation) {
	if len(recs) == 0 {
		r.recommendEmpty.Inc()
		return
	}
	for _, rec := range recs {
		r.recommendations.WithLabelValues(string(rec.Length)).Inc()
	}
}

// ObserveScheduleLookup counts a schedule cache hit or miss.
func (r *Recorder) ObserveScheduleLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.scheduleLookups.WithLabelValues(result).Inc()
}

// ObserveProviders snapshots circuit breaker state for every registered provider.
func (r *Recorder) ObserveProviders(reg *resilience.Registry) {
	for _, h := range reg.GetAllHealth() {
		r.providerState.WithLabelValues(h.Name).Set(float64(h.CircuitState))
		r.providerFailures.WithLabelValues(h.Name).Set(float64(h.Counts.ConsecutiveFailures))
	}
}
