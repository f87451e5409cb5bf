// Package metrics holds the Prometheus collectors of the scoring engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the process registry exposed on /metrics.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		RequestsTotal, ValidationFailuresTotal, ModelFallbacksTotal,
		ClampedTotal, FailuresTotal, Duration, ScoreValue,
	)
}

// RequestsTotal counts successful predictions by scorer version.
var RequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "credit_score_requests_total",
		Help: "Successful predictions by entity kind and model version.",
	},
	[]string{"kind", "model_version"},
)

// ValidationFailuresTotal counts rejected inputs.
var ValidationFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "credit_score_validation_failures_total",
		Help: "Predictions rejected by input validation.",
	},
	[]string{"field", "reason"},
)

// ModelFallbacksTotal counts model scorer misses that fell back to rules.
var ModelFallbacksTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "credit_score_model_fallbacks_total",
		Help: "Model scorer unavailable, rule scorer used instead.",
	},
	[]string{"kind"},
)

// ClampedTotal counts raw scores saturated at a bound.
var ClampedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "credit_score_clamped_total",
		Help: "Raw scores saturated into the published range.",
	},
	[]string{"kind", "bound"}, // lower | upper
)

// FailuresTotal counts internal scoring faults.
var FailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "credit_score_failures_total",
		Help: "Internal scoring faults converted to scoring_failed.",
	},
	[]string{"kind"},
)

// Duration observes prediction latency.
var Duration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "credit_score_duration_seconds",
		Help:    "Prediction latency in seconds.",
		Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01},
	},
	[]string{"kind"},
)

// ScoreValue observes the distribution of published scores.
var ScoreValue = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "credit_score_value",
		Help:    "Published scores.",
		Buckets: prometheus.LinearBuckets(0, 100, 11),
	},
	[]string{"kind"},
)

// ObserveSuccess records a successful prediction.
func ObserveSuccess(kind, modelVersion string, score float64, elapsed time.Duration) {
	RequestsTotal.WithLabelValues(kind, modelVersion).Inc()
	ScoreValue.WithLabelValues(kind).Observe(score)
	Duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveClamp records a saturated raw score.
func ObserveClamp(kind string, raw float64) {
	bound := "upper"
	if raw < 0 {
		bound = "lower"
	}
	ClampedTotal.WithLabelValues(kind, bound).Inc()
}

// Handler serves the registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
