package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes the service's Prometheus collectors.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	routes          *prometheus.CounterVec
	fallbacks       prometheus.Counter
	groundingEmpty  prometheus.Counter
	generations     *prometheus.CounterVec
	attempts        prometheus.Histogram
	backoff         prometheus.Histogram
	malformedOutput prometheus.Counter
	retrievals      *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		routes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chemistry",
			Name:      "routed_queries_total",
			Help:      "Queries answered, by serving path and result.",
		}, []string{"path", "result"}),
		fallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: "chemistry",
			Name:      "grounded_fallbacks_total",
			Help:      "Grounded answers re-routed to the direct path.",
		}),
		groundingEmpty: f.NewCounter(prometheus.CounterOpts{
			Namespace: "chemistry",
			Name:      "grounding_empty_total",
			Help:      "Grounded queries for which retrieval returned no documents.",
		}),
		generations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chemistry",
			Name:      "generations_total",
			Help:      "Generation calls by model tier and outcome.",
		}, []string{"tier", "outcome"}),
		attempts: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chemistry",
			Name:      "generation_attempts",
			Help:      "Upstream calls issued per generation.",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		}),
		backoff: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chemistry",
			Name:      "generation_backoff_seconds",
			Help:      "Suspensions before retrying a rate-limited generation.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
		malformedOutput: f.NewCounter(prometheus.CounterOpts{
			Namespace: "chemistry",
			Name:      "malformed_structured_output_total",
			Help:      "Structured answers that did not contain a JSON object.",
		}),
		retrievals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chemistry",
			Name:      "retrievals_total",
			Help:      "Retrieval calls by result.",
		}, []string{"result"}),
	}
}

func (r *Recorder) ObserveRoute(path, result string) {
	if r == nil {
		return
	}
	r.routes.WithLabelValues(path, result).Inc()
}

func (r *Recorder) ObserveFallback() {
	if r == nil {
		return
	}
	r.fallbacks.Inc()
}

func (r *Recorder) ObserveGroundingEmpty() {
	if r == nil {
		return
	}
	r.groundingEmpty.Inc()
}

func (r *Recorder) ObserveGeneration(tier, outcome string, attempts int) {
	if r == nil {
		return
	}
	r.generations.WithLabelValues(tier, outcome).Inc()
	r.attempts.Observe(float64(attempts))
}

func (r *Recorder) ObserveBackoff(d time.Duration) {
	if r == nil {
		return
	}
	r.backoff.Observe(d.Seconds())
}

func (r *Recorder) ObserveMalformedOutput() {
	if r == nil {
		return
	}
	r.malformedOutput.Inc()
}

func (r *Recorder) ObserveRetrieval(result string) {
	if r == nil {
		return
	}
	r.retrievals.WithLabelValues(result).Inc()
}
