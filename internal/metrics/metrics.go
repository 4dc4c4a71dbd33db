package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Interactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "interest_interactions_total",
		Help: "Interactions processed, by final state",
	}, []string{"state"})
	ExtractionFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "interest_extraction_fallbacks_total",
		Help: "Topic extractions that fell back to the sentinel topic",
	})
	TopicsDecayed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "interest_topics_decayed_total",
		Help: "User topic scores changed or removed by decay",
	}, []string{"outcome"})
	RelationshipsPruned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "interest_relationships_pruned_total",
		Help: "Topic relationships removed below the minimum weight",
	})
	PassDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "interest_pass_duration_seconds",
		Help:    "Duration of one accumulator pass",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(Interactions, ExtractionFallbacks, TopicsDecayed, RelationshipsPruned, PassDuration)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePass records a pass duration and its final state.
func ObservePass(start time.Time, state string) {
	PassDuration.Observe(time.Since(start).Seconds())
	Interactions.WithLabelValues(state).Inc()
}

// IncFallback counts a topic extraction fallback.
func IncFallback() { ExtractionFallbacks.Inc() }

// AddDecayed counts decayed topics by outcome ("changed" or "removed").
func AddDecayed(outcome string, n int) {
	if n > 0 {
		TopicsDecayed.WithLabelValues(outcome).Add(float64(n))
	}
}

// AddPruned counts pruned relationships.
func AddPruned(n int) {
	if n > 0 {
		RelationshipsPruned.Add(float64(n))
	}
}
