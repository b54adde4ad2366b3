package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	rankerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qa_ranker_latency_ms",
		Help:    "Latency of ranker calls in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 200, 500, 1000, 2000},
	}, []string{"type"})

	rankerResults = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qa_ranker_results",
		Help:    "Number of candidates returned by a ranker",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	}, []string{"type"})

	fusionPool = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "qa_fusion_pool_size",
		Help:    "Combined candidate pool size per fusion call",
		Buckets: []float64{0, 2, 4, 8, 16, 32, 64},
	})

	retrievalDegraded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "qa_retrieval_degraded_total",
		Help: "Retrievals that fell back to a single ranker",
	}, []string{"side"})

	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "qa_semantic_cache_lookups_total",
		Help: "Semantic cache lookups by outcome (hit/miss/expired)",
	}, []string{"outcome"})

	guardrailVerdicts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "qa_guardrail_verdict_total",
		Help: "Guardrail classifications",
	}, []string{"classification"})

	tierAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "qa_generation_attempts_total",
		Help: "Generation attempts by tier and status",
	}, []string{"tier", "status"})

	requestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qa_request_latency_seconds",
		Help:    "End-to-end request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(rankerLatency, rankerResults, fusionPool,
			retrievalDegraded, cacheLookups, guardrailVerdicts, tierAttempts, requestLatency)
	})
}

// ObserveRanker records latency and result size for a ranker type.
func ObserveRanker(typ string, start time.Time, results int) {
	ensureRegistered()
	rankerLatency.WithLabelValues(typ).Observe(float64(time.Since(start).Milliseconds()))
	rankerResults.WithLabelValues(typ).Observe(float64(results))
}

// ObserveFusion records the combined pool size of one fusion call.
func ObserveFusion(n int) {
	ensureRegistered()
	fusionPool.Observe(float64(n))
}

// IncDegraded records a single-ranker fallback; side is dense, sparse or both.
func IncDegraded(side string) {
	ensureRegistered()
	retrievalDegraded.WithLabelValues(side).Inc()
}

// IncCacheLookup records a semantic cache outcome.
func IncCacheLookup(outcome string) {
	ensureRegistered()
	cacheLookups.WithLabelValues(outcome).Inc()
}

// IncGuardrail records a guardrail classification.
func IncGuardrail(classification string) {
	ensureRegistered()
	guardrailVerdicts.WithLabelValues(classification).Inc()
}

// IncTierAttempt records one generation attempt outcome.
func IncTierAttempt(tier, status string) {
	ensureRegistered()
	tierAttempts.WithLabelValues(tier, status).Inc()
}

// ObserveRequest records one end-to-end request.
func ObserveRequest(outcome string, start time.Time) {
	ensureRegistered()
	requestLatency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// Collectors exposes all collectors for registration with a custom registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		rankerLatency, rankerResults, fusionPool, retrievalDegraded,
		cacheLookups, guardrailVerdicts, tierAttempts, requestLatency,
	}
}
