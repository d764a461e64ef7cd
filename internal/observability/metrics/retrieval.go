package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/evidence-retrieval/internal/core/domain"
)

// RetrievalMetrics implements the gateway, evaluator, pipeline, cache and
// breaker observers.
type RetrievalMetrics struct {
	service string

	backendSearchTotal    *prometheus.CounterVec
	backendSearchDuration *prometheus.HistogramVec
	backendResults        *prometheus.HistogramVec
	evaluationsTotal      *prometheus.CounterVec
	evaluationScore       *prometheus.HistogramVec
	expansionDecisions    *prometheus.CounterVec
	runsTotal             *prometheus.CounterVec
	runDuration           *prometheus.HistogramVec
	runExpansions         *prometheus.HistogramVec
	runResults            *prometheus.HistogramVec
	cacheLookupsTotal     *prometheus.CounterVec
	breakerState          *prometheus.GaugeVec
}

func NewRetrievalMetrics(service string, registerer prometheus.Registerer) *RetrievalMetrics {
	m := &RetrievalMetrics{
		service: service,
		backendSearchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "backend_searches_total",
				Help:      "Backend searches by outcome (ok, error, timeout).",
			},
			[]string{"service", "backend", "status"},
		),
		backendSearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "backend_search_duration_seconds",
				Help:      "Backend search latency in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "backend"},
		),
		backendResults: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "backend_results",
				Help:      "Results returned per backend search.",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
			},
			[]string{"service", "backend"},
		),
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "evaluator",
				Name:      "evaluations_total",
				Help:      "Quality evaluations by source and verdict.",
			},
			[]string{"service", "source", "satisfied"},
		),
		evaluationScore: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "evaluator",
				Name:      "score",
				Help:      "Distribution of quality scores.",
				Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
			},
			[]string{"service", "source"},
		),
		expansionDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "expansion",
				Name:      "decisions_total",
				Help:      "Expansion decisions by reason.",
			},
			[]string{"service", "reason"},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Completed retrieval runs by termination reason.",
			},
			[]string{"service", "termination"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "Retrieval run duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		runExpansions: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "run_expansions",
				Help:      "Expansion rounds per retrieval run.",
				Buckets:   []float64{0, 1, 2, 3, 4, 5},
			},
			[]string{"service"},
		),
		runResults: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "run_results",
				Help:      "Merged candidates per retrieval run.",
				Buckets:   []float64{0, 1, 3, 5, 10, 20, 40},
			},
			[]string{"service"},
		),
		cacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "lookups_total",
				Help:      "Backend result cache lookups by result.",
			},
			[]string{"service", "backend", "result"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "resilience",
				Name:      "breaker_state",
				Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
			},
			[]string{"service", "operation"},
		),
	}

	registerer.MustRegister(
		m.backendSearchTotal,
		m.backendSearchDuration,
		m.backendResults,
		m.evaluationsTotal,
		m.evaluationScore,
		m.expansionDecisions,
		m.runsTotal,
		m.runDuration,
		m.runExpansions,
		m.runResults,
		m.cacheLookupsTotal,
		m.breakerState,
	)
	return m
}

func (m *RetrievalMetrics) ObserveBackendSearch(backend, status string, results int, duration time.Duration) {
	m.backendSearchTotal.WithLabelValues(m.service, backend, status).Inc()
	m.backendSearchDuration.WithLabelValues(m.service, backend).Observe(duration.Seconds())
	m.backendResults.WithLabelValues(m.service, backend).Observe(float64(results))
}

func (m *RetrievalMetrics) ObserveEvaluation(source domain.AssessmentSource, satisfied bool, score float64) {
	m.evaluationsTotal.WithLabelValues(m.service, string(source), strconv.FormatBool(satisfied)).Inc()
	m.evaluationScore.WithLabelValues(m.service, string(source)).Observe(score)
}

func (m *RetrievalMetrics) ObserveExpansionDecision(reason string) {
	m.expansionDecisions.WithLabelValues(m.service, reason).Inc()
}

func (m *RetrievalMetrics) ObserveRun(termination string, results, expansions int, duration time.Duration) {
	m.runsTotal.WithLabelValues(m.service, termination).Inc()
	m.runDuration.WithLabelValues(m.service).Observe(duration.Seconds())
	m.runExpansions.WithLabelValues(m.service).Observe(float64(expansions))
	m.runResults.WithLabelValues(m.service).Observe(float64(results))
}

func (m *RetrievalMetrics) ObserveCacheLookup(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(m.service, backend, result).Inc()
}

// ObserveBreakerState matches resilience.StateObserver.
func (m *RetrievalMetrics) ObserveBreakerState(operation string, _, to gobreaker.State) {
	var value float64
	switch to {
	case gobreaker.StateHalfOpen:
		value = 1
	case gobreaker.StateOpen:
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
