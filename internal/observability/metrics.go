package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the process-wide counters. One instance is wired at startup
// and shared by the services that report into it.
type Metrics struct {
	generationRuns *prometheus.CounterVec
	lessonOutcomes *prometheus.CounterVec
	retryDecisions *prometheus.CounterVec
	retrySessions  *prometheus.CounterVec
	quizAttempts   *prometheus.CounterVec
	llmRequests    *prometheus.CounterVec
	llmLatency     *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		generationRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lumen_generation_runs_total",
			Help: "Course generation runs by final status.",
		}, []string{"status"}),
		lessonOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lumen_lesson_generations_total",
			Help: "Lesson generations by outcome.",
		}, []string{"outcome"}),
		retryDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lumen_retry_decisions_total",
			Help: "Retry eligibility decisions by reason.",
		}, []string{"reason"}),
		retrySessions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lumen_retry_sessions_total",
			Help: "Retry polling sessions by terminal state.",
		}, []string{"state"}),
		quizAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lumen_quiz_attempts_total",
			Help: "Scored quiz attempts by outcome.",
		}, []string{"outcome"}),
		llmRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "lumen_llm_requests_total",
			Help: "LLM requests by operation and status.",
		}, []string{"op", "status"}),
		llmLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lumen_llm_request_seconds",
			Help:    "LLM request latency by operation.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"op"}),
	}
}

func (m *Metrics) GenerationRun(status string) {
	if m == nil {
		return
	}
	m.generationRuns.WithLabelValues(status).Inc()
}

func (m *Metrics) LessonOutcome(outcome string) {
	if m == nil {
		return
	}
	m.lessonOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RetryDecision(reason string) {
	if m == nil {
		return
	}
	m.retryDecisions.WithLabelValues(reason).Inc()
}

func (m *Metrics) RetrySession(state string) {
	if m == nil {
		return
	}
	m.retrySessions.WithLabelValues(state).Inc()
}

func (m *Metrics) QuizAttempt(outcome string) {
	if m == nil {
		return
	}
	m.quizAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) LLMRequest(op, status string, seconds float64) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(op, status).Inc()
	m.llmLatency.WithLabelValues(op).Observe(seconds)
}
