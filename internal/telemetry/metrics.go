package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	TokensUsed          metric.Int64Counter
	IngestionDuration   metric.Float64Histogram
	IngestionOutcomes   metric.Int64Counter
	SearchDuration      metric.Float64Histogram
	QuizzesGenerated    metric.Int64Counter
	AnswersGraded       metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("study-assistant-platform")
	m := &Metrics{}
	var err error

	if m.RequestCounter, err = meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	); err != nil {
		return nil, err
	}

	if m.RequestDuration, err = meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.TokensUsed, err = meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	); err != nil {
		return nil, err
	}

	if m.IngestionDuration, err = meter.Float64Histogram(
		"ingestion.duration",
		metric.WithDescription("Document ingestion duration in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.IngestionOutcomes, err = meter.Int64Counter(
		"ingestion.outcomes.total",
		metric.WithDescription("Ingestion runs by outcome"),
	); err != nil {
		return nil, err
	}

	if m.SearchDuration, err = meter.Float64Histogram(
		"search.duration",
		metric.WithDescription("Semantic search latency in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.QuizzesGenerated, err = meter.Int64Counter(
		"quiz.generated.total",
		metric.WithDescription("Quizzes generated by kind"),
	); err != nil {
		return nil, err
	}

	if m.AnswersGraded, err = meter.Int64Counter(
		"quiz.answers.graded",
		metric.WithDescription("Graded answers by kind and correctness"),
	); err != nil {
		return nil, err
	}

	if m.CircuitBreakerState, err = meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

// All recorders are nil-safe so components can run without telemetry in tests.

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	)

	m.RequestCounter.Add(context.Background(), 1, attrs)
	m.RequestDuration.Record(context.Background(), duration, attrs)
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	if m == nil {
		return
	}
	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(
		attribute.String("gemini.model", model),
		attribute.String("service", "gemini"),
	))
}

// RecordIngestion records one ingestion run. status is processed, failed, skipped or superseded.
func (m *Metrics) RecordIngestion(duration float64, status string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("ingestion.status", status))
	m.IngestionDuration.Record(context.Background(), duration, attrs)
	m.IngestionOutcomes.Add(context.Background(), 1, attrs)
}

func (m *Metrics) RecordSearch(duration float64, documents, hits int) {
	if m == nil {
		return
	}
	m.SearchDuration.Record(context.Background(), duration, metric.WithAttributes(
		attribute.Int("search.documents", documents),
		attribute.Int("search.hits", hits),
	))
}

func (m *Metrics) RecordQuizGenerated(kind string) {
	if m == nil {
		return
	}
	m.QuizzesGenerated.Add(context.Background(), 1, metric.WithAttributes(attribute.String("quiz.kind", kind)))
}

func (m *Metrics) RecordAnswerGraded(kind string, correct bool) {
	if m == nil {
		return
	}
	m.AnswersGraded.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("quiz.kind", kind),
		attribute.Bool("answer.correct", correct),
	))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("state", state),
	))
}
