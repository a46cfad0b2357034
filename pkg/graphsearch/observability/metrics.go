package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Evaluation outcomes used as metric attributes.
const (
	OutcomeLabeled = "labeled"
	OutcomePruned  = "pruned"
	OutcomeFailed  = "failed"
)

// MetricsRecorder records search metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordEvaluation records one node evaluation and its outcome.
	RecordEvaluation(ctx context.Context, duration time.Duration, outcome string)

	// RecordExpansion records one node expansion.
	RecordExpansion(ctx context.Context, depth, children int, err error)

	// RecordSolutionEvaluation records one call to the solution evaluator.
	RecordSolutionEvaluation(ctx context.Context, duration time.Duration, err error)

	// RecordSolution records a posted solution.
	RecordSolution(ctx context.Context)

	// RecordRun records the end of a search run.
	RecordRun(ctx context.Context, outcome string, duration time.Duration)
}

type otelMetrics struct {
	evaluations       metric.Int64Counter
	evaluationLatency metric.Float64Histogram
	expansions        metric.Int64Counter
	expansionFanout   metric.Int64Histogram
	expansionErrors   metric.Int64Counter
	solutionEvals     metric.Int64Counter
	solutionLatency   metric.Float64Histogram
	solutions         metric.Int64Counter
	runs              metric.Int64Counter
	runLatency        metric.Float64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("graphsearch")
	m := &otelMetrics{}
	var err error

	if m.evaluations, err = meter.Int64Counter("graphsearch.node.evaluations",
		metric.WithDescription("Number of node evaluations"),
	); err != nil {
		return nil, err
	}
	if m.evaluationLatency, err = meter.Float64Histogram("graphsearch.node.evaluation_ms",
		metric.WithDescription("Node evaluation latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.expansions, err = meter.Int64Counter("graphsearch.node.expansions",
		metric.WithDescription("Number of node expansions"),
	); err != nil {
		return nil, err
	}
	if m.expansionFanout, err = meter.Int64Histogram("graphsearch.node.successors",
		metric.WithDescription("Successors generated per expansion"),
	); err != nil {
		return nil, err
	}
	if m.expansionErrors, err = meter.Int64Counter("graphsearch.node.expansion_errors",
		metric.WithDescription("Number of failed successor generations"),
	); err != nil {
		return nil, err
	}
	if m.solutionEvals, err = meter.Int64Counter("graphsearch.solution.evaluations",
		metric.WithDescription("Number of solution evaluator calls"),
	); err != nil {
		return nil, err
	}
	if m.solutionLatency, err = meter.Float64Histogram("graphsearch.solution.evaluation_ms",
		metric.WithDescription("Solution evaluation latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.solutions, err = meter.Int64Counter("graphsearch.solutions",
		metric.WithDescription("Number of posted solutions"),
	); err != nil {
		return nil, err
	}
	if m.runs, err = meter.Int64Counter("graphsearch.runs",
		metric.WithDescription("Number of search runs"),
	); err != nil {
		return nil, err
	}
	if m.runLatency, err = meter.Float64Histogram("graphsearch.run.duration_ms",
		metric.WithDescription("Search run duration in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func (m *otelMetrics) RecordEvaluation(ctx context.Context, duration time.Duration, outcome string) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.evaluations.Add(ctx, 1, attrs)
	m.evaluationLatency.Record(ctx, ms(duration), attrs)
}

func (m *otelMetrics) RecordExpansion(ctx context.Context, depth, children int, err error) {
	attrs := metric.WithAttributes(attribute.Int("depth", depth))
	m.expansions.Add(ctx, 1, attrs)
	if err != nil {
		m.expansionErrors.Add(ctx, 1, attrs)
		return
	}
	m.expansionFanout.Record(ctx, int64(children), attrs)
}

func (m *otelMetrics) RecordSolutionEvaluation(ctx context.Context, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.Bool("success", err == nil))
	m.solutionEvals.Add(ctx, 1, attrs)
	m.solutionLatency.Record(ctx, ms(duration), attrs)
}

func (m *otelMetrics) RecordSolution(ctx context.Context) {
	m.solutions.Add(ctx, 1)
}

func (m *otelMetrics) RecordRun(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.runs.Add(ctx, 1, attrs)
	m.runLatency.Record(ctx, ms(duration), attrs)
}
