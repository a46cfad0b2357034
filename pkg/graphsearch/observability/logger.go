// Package observability provides structured logging, metrics and tracing
// for search runs.
//
// Features:
//   - Structured logging via slog
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// Metrics and tracing are opt-in and have no-op implementations when
// disabled. Every logging helper accepts a nil logger.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds run context to a logger.
func EnrichLogger(logger *slog.Logger, runID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String("run_id", runID))
}

// NodeLogger adds node context to an already enriched logger.
func NodeLogger(logger *slog.Logger, nodeID, depth int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.Int("node_id", nodeID),
		slog.Int("depth", depth),
	)
}

// LogRunStart logs the start of a search run.
func LogRunStart(logger *slog.Logger, roots int) {
	if logger == nil {
		return
	}
	logger.Info("search starting",
		slog.Int("roots", roots),
	)
}

// LogRunComplete logs a run that exhausted OPEN or hit its expansion budget.
func LogRunComplete(logger *slog.Logger, durationMs float64, expansions, solutions int) {
	if logger == nil {
		return
	}
	logger.Info("search terminated",
		slog.Float64("duration_ms", durationMs),
		slog.Int("expansions", expansions),
		slog.Int("solutions", solutions),
	)
}

// LogRunError logs a run that ended in a run-level failure.
func LogRunError(logger *slog.Logger, err error, durationMs float64, solutions int) {
	if logger == nil {
		return
	}
	logger.Error("search failed",
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
		slog.Int("solutions", solutions),
	)
}

// LogExpansion logs a completed node expansion.
func LogExpansion(logger *slog.Logger, nodeID, depth, children, pruned int) {
	if logger == nil {
		return
	}
	logger.Debug("node expanded",
		slog.Int("node_id", nodeID),
		slog.Int("depth", depth),
		slog.Int("children", children),
		slog.Int("pruned", pruned),
	)
}

// LogNodePruned logs a node that was dropped from the frontier.
func LogNodePruned(logger *slog.Logger, nodeID int, reason string) {
	if logger == nil {
		return
	}
	logger.Debug("node pruned",
		slog.Int("node_id", nodeID),
		slog.String("reason", reason),
	)
}

// LogEvaluationError logs a local evaluation failure.
func LogEvaluationError(logger *slog.Logger, nodeID int, err error) {
	if logger == nil {
		return
	}
	logger.Warn("node evaluation failed",
		slog.Int("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogExpansionError logs a failed successor generation.
func LogExpansionError(logger *slog.Logger, nodeID int, err error) {
	if logger == nil {
		return
	}
	logger.Warn("successor generation failed",
		slog.Int("node_id", nodeID),
		slog.String("error", err.Error()),
	)
}

// LogSolution logs a newly posted solution.
func LogSolution(logger *slog.Logger, pathKey string, score any, evalMs float64) {
	if logger == nil {
		return
	}
	logger.Info("solution found",
		slog.String("path", pathKey),
		slog.Any("score", score),
		slog.Float64("evaluation_ms", evalMs),
	)
}

// LogSampling logs the outcome of random completion sampling for one node.
func LogSampling(logger *slog.Logger, nodeID, samples, attempts, failures int) {
	if logger == nil {
		return
	}
	logger.Debug("completion sampling finished",
		slog.Int("node_id", nodeID),
		slog.Int("samples", samples),
		slog.Int("attempts", attempts),
		slog.Int("failures", failures),
	)
}

// TimedOperation measures the duration of an operation.
// The returned function reports elapsed milliseconds.
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
