package errors

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers can
// use errors.Is without knowing the concrete type.
var (
	// ErrEvaluationFailed means the solution evaluator returned an error.
	ErrEvaluationFailed = errors.New("evaluation failed")

	// ErrBlacklisted means the path failed before and is not retried.
	ErrBlacklisted = errors.New("path blacklisted")

	// ErrSuccessorGeneration means the graph could not expand a node.
	ErrSuccessorGeneration = errors.New("successor generation failed")

	// ErrCancelled means the run was cancelled by the caller.
	ErrCancelled = errors.New("search cancelled")

	// ErrTimeout means a deadline expired.
	ErrTimeout = errors.New("search timed out")

	// ErrInvariant means an internal invariant was violated.
	ErrInvariant = errors.New("invariant violation")
)

// EvaluationError records a failed solution evaluation.
// The path it names is blacklisted for the rest of the run.
type EvaluationError struct {
	Path     string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("evaluate %q: %d attempts failed: %v", e.Path, e.Attempts, e.Err)
	}
	return fmt.Sprintf("evaluate %q: %v", e.Path, e.Err)
}

// Unwrap returns ErrEvaluationFailed and the underlying error.
func (e *EvaluationError) Unwrap() []error {
	return []error{ErrEvaluationFailed, e.Err}
}

// ExpansionError records a failed successor generation.
type ExpansionError struct {
	NodeID int
	Err    error
}

// Error implements the error interface.
func (e *ExpansionError) Error() string {
	return fmt.Sprintf("expand node %d: %v", e.NodeID, e.Err)
}

// Unwrap returns ErrSuccessorGeneration and the underlying error.
func (e *ExpansionError) Unwrap() []error {
	return []error{ErrSuccessorGeneration, e.Err}
}

// CancelledError reports cooperative cancellation.
type CancelledError struct {
	Op    string
	Cause error
}

// Error implements the error interface.
func (e *CancelledError) Error() string {
	if e.Cause != nil && !errors.Is(e.Cause, ErrCancelled) {
		return fmt.Sprintf("%s: cancelled: %v", e.Op, e.Cause)
	}
	return e.Op + ": cancelled"
}

// Unwrap returns ErrCancelled and the cancellation cause.
func (e *CancelledError) Unwrap() []error {
	return []error{ErrCancelled, e.Cause}
}

// TimeoutError reports an expired deadline.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
	Cause   error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("%s: timed out after %s", e.Op, e.Timeout)
	}
	return e.Op + ": timed out"
}

// Unwrap returns ErrTimeout and the deadline cause.
func (e *TimeoutError) Unwrap() []error {
	return []error{ErrTimeout, e.Cause}
}

// InvariantError reports a broken internal invariant, such as a solution
// posted twice.
type InvariantError struct {
	Invariant string
	Detail    string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant %q violated: %s", e.Invariant, e.Detail)
}

// Unwrap returns ErrInvariant.
func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}
