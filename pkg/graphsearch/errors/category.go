// Package errors classifies failures raised during a search run.
//
// Failures fall into two groups:
//   - Local: one node or one path failed; prune it and keep searching
//   - Run-level: cancellation, timeout or a broken invariant ends the run
//
// Run-level failures always reach the caller. Local failures are recorded
// on the node that caused them and surface through events.
package errors

import (
	"context"
	"errors"
)

// Category represents how a failure affects the run.
type Category int

const (
	// CategoryLocal affects a single node or path. The search continues.
	CategoryLocal Category = iota

	// CategoryCancelled is cooperative cancellation requested by the caller.
	CategoryCancelled

	// CategoryTimeout is an expired deadline. Callers may fall back
	// differently than for a plain cancellation.
	CategoryTimeout

	// CategoryInvariant indicates a bug. It is never recovered from.
	CategoryInvariant
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryLocal:
		return "local"
	case CategoryCancelled:
		return "cancelled"
	case CategoryTimeout:
		return "timeout"
	case CategoryInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// Categorize determines how an error affects the run.
// Invariant violations take precedence over everything. Failed solution
// evaluations and successor generations stay local even when their cause
// is a deadline. Timeouts take precedence over cancellation, and anything
// unrecognised is local.
func Categorize(err error) Category {
	switch {
	case err == nil:
		return CategoryLocal
	case errors.Is(err, ErrInvariant):
		return CategoryInvariant
	case errors.Is(err, ErrEvaluationFailed), errors.Is(err, ErrSuccessorGeneration):
		return CategoryLocal
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return CategoryCancelled
	default:
		return CategoryLocal
	}
}

// IsLocal reports whether the failure only affects one node or path.
func IsLocal(err error) bool {
	return err != nil && Categorize(err) == CategoryLocal
}

// IsRunLevel reports whether the failure must end the run.
func IsRunLevel(err error) bool {
	return err != nil && Categorize(err) != CategoryLocal
}

// FromContext converts the state of ctx into a run-level error.
// It returns nil while ctx is still live.
func FromContext(ctx context.Context, op string) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	cause := context.Cause(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op, Cause: cause}
	}
	return &CancelledError{Op: op, Cause: cause}
}
