package graphsearch

import (
	"errors"
	"fmt"
)

// Sentinel errors for constructing and driving a search.
var (
	// ErrNilGraph indicates New was called without a GraphGenerator.
	ErrNilGraph = errors.New("graph generator cannot be nil")

	// ErrNilEvaluator indicates New was called without a NodeEvaluator.
	ErrNilEvaluator = errors.New("node evaluator cannot be nil")

	// ErrAlreadyInitialized indicates Init was called twice.
	ErrAlreadyInitialized = errors.New("search already initialized")

	// ErrNotActive indicates Step was called before Init or after the run ended.
	ErrNotActive = errors.New("search is not active")

	// ErrExhausted indicates NextSolution found no further solution.
	ErrExhausted = errors.New("search exhausted")

	// ErrStateKeyType indicates WithStateKey was given a function for
	// another state type.
	ErrStateKeyType = errors.New("state key function does not match state type")
)

// NodeError wraps a local failure with the node it happened at.
type NodeError struct {
	// NodeID is the node whose evaluation or expansion failed.
	NodeID NodeID
	// Op is the operation that failed ("evaluate", "expand").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %d: %s: %v", e.NodeID, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised by user code: the graph, an
// evaluator or a solution evaluator. It is a local failure.
type PanicError struct {
	// Op names the callback that panicked.
	Op string
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Op, e.Value)
}
