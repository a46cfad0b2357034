package graphsearch

import (
	"context"
	"fmt"
)

// Successor is one outgoing edge produced by successor generation.
type Successor[S, A any] struct {
	Action A
	State  S
}

// GraphGenerator supplies the implicit OR-graph a search explores.
//
// Successors must be deterministic for a fixed state within one run. An
// empty successor list marks a dead end; it never makes a state a goal.
// Roots and Successors should return promptly once ctx is done.
type GraphGenerator[S, A any] interface {
	Roots(ctx context.Context) ([]S, error)
	Successors(ctx context.Context, state S) ([]Successor[S, A], error)
	IsGoal(state S) bool
}

// GraphFuncs adapts plain functions to GraphGenerator.
//
// Example:
//
//	graph := graphsearch.GraphFuncs[string, string]{
//	    RootsFunc:      func(context.Context) ([]string, error) { return []string{""}, nil },
//	    SuccessorsFunc: expand,
//	    IsGoalFunc:     func(s string) bool { return len(s) == 3 },
//	}
type GraphFuncs[S, A any] struct {
	RootsFunc      func(ctx context.Context) ([]S, error)
	SuccessorsFunc func(ctx context.Context, state S) ([]Successor[S, A], error)
	IsGoalFunc     func(state S) bool
}

var _ GraphGenerator[int, int] = GraphFuncs[int, int]{}

// Roots implements GraphGenerator.
func (g GraphFuncs[S, A]) Roots(ctx context.Context) ([]S, error) {
	if g.RootsFunc == nil {
		return nil, nil
	}
	return g.RootsFunc(ctx)
}

// Successors implements GraphGenerator.
func (g GraphFuncs[S, A]) Successors(ctx context.Context, state S) ([]Successor[S, A], error) {
	if g.SuccessorsFunc == nil {
		return nil, nil
	}
	return g.SuccessorsFunc(ctx, state)
}

// IsGoal implements GraphGenerator.
func (g GraphFuncs[S, A]) IsGoal(state S) bool {
	return g.IsGoalFunc != nil && g.IsGoalFunc(state)
}

// StateKeyFunc maps a state to its structural identity. Two states with the
// same key are treated as equal when comparing paths, so caches and the
// posted-solution set are keyed on it.
type StateKeyFunc[S any] func(S) string

// Keyer is implemented by states that know their own identity.
type Keyer interface {
	Key() string
}

// DefaultStateKey uses Key() when the state implements Keyer, then
// fmt.Stringer, then the Go-syntax representation of the value.
func DefaultStateKey[S any](state S) string {
	switch v := any(state).(type) {
	case Keyer:
		return v.Key()
	case fmt.Stringer:
		return v.String()
	case string:
		return v
	}
	return fmt.Sprintf("%#v", state)
}
