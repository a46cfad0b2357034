package graphsearch

import "cmp"

// NodeEvaluator scores nodes. Lower scores are better.
//
// Evaluate returns ok=false to prune the node: it never enters OPEN. An
// error is local to the node unless it is a cancellation, a timeout or an
// invariant violation (see the errors package), which end the run.
// Implementations must poll ctx and return promptly once it is done.
type NodeEvaluator[S, A any, V cmp.Ordered] interface {
	Evaluate(ctx Context[S, A, V], n *Node[S, A, V]) (score V, ok bool, err error)
}

// EvaluatorFunc adapts a function to NodeEvaluator.
type EvaluatorFunc[S, A any, V cmp.Ordered] func(ctx Context[S, A, V], n *Node[S, A, V]) (V, bool, error)

// Evaluate implements NodeEvaluator.
func (f EvaluatorFunc[S, A, V]) Evaluate(ctx Context[S, A, V], n *Node[S, A, V]) (V, bool, error) {
	return f(ctx, n)
}

// Constant returns an evaluator that gives every node the same score.
// Best-first search with it degenerates to breadth-first order.
func Constant[S, A any, V cmp.Ordered](score V) NodeEvaluator[S, A, V] {
	return EvaluatorFunc[S, A, V](func(Context[S, A, V], *Node[S, A, V]) (V, bool, error) {
		return score, true, nil
	})
}

// Prune returns an evaluator that prunes every node.
func Prune[S, A any, V cmp.Ordered]() NodeEvaluator[S, A, V] {
	return EvaluatorFunc[S, A, V](func(Context[S, A, V], *Node[S, A, V]) (V, bool, error) {
		var zero V
		return zero, false, nil
	})
}

// Decorator is implemented by evaluators that wrap a single inner
// evaluator.
type Decorator[S, A any, V cmp.Ordered] interface {
	Unwrap() NodeEvaluator[S, A, V]
}

// Composite is implemented by evaluators that combine several evaluators.
type Composite[S, A any, V cmp.Ordered] interface {
	Components() []NodeEvaluator[S, A, V]
}

// SolutionReporting is implemented by evaluators that post solutions as a
// side effect of evaluating nodes.
type SolutionReporting interface {
	ReportsSolutions() bool
}

// GraphDependent is implemented by evaluators that call into the graph.
type GraphDependent interface {
	RequiresGraph() bool
}

// UncertaintyAnnotating is implemented by evaluators that attach an
// AnnotationUncertainty to the nodes they score.
type UncertaintyAnnotating interface {
	AnnotatesUncertainty() bool
}

// Unwrap returns the evaluator wrapped by e, if e is a Decorator.
func Unwrap[S, A any, V cmp.Ordered](e NodeEvaluator[S, A, V]) (NodeEvaluator[S, A, V], bool) {
	d, ok := e.(Decorator[S, A, V])
	if !ok {
		return nil, false
	}
	return d.Unwrap(), true
}

// Innermost follows Unwrap until it reaches an evaluator that wraps
// nothing.
func Innermost[S, A any, V cmp.Ordered](e NodeEvaluator[S, A, V]) NodeEvaluator[S, A, V] {
	for {
		inner, ok := Unwrap(e)
		if !ok || inner == nil {
			return e
		}
		e = inner
	}
}

// Walk visits e and everything it wraps, depth first, until fn returns
// false.
func Walk[S, A any, V cmp.Ordered](e NodeEvaluator[S, A, V], fn func(NodeEvaluator[S, A, V]) bool) {
	walk(e, fn)
}

func walk[S, A any, V cmp.Ordered](e NodeEvaluator[S, A, V], fn func(NodeEvaluator[S, A, V]) bool) bool {
	if e == nil {
		return true
	}
	if !fn(e) {
		return false
	}
	if c, ok := e.(Composite[S, A, V]); ok {
		for _, part := range c.Components() {
			if !walk(part, fn) {
				return false
			}
		}
		return true
	}
	if inner, ok := Unwrap(e); ok {
		return walk(inner, fn)
	}
	return true
}

// Find returns the first evaluator in the chain of e implementing T.
func Find[T any, S, A any, V cmp.Ordered](e NodeEvaluator[S, A, V]) (T, bool) {
	var found T
	var ok bool
	Walk(e, func(cur NodeEvaluator[S, A, V]) bool {
		found, ok = cur.(T)
		return !ok
	})
	return found, ok
}

// ReportsSolutions reports whether any evaluator in the chain of e posts
// solutions.
func ReportsSolutions[S, A any, V cmp.Ordered](e NodeEvaluator[S, A, V]) bool {
	reports := false
	Walk(e, func(cur NodeEvaluator[S, A, V]) bool {
		if r, ok := cur.(SolutionReporting); ok && r.ReportsSolutions() {
			reports = true
		}
		return !reports
	})
	return reports
}

// RequiresGraph reports whether any evaluator in the chain of e needs the
// graph.
func RequiresGraph[S, A any, V cmp.Ordered](e NodeEvaluator[S, A, V]) bool {
	requires := false
	Walk(e, func(cur NodeEvaluator[S, A, V]) bool {
		if g, ok := cur.(GraphDependent); ok && g.RequiresGraph() {
			requires = true
		}
		return !requires
	})
	return requires
}

// AnnotatesUncertainty reports whether any evaluator in the chain of e
// annotates nodes with an uncertainty estimate.
func AnnotatesUncertainty[S, A any, V cmp.Ordered](e NodeEvaluator[S, A, V]) bool {
	annotates := false
	Walk(e, func(cur NodeEvaluator[S, A, V]) bool {
		if u, ok := cur.(UncertaintyAnnotating); ok && u.AnnotatesUncertainty() {
			annotates = true
		}
		return !annotates
	})
	return annotates
}
