package graphsearch

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"time"

	serrors "github.com/randalmurphal/graphsearch/pkg/graphsearch/errors"
)

// AlternativeEvaluator asks the primary evaluator first and falls back to
// the secondary when the primary prunes. Errors are not masked.
type AlternativeEvaluator[S, A any, V cmp.Ordered] struct {
	primary   NodeEvaluator[S, A, V]
	secondary NodeEvaluator[S, A, V]
}

// NewAlternative creates an AlternativeEvaluator.
func NewAlternative[S, A any, V cmp.Ordered](primary, secondary NodeEvaluator[S, A, V]) *AlternativeEvaluator[S, A, V] {
	return &AlternativeEvaluator[S, A, V]{primary: primary, secondary: secondary}
}

// Evaluate implements NodeEvaluator.
func (e *AlternativeEvaluator[S, A, V]) Evaluate(ctx Context[S, A, V], n *Node[S, A, V]) (V, bool, error) {
	v, ok, err := e.primary.Evaluate(ctx, n)
	if err != nil || ok {
		return v, ok, err
	}
	return e.secondary.Evaluate(ctx, n)
}

// Unwrap returns the primary evaluator.
func (e *AlternativeEvaluator[S, A, V]) Unwrap() NodeEvaluator[S, A, V] { return e.primary }

// Components returns the primary and secondary evaluators.
func (e *AlternativeEvaluator[S, A, V]) Components() []NodeEvaluator[S, A, V] {
	return []NodeEvaluator[S, A, V]{e.primary, e.secondary}
}

// TimedEvaluator bounds the time an inner evaluator may take. When the
// timeout expires the inner call is cancelled and abandoned, and the
// fallback scores the node instead. A nil fallback prunes.
type TimedEvaluator[S, A any, V cmp.Ordered] struct {
	inner    NodeEvaluator[S, A, V]
	timeout  time.Duration
	fallback NodeEvaluator[S, A, V]
}

// NewTimed creates a TimedEvaluator.
func NewTimed[S, A any, V cmp.Ordered](inner NodeEvaluator[S, A, V], timeout time.Duration, fallback NodeEvaluator[S, A, V]) *TimedEvaluator[S, A, V] {
	return &TimedEvaluator[S, A, V]{inner: inner, timeout: timeout, fallback: fallback}
}

// Timeout returns the per-node timeout.
func (e *TimedEvaluator[S, A, V]) Timeout() time.Duration { return e.timeout }

// Evaluate implements NodeEvaluator. A cancellation of the run is reported
// as such and never replaced by the fallback.
func (e *TimedEvaluator[S, A, V]) Evaluate(ctx Context[S, A, V], n *Node[S, A, V]) (V, bool, error) {
	if e.timeout <= 0 {
		return e.inner.Evaluate(ctx, n)
	}

	tctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := await(tctx, "evaluate", 0, func(c context.Context) (scored[V], error) {
		v, ok, err := e.inner.Evaluate(ctx.WithContext(c), n)
		return scored[V]{v, ok}, err
	})
	if err == nil {
		return res.v, res.ok, nil
	}
	if runErr := serrors.FromContext(ctx, "evaluate"); runErr != nil {
		var zero V
		return zero, false, runErr
	}
	if !errors.Is(tctx.Err(), context.DeadlineExceeded) {
		var zero V
		return zero, false, err
	}

	n.SetAnnotation(AnnotationTimedOut, true)
	ctx.Logger().Debug("node evaluation timed out, using fallback",
		slog.Int("node_id", int(n.ID())),
		slog.Duration("timeout", e.timeout),
	)
	if e.fallback == nil {
		var zero V
		return zero, false, nil
	}
	return e.fallback.Evaluate(ctx, n)
}

// Unwrap returns the inner evaluator.
func (e *TimedEvaluator[S, A, V]) Unwrap() NodeEvaluator[S, A, V] { return e.inner }

// Components returns the inner and fallback evaluators.
func (e *TimedEvaluator[S, A, V]) Components() []NodeEvaluator[S, A, V] {
	if e.fallback == nil {
		return []NodeEvaluator[S, A, V]{e.inner}
	}
	return []NodeEvaluator[S, A, V]{e.inner, e.fallback}
}

type scored[V any] struct {
	v  V
	ok bool
}

// skipSalt separates the coin stream from other per-path streams.
const skipSalt = 0x5f3759df

// SkippingEvaluator saves work by letting a node inherit its parent's
// score with probability coin. Roots are always evaluated. The coin is
// drawn from a stream derived from the run seed and the node's path, and
// the outcome is cached on the node, so repeated evaluations agree.
type SkippingEvaluator[S, A any, V cmp.Ordered] struct {
	inner NodeEvaluator[S, A, V]
	coin  float64
}

// NewSkipping creates a SkippingEvaluator. coin is clamped to [0, 1].
func NewSkipping[S, A any, V cmp.Ordered](inner NodeEvaluator[S, A, V], coin float64) *SkippingEvaluator[S, A, V] {
	return &SkippingEvaluator[S, A, V]{inner: inner, coin: min(max(coin, 0), 1)}
}

const annotationSkipResult = "skip_result"

// Evaluate implements NodeEvaluator.
func (e *SkippingEvaluator[S, A, V]) Evaluate(ctx Context[S, A, V], n *Node[S, A, V]) (V, bool, error) {
	if cached, ok := n.Annotation(annotationSkipResult); ok {
		r := cached.(scored[V])
		return r.v, r.ok, nil
	}

	v, ok, skipped, err := e.evaluate(ctx, n)
	if err != nil {
		return v, ok, err
	}
	n.SetAnnotation(AnnotationSkipped, skipped)
	n.SetAnnotation(annotationSkipResult, scored[V]{v, ok})
	return v, ok, nil
}

func (e *SkippingEvaluator[S, A, V]) evaluate(ctx Context[S, A, V], n *Node[S, A, V]) (V, bool, bool, error) {
	parent, hasParent := n.Parent()
	if n.Depth() == 0 || !hasParent {
		v, ok, err := e.inner.Evaluate(ctx, n)
		return v, ok, false, err
	}
	pv, labeled := parent.Label()
	if !labeled {
		v, ok, err := e.inner.Evaluate(ctx, n)
		return v, ok, false, err
	}

	rng := pathStream(ctx.Seed()^skipSalt, n.Key())
	if rng.Float64() < e.coin {
		return pv, true, true, nil
	}
	v, ok, err := e.inner.Evaluate(ctx, n)
	return v, ok, false, err
}

// Unwrap returns the inner evaluator.
func (e *SkippingEvaluator[S, A, V]) Unwrap() NodeEvaluator[S, A, V] { return e.inner }

// TimeLoggingEvaluator records how long the inner evaluator took on each
// node in the AnnotationEvalTime annotation.
type TimeLoggingEvaluator[S, A any, V cmp.Ordered] struct {
	inner NodeEvaluator[S, A, V]
}

// NewTimeLogging creates a TimeLoggingEvaluator.
func NewTimeLogging[S, A any, V cmp.Ordered](inner NodeEvaluator[S, A, V]) *TimeLoggingEvaluator[S, A, V] {
	return &TimeLoggingEvaluator[S, A, V]{inner: inner}
}

// Evaluate implements NodeEvaluator.
func (e *TimeLoggingEvaluator[S, A, V]) Evaluate(ctx Context[S, A, V], n *Node[S, A, V]) (V, bool, error) {
	start := time.Now()
	v, ok, err := e.inner.Evaluate(ctx, n)
	elapsed := time.Since(start)

	n.SetAnnotation(AnnotationEvalTime, elapsed)
	ctx.Logger().Debug("node evaluated",
		slog.Int("node_id", int(n.ID())),
		slog.Duration("elapsed", elapsed),
		slog.Bool("labeled", ok),
	)
	return v, ok, err
}

// Unwrap returns the inner evaluator.
func (e *TimeLoggingEvaluator[S, A, V]) Unwrap() NodeEvaluator[S, A, V] { return e.inner }
