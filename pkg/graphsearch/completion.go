package graphsearch

import (
	"cmp"
	"errors"
	"math"
	"reflect"
	"time"

	serrors "github.com/randalmurphal/graphsearch/pkg/graphsearch/errors"
	"github.com/randalmurphal/graphsearch/pkg/graphsearch/observability"
)

// Defaults for CompletionConfig.
const (
	DefaultSampleCount           = 3
	DefaultMaxAttemptsMultiplier = 20
	DefaultCompletionScope       = "random-completion"
)

// UncertaintyFunc estimates how uncertain a prefix score is from the
// scores of its sampled completions.
type UncertaintyFunc[S any, V cmp.Ordered] func(prefix Path[S], scores []V) float64

// CompletionConfig configures a RandomCompletionEvaluator.
type CompletionConfig[S any, V cmp.Ordered] struct {
	// SampleCount is the number of completions scored per node.
	SampleCount int

	// MaxAttemptsMultiplier caps completion attempts at
	// SampleCount*MaxAttemptsMultiplier, counting failed evaluations.
	MaxAttemptsMultiplier int

	// PathCaching enables the prefix completion cache.
	PathCaching bool

	// AffectsFuture reports whether the last step of a path can change
	// the score of any solution through it. When it returns false the
	// parent's score is reused.
	AffectsFuture func(Path[S]) bool

	// Subsumes lets cached completions of other prefixes be reused.
	Subsumes SubsumptionFunc[S]

	// Uncertainty replaces the default sample variance.
	Uncertainty UncertaintyFunc[S, V]

	// PerSampleTimeout bounds each solution evaluator call.
	PerSampleTimeout time.Duration

	// MaxCompletionDepth bounds how many steps a completion may add.
	// Zero means unbounded.
	MaxCompletionDepth int

	// ReuseParentForOnlyChild reuses the parent's score for nodes
	// without siblings.
	ReuseParentForOnlyChild bool

	// Scope names the prefix cache. Evaluators with the same scope share
	// cached completions within a run.
	Scope string
}

func (c CompletionConfig[S, V]) withDefaults() CompletionConfig[S, V] {
	if c.SampleCount <= 0 {
		c.SampleCount = DefaultSampleCount
	}
	if c.MaxAttemptsMultiplier <= 0 {
		c.MaxAttemptsMultiplier = DefaultMaxAttemptsMultiplier
	}
	if c.Uncertainty == nil {
		c.Uncertainty = SampleVariance[S, V]
	}
	if c.Scope == "" {
		c.Scope = DefaultCompletionScope
	}
	return c
}

// RandomCompletionEvaluator scores a partial path by completing it to
// goal paths at random and evaluating those with a SolutionEvaluator.
// The score is the best sampled score. Every newly evaluated completion
// is posted as a solution.
type RandomCompletionEvaluator[S, A any, V cmp.Ordered] struct {
	solutions SolutionEvaluator[S, V]
	cfg       CompletionConfig[S, V]
}

// NewRandomCompletion creates a RandomCompletionEvaluator.
//
// Example:
//
//	eval := graphsearch.NewRandomCompletion[string, string](scorer,
//	    graphsearch.CompletionConfig[string, float64]{SampleCount: 5, PathCaching: true})
func NewRandomCompletion[S, A any, V cmp.Ordered](solutions SolutionEvaluator[S, V], cfg CompletionConfig[S, V]) *RandomCompletionEvaluator[S, A, V] {
	return &RandomCompletionEvaluator[S, A, V]{solutions: solutions, cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (e *RandomCompletionEvaluator[S, A, V]) Config() CompletionConfig[S, V] { return e.cfg }

// ReportsSolutions implements SolutionReporting.
func (e *RandomCompletionEvaluator[S, A, V]) ReportsSolutions() bool { return true }

// RequiresGraph implements GraphDependent.
func (e *RandomCompletionEvaluator[S, A, V]) RequiresGraph() bool { return true }

// AnnotatesUncertainty implements UncertaintyAnnotating.
func (e *RandomCompletionEvaluator[S, A, V]) AnnotatesUncertainty() bool { return true }

// Evaluate implements NodeEvaluator.
func (e *RandomCompletionEvaluator[S, A, V]) Evaluate(ctx Context[S, A, V], n *Node[S, A, V]) (V, bool, error) {
	var zero V
	if n.IsGoal() {
		v, err := ctx.Solutions().Score(ctx, n.Path(), n.Key(), e.solutions, e.cfg.PerSampleTimeout)
		if err != nil {
			if serrors.IsLocal(err) {
				n.SetAnnotation(AnnotationError, err.Error())
			}
			return zero, false, err
		}
		return v, true, nil
	}

	if v, ok := e.inherited(n); ok {
		n.SetAnnotation(AnnotationInherited, true)
		return v, true, nil
	}

	prefix, key := n.Path(), n.Key()
	if !e.cfg.PathCaching {
		c, err := e.sample(ctx, n, prefix, key)
		return e.resolve(ctx, n, c, err)
	}

	cache := ctx.Completions().Scope(e.cfg.Scope)
	if c, ok := cache.Lookup(prefix, key, e.cfg.Subsumes); ok {
		n.SetAnnotation(AnnotationCached, true)
		return e.resolve(ctx, n, c, nil)
	}

	c, err := cache.do(ctx, key, func() (Completion[S], error) {
		if c, ok := cache.Get(key); ok {
			return c, nil
		}
		c, err := e.sample(ctx, n, prefix, key)
		if err != nil {
			return c, err
		}
		if _, err := cache.Put(c); err != nil {
			return c, err
		}
		return c, nil
	})
	return e.resolve(ctx, n, c, err)
}

// inherited returns the parent's score when sampling cannot change it.
func (e *RandomCompletionEvaluator[S, A, V]) inherited(n *Node[S, A, V]) (V, bool) {
	var zero V
	parent, ok := n.Parent()
	if !ok {
		return zero, false
	}
	pv, labeled := parent.Label()
	if !labeled {
		return zero, false
	}
	if e.cfg.AffectsFuture != nil && !e.cfg.AffectsFuture(n.Path()) {
		return pv, true
	}
	if e.cfg.ReuseParentForOnlyChild && n.Siblings() == 1 {
		return pv, true
	}
	return zero, false
}

// sampleFailure carries the outcome of a sampling round that produced no
// usable completion although some completions were found.
type sampleFailure struct {
	attempts int
	err      error
}

func (f *sampleFailure) Error() string { return f.err.Error() }
func (f *sampleFailure) Unwrap() error { return f.err }

// interrupted carries the partial outcome of a sampling round that was cut
// short by cancellation or a deadline.
type interrupted[S any] struct {
	partial Completion[S]
	cause   error
}

func (i *interrupted[S]) Error() string { return i.cause.Error() }
func (i *interrupted[S]) Unwrap() error { return i.cause }

// sample draws up to SampleCount distinct completions of prefix.
func (e *RandomCompletionEvaluator[S, A, V]) sample(ctx Context[S, A, V], n *Node[S, A, V], prefix Path[S], key PathKey) (Completion[S], error) {
	comp := newCompleter(ctx.Graph(), ctx.StateKey(), pathStream(ctx.Seed(), key), e.cfg.MaxCompletionDepth)
	maxAttempts := e.cfg.SampleCount * e.cfg.MaxAttemptsMultiplier

	out := Completion[S]{PrefixPath: prefix, Prefix: key}
	var (
		best     V
		scores   []V
		failures int
		lastErr  error
	)
	finish := func() Completion[S] {
		out.Samples = len(scores)
		if out.Found {
			out.Uncertainty = e.cfg.Uncertainty(prefix, scores)
		}
		return out
	}

	for out.Attempts < maxAttempts && len(scores) < e.cfg.SampleCount {
		path, pathKey, ok, err := comp.next(ctx, prefix, key)
		if err != nil {
			return finish(), &interrupted[S]{partial: finish(), cause: err}
		}
		if !ok {
			break
		}
		out.Attempts++

		v, err := ctx.Solutions().Score(ctx, path, pathKey, e.solutions, e.cfg.PerSampleTimeout)
		if err != nil {
			if serrors.Categorize(err) == serrors.CategoryInvariant {
				return finish(), err
			}
			if serrors.IsRunLevel(err) {
				return finish(), &interrupted[S]{partial: finish(), cause: err}
			}
			failures++
			lastErr = err
			continue
		}

		scores = append(scores, v)
		if !out.Found || v < best {
			best = v
			out.Found = true
			out.Path = path
			out.Key = pathKey
		}
	}

	observability.LogSampling(ctx.Logger(), int(n.ID()), len(scores), out.Attempts, failures+comp.failures)
	if !out.Found && failures > 0 {
		return finish(), &sampleFailure{
			attempts: out.Attempts,
			err:      &serrors.EvaluationError{Path: key.String(), Attempts: out.Attempts, Err: lastErr},
		}
	}
	return finish(), nil
}

// resolve turns a completion into the node's label.
func (e *RandomCompletionEvaluator[S, A, V]) resolve(ctx Context[S, A, V], n *Node[S, A, V], c Completion[S], err error) (V, bool, error) {
	var zero V
	if err != nil {
		var cut *interrupted[S]
		if errors.As(err, &cut) {
			c = cut.partial
			if !c.Found {
				return zero, false, cut.cause
			}
			// Keep the samples gathered before the interruption.
		} else {
			var failed *sampleFailure
			if errors.As(err, &failed) {
				n.SetAnnotation(AnnotationAttempts, failed.attempts)
				n.SetAnnotation(AnnotationError, failed.err.Error())
				return zero, false, failed.err
			}
			return zero, false, err
		}
	}

	n.SetAnnotation(AnnotationSamples, c.Samples)
	n.SetAnnotation(AnnotationAttempts, c.Attempts)
	if !c.Found {
		return zero, false, nil
	}
	n.SetAnnotation(AnnotationUncertainty, c.Uncertainty)

	v, ok := ctx.Solutions().Cached(c.Key)
	if !ok {
		return zero, false, &serrors.InvariantError{
			Invariant: "completion-has-score",
			Detail:    "cached completion " + c.Key.String() + " has no score",
		}
	}
	return v, true, nil
}

// SampleVariance is the default UncertaintyFunc: the unbiased sample
// variance of the scores. It is zero for fewer than two samples and for
// non-numeric scores.
func SampleVariance[S any, V cmp.Ordered](_ Path[S], scores []V) float64 {
	if len(scores) < 2 {
		return 0
	}
	values := make([]float64, 0, len(scores))
	for _, s := range scores {
		f, ok := toFloat(s)
		if !ok {
			return 0
		}
		values = append(values, f)
	}

	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return sq / float64(len(values)-1)
}

func toFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f, !math.IsNaN(f)
	default:
		return 0, false
	}
}
