package graphsearch

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	serrors "github.com/randalmurphal/graphsearch/pkg/graphsearch/errors"
	"github.com/randalmurphal/graphsearch/pkg/graphsearch/event"
	"github.com/randalmurphal/graphsearch/pkg/graphsearch/observability"
	"github.com/randalmurphal/graphsearch/pkg/graphsearch/registry"
)

// SolutionEvaluator scores complete solution paths. It is typically
// expensive and may fail; it must return promptly once ctx is done.
type SolutionEvaluator[S any, V cmp.Ordered] interface {
	EvaluateSolution(ctx context.Context, path Path[S]) (V, error)
}

// SolutionEvaluatorFunc adapts a function to SolutionEvaluator.
type SolutionEvaluatorFunc[S any, V cmp.Ordered] func(ctx context.Context, path Path[S]) (V, error)

// EvaluateSolution implements SolutionEvaluator.
func (f SolutionEvaluatorFunc[S, V]) EvaluateSolution(ctx context.Context, path Path[S]) (V, error) {
	return f(ctx, path)
}

// Solution annotation keys.
const (
	SolutionAnnotationEvalTime       = "f_time"
	SolutionAnnotationTimeToSolution = "time_to_solution"
	SolutionAnnotationNodesEvaluated = "nodes_evaluated"
)

// SolutionRecord is a posted solution.
type SolutionRecord[S any, V cmp.Ordered] struct {
	Path  Path[S] `json:"path"`
	Key   PathKey `json:"key"`
	Score V       `json:"score"`

	// EvaluationTime is how long the solution evaluator took. Zero for
	// goal nodes reached by the driver with a heuristic label.
	EvaluationTime time.Duration `json:"evaluation_time"`

	// TimeToSolution is the offset from the first solution evaluation of
	// the run.
	TimeToSolution time.Duration `json:"time_to_solution"`

	FoundAt     time.Time      `json:"found_at"`
	Annotations map[string]any `json:"annotations,omitempty"`
}

// EvaluationTimeMs returns EvaluationTime in whole milliseconds.
func (r SolutionRecord[S, V]) EvaluationTimeMs() uint64 {
	return uint64(r.EvaluationTime.Milliseconds())
}

// SolutionRegistry holds the solution state of one run: the full-path
// score cache, the blacklist of paths whose evaluation failed, and the
// set of posted solutions. It is safe for concurrent use.
type SolutionRegistry[S any, V cmp.Ordered] struct {
	runID   string
	bus     event.Bus
	logger  *slog.Logger
	metrics observability.MetricsRecorder

	scores *registry.Registry[PathKey, V]
	failed *registry.Registry[PathKey, error]
	posted *registry.Registry[PathKey, SolutionRecord[S, V]]
	group  singleflight.Group

	startOnce sync.Once
	start     atomic.Pointer[time.Time]
	evaluated atomic.Int64

	postMu sync.Mutex
}

func newSolutionRegistry[S any, V cmp.Ordered](runID string, bus event.Bus, logger *slog.Logger, metrics observability.MetricsRecorder) *SolutionRegistry[S, V] {
	return &SolutionRegistry[S, V]{
		runID:   runID,
		bus:     bus,
		logger:  logger,
		metrics: metrics,
		scores:  registry.New[PathKey, V](),
		failed:  registry.New[PathKey, error](),
		posted:  registry.New[PathKey, SolutionRecord[S, V]](),
	}
}

// Score returns the score of a complete path, calling eval at most once
// per distinct key for the whole run. A newly scored path is posted.
//
// A failed evaluation blacklists the path: this and every later call for
// it return an *errors.EvaluationError. A positive timeout bounds the
// evaluator call; expiry counts as a failed evaluation. Cancellation of
// ctx returns a run-level error and blacklists nothing.
func (r *SolutionRegistry[S, V]) Score(ctx context.Context, path Path[S], key PathKey, eval SolutionEvaluator[S, V], timeout time.Duration) (V, error) {
	var zero V
	if v, ok := r.scores.Get(key); ok {
		return v, nil
	}
	if err := r.blacklisted(key); err != nil {
		return zero, err
	}

	return flight(ctx, &r.group, string(key), "evaluate solution", func() (V, error) {
		if v, ok := r.scores.Get(key); ok {
			return v, nil
		}
		if err := r.blacklisted(key); err != nil {
			return zero, err
		}
		return r.evaluate(ctx, path, key, eval, timeout)
	})
}

func (r *SolutionRegistry[S, V]) evaluate(ctx context.Context, path Path[S], key PathKey, eval SolutionEvaluator[S, V], timeout time.Duration) (V, error) {
	var zero V
	r.Start()

	evalCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		evalCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	started := time.Now()
	v, err := await(evalCtx, "evaluate solution", 0, func(c context.Context) (V, error) {
		return eval.EvaluateSolution(c, path)
	})
	elapsed := time.Since(started)
	r.metrics.RecordSolutionEvaluation(ctx, elapsed, err)

	if err != nil {
		if runErr := serrors.FromContext(ctx, "evaluate solution"); runErr != nil {
			return zero, runErr
		}
		if evalCtx.Err() != nil {
			err = fmt.Errorf("timed out after %s: %w", timeout, err)
		}
		r.failed.PutIfAbsent(key, err)
		return zero, &serrors.EvaluationError{Path: key.String(), Attempts: 1, Err: err}
	}

	if !r.scores.PutIfAbsent(key, v) {
		cur, _ := r.scores.Get(key)
		return cur, nil
	}

	// The driver may already have posted the path with its node label.
	rec := r.newRecord(path, key, v, elapsed)
	if _, err := r.offer(ctx, rec, false); err != nil {
		return zero, err
	}
	return v, nil
}

func (r *SolutionRegistry[S, V]) blacklisted(key PathKey) error {
	cause, ok := r.failed.Get(key)
	if !ok {
		return nil
	}
	return &serrors.EvaluationError{
		Path: key.String(),
		Err:  fmt.Errorf("%w: %w", serrors.ErrBlacklisted, cause),
	}
}

func (r *SolutionRegistry[S, V]) newRecord(path Path[S], key PathKey, score V, evalTime time.Duration) SolutionRecord[S, V] {
	now := time.Now()
	var sinceStart time.Duration
	if start := r.start.Load(); start != nil {
		sinceStart = now.Sub(*start)
	}
	return SolutionRecord[S, V]{
		Path:           path,
		Key:            key,
		Score:          score,
		EvaluationTime: evalTime,
		TimeToSolution: sinceStart,
		FoundAt:        now,
		Annotations: map[string]any{
			SolutionAnnotationEvalTime:       evalTime.Milliseconds(),
			SolutionAnnotationTimeToSolution: sinceStart.Milliseconds(),
			SolutionAnnotationNodesEvaluated: r.evaluated.Load(),
		},
	}
}

// Post announces a solution. Posting a path twice is an invariant
// violation. The record's score is not cached: Cached only returns
// scores computed by a SolutionEvaluator.
func (r *SolutionRegistry[S, V]) Post(ctx context.Context, rec SolutionRecord[S, V]) error {
	_, err := r.offer(ctx, rec, true)
	return err
}

// Offer posts a solution unless its path was already posted, and
// reports whether it did.
func (r *SolutionRegistry[S, V]) Offer(ctx context.Context, rec SolutionRecord[S, V]) (bool, error) {
	return r.offer(ctx, rec, false)
}

func (r *SolutionRegistry[S, V]) offer(ctx context.Context, rec SolutionRecord[S, V], strict bool) (bool, error) {
	r.postMu.Lock()
	defer r.postMu.Unlock()

	if rec.FoundAt.IsZero() {
		rec.FoundAt = time.Now()
	}
	if !r.posted.PutIfAbsent(rec.Key, rec) {
		if !strict {
			return false, nil
		}
		return false, &serrors.InvariantError{
			Invariant: "unique-solution-post",
			Detail:    fmt.Sprintf("path %q posted twice", rec.Key.String()),
		}
	}

	// Discovered solutions are announced even while the run is stopping.
	pubCtx := context.WithoutCancel(ctx)
	if err := publish(pubCtx, r.bus, r.runID, EventSolutionFound, SolutionFound[S, V]{Record: rec}); err != nil {
		r.logger.Warn("failed to publish solution", slog.String("error", err.Error()))
	}
	r.metrics.RecordSolution(pubCtx)
	observability.LogSolution(r.logger, rec.Key.String(), rec.Score, float64(rec.EvaluationTime.Microseconds())/1000)
	return true, nil
}

// Start marks the beginning of time-to-solution measurement. Only the
// first call has an effect.
func (r *SolutionRegistry[S, V]) Start() {
	r.startOnce.Do(func() {
		now := time.Now()
		r.start.Store(&now)
	})
}

// Cached returns the score of a path scored earlier in the run.
func (r *SolutionRegistry[S, V]) Cached(key PathKey) (V, bool) {
	return r.scores.Get(key)
}

// Blacklisted reports whether evaluating the path failed earlier.
func (r *SolutionRegistry[S, V]) Blacklisted(key PathKey) bool {
	return r.failed.Has(key)
}

// IsPosted reports whether the path was posted as a solution.
func (r *SolutionRegistry[S, V]) IsPosted(key PathKey) bool {
	return r.posted.Has(key)
}

// Records returns the posted solutions in discovery order.
func (r *SolutionRegistry[S, V]) Records() []SolutionRecord[S, V] {
	return r.posted.Values()
}

// Len returns the number of posted solutions.
func (r *SolutionRegistry[S, V]) Len() int {
	return r.posted.Len()
}

// Best returns the posted solution with the lowest score. Ties go to
// the earliest discovered.
func (r *SolutionRegistry[S, V]) Best() (SolutionRecord[S, V], bool) {
	var best SolutionRecord[S, V]
	found := false
	r.posted.Range(func(_ PathKey, rec SolutionRecord[S, V]) bool {
		if !found || rec.Score < best.Score {
			best = rec
			found = true
		}
		return true
	})
	return best, found
}

func (r *SolutionRegistry[S, V]) noteEvaluation() {
	r.evaluated.Add(1)
}
