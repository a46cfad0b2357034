package graphsearch

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	serrors "github.com/randalmurphal/graphsearch/pkg/graphsearch/errors"
	"github.com/randalmurphal/graphsearch/pkg/graphsearch/event"
	"github.com/randalmurphal/graphsearch/pkg/graphsearch/observability"
)

// State is the lifecycle state of a Search.
type State int

// Search states. A run moves from Created to Active on Init, and from
// Active to Terminated when the frontier is exhausted or to Failed when
// it is cancelled, times out or hits an invariant violation.
const (
	StateCreated State = iota
	StateActive
	StateTerminated
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stats are the counters of a run.
type Stats struct {
	Expansions  int `json:"expansions"`
	Evaluations int `json:"evaluations"`
	Pruned      int `json:"pruned"`
	Failures    int `json:"failures"`
	DeadEnds    int `json:"dead_ends"`
	Solutions   int `json:"solutions"`
	Nodes       int `json:"nodes"`
	Open        int `json:"open"`
}

// Result summarizes a run.
type Result[S any, V cmp.Ordered] struct {
	RunID     string
	State     State
	Solutions []SolutionRecord[S, V]
	// Best is the lowest-scored solution, nil when none was found.
	Best     *SolutionRecord[S, V]
	Stats    Stats
	Duration time.Duration
	Err      error
}

// Search is an anytime best-first search over an implicit OR-graph.
//
// The driver loop is single-threaded: Init, Step, Run and NextSolution
// must not be called concurrently. State, Stats and Solutions may be read
// from any goroutine.
type Search[S, A any, V cmp.Ordered] struct {
	graph GraphGenerator[S, A]
	eval  NodeEvaluator[S, A, V]
	cfg   settings
	keyFn StateKeyFunc[S]
	runID string
	bus   event.Bus

	perNodeTimeout time.Duration
	fallback       NodeEvaluator[S, A, V]

	tree *Tree[S, A, V]
	open Frontier[S, A, V]
	rc   *runContext[S, A, V]

	// expansions maps an expanded node to the ID of its NodeExpanded
	// event. Only the driver goroutine touches it.
	expansions map[NodeID]string

	started  time.Time
	deadline time.Time
	runSpan  trace.Span
	cursor   int

	mu    sync.RWMutex
	state State
	stats Stats
	err   error
	ended time.Time
}

// New creates a search over graph scored by eval.
//
// Example:
//
//	search, err := graphsearch.New(graph, evaluator,
//	    graphsearch.WithSeed(42),
//	    graphsearch.WithTimeout(30*time.Second))
//	if err != nil {
//	    return err
//	}
//	result, err := search.Run(ctx)
func New[S, A any, V cmp.Ordered](graph GraphGenerator[S, A], eval NodeEvaluator[S, A, V], opts ...Option) (*Search[S, A, V], error) {
	if graph == nil {
		return nil, ErrNilGraph
	}
	if eval == nil {
		return nil, ErrNilEvaluator
	}

	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.opts.Validate(); err != nil {
		return nil, err
	}

	keyFn := StateKeyFunc[S](DefaultStateKey[S])
	if cfg.keyFn != nil {
		fn, ok := cfg.keyFn.(StateKeyFunc[S])
		if !ok {
			return nil, fmt.Errorf("%w: got %T", ErrStateKeyType, cfg.keyFn)
		}
		keyFn = fn
	}
	if cfg.runID == "" {
		cfg.runID = uuid.New().String()
	}
	if cfg.bus == nil {
		logger := cfg.logger
		cfg.bus = event.NewBus(event.BusConfig{
			OnError: func(evt event.Event, subscriberID string, err error) {
				logger.Warn("event handler failed",
					slog.String("run_id", evt.RunID()),
					slog.String("type", evt.Type()),
					slog.String("subscriber", subscriberID),
					slog.String("error", err.Error()),
				)
			},
		})
	}

	return &Search[S, A, V]{
		graph:          graph,
		eval:           eval,
		cfg:            cfg,
		keyFn:          keyFn,
		runID:          cfg.runID,
		bus:            cfg.bus,
		perNodeTimeout: cfg.opts.PerNodeTimeout,
		tree:           NewTree[S, A, V](keyFn),
		expansions:     make(map[NodeID]string),
	}, nil
}

// SetPerNodeTimeout bounds every node evaluation by d. A node whose
// evaluation times out is scored by fallback instead, or pruned when
// fallback is nil. It must be called before Init.
func (s *Search[S, A, V]) SetPerNodeTimeout(d time.Duration, fallback NodeEvaluator[S, A, V]) error {
	if s.State() != StateCreated {
		return ErrAlreadyInitialized
	}
	s.perNodeTimeout = d
	s.fallback = fallback
	return nil
}

// RunID returns the run identifier.
func (s *Search[S, A, V]) RunID() string { return s.runID }

// Bus returns the bus events are published to.
func (s *Search[S, A, V]) Bus() event.Bus { return s.bus }

// Tree returns the search tree.
func (s *Search[S, A, V]) Tree() *Tree[S, A, V] { return s.tree }

// Evaluator returns the effective evaluator, including the per-node
// timeout wrapper once the run is initialized.
func (s *Search[S, A, V]) Evaluator() NodeEvaluator[S, A, V] { return s.eval }

// State returns the lifecycle state.
func (s *Search[S, A, V]) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err returns the error that ended the run, if any.
func (s *Search[S, A, V]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Stats returns a snapshot of the run counters.
func (s *Search[S, A, V]) Stats() Stats {
	s.mu.RLock()
	st, rc := s.stats, s.rc
	s.mu.RUnlock()
	st.Nodes = s.tree.Len()
	if rc != nil {
		st.Solutions = rc.solutions.Len()
	}
	return st
}

// Open returns the number of nodes waiting for expansion.
func (s *Search[S, A, V]) Open() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats.Open
}

// Solutions returns the posted solutions in discovery order.
func (s *Search[S, A, V]) Solutions() []SolutionRecord[S, V] {
	rc := s.run()
	if rc == nil {
		return nil
	}
	return rc.solutions.Records()
}

// run returns the run context, nil before Init. The driver goroutine
// may read s.rc directly; other readers go through run.
func (s *Search[S, A, V]) run() *runContext[S, A, V] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rc
}

// Init seeds the frontier with the labeled roots.
func (s *Search[S, A, V]) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateCreated {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	s.state = StateActive
	s.started = time.Now()
	s.mu.Unlock()

	if s.cfg.opts.Timeout > 0 {
		s.deadline = s.started.Add(s.cfg.opts.Timeout)
	}
	if s.perNodeTimeout > 0 {
		s.eval = NewTimed(s.eval, s.perNodeTimeout, s.fallback)
	}

	rc := newRunContext[S, A, V](ctx, s.graph, s.keyFn, contextConfig{
		logger:  s.cfg.logger,
		runID:   s.runID,
		seed:    s.cfg.opts.RNGSeed,
		bus:     s.bus,
		metrics: s.cfg.metrics,
	})
	s.mu.Lock()
	s.rc = rc
	s.mu.Unlock()
	s.rc.solutions.Start()
	_, s.runSpan = s.cfg.spans.StartRunSpan(ctx, s.runID)

	ctx, cancel := s.bound(ctx)
	defer cancel()

	roots, err := await(ctx, "roots", s.cfg.opts.CancellationSlack, s.graph.Roots)
	if err != nil {
		if runErr := serrors.FromContext(ctx, "roots"); runErr != nil {
			return s.finish(ctx, runErr)
		}
		return s.finish(ctx, &NodeError{NodeID: NoParent, Op: "roots", Err: err})
	}
	observability.LogRunStart(s.rc.logger, len(roots))

	nodes := make([]*Node[S, A, V], 0, len(roots))
	for _, r := range roots {
		goal, err := isGoal(s.graph, r)
		if err != nil {
			return s.finish(ctx, &NodeError{NodeID: NoParent, Op: "goal test", Err: err})
		}
		nodes = append(nodes, s.tree.AddRoot(r, goal))
	}
	queued, err := s.label(ctx, nodes)
	if err != nil {
		return s.finish(ctx, err)
	}

	s.emit(ctx, EventInitialized, Initialized{Roots: len(roots), Queued: queued})
	return nil
}

// Step pops the best node from the frontier. A goal node is posted as a
// solution; any other node is expanded and its labeled children queued.
// Step returns nil when the run ends normally; State reports it.
func (s *Search[S, A, V]) Step(ctx context.Context) error {
	if s.State() != StateActive {
		return ErrNotActive
	}
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if err := serrors.FromContext(ctx, "step"); err != nil {
		return s.finish(ctx, err)
	}
	if limit := s.cfg.opts.MaxExpansions; limit > 0 && s.Stats().Expansions >= limit {
		return s.finish(ctx, nil)
	}

	n, ok := s.open.Pop()
	s.setOpen()
	if !ok {
		return s.finish(ctx, nil)
	}

	if n.IsGoal() {
		label, _ := n.Label()
		rec := s.rc.solutions.newRecord(n.Path(), n.Key(), label, 0)
		if _, err := s.rc.solutions.Offer(ctx, rec); err != nil {
			return s.finish(ctx, err)
		}
		return nil
	}
	return s.expand(ctx, n)
}

// Run drives the search until it ends and returns the result. Solutions
// posted before a cancellation, timeout or failure are kept in the
// result.
func (s *Search[S, A, V]) Run(ctx context.Context) (*Result[S, V], error) {
	if s.State() == StateCreated {
		if err := s.Init(ctx); err != nil {
			return s.Result(), err
		}
	}
	for s.State() == StateActive {
		if err := s.Step(ctx); err != nil {
			return s.Result(), err
		}
	}
	return s.Result(), s.Err()
}

// NextSolution steps the search until a solution not returned before is
// available. It returns ErrExhausted once the run terminated without
// further solutions, and the run error if it failed.
func (s *Search[S, A, V]) NextSolution(ctx context.Context) (SolutionRecord[S, V], error) {
	var zero SolutionRecord[S, V]
	for {
		if recs := s.Solutions(); s.cursor < len(recs) {
			rec := recs[s.cursor]
			s.cursor++
			return rec, nil
		}

		switch s.State() {
		case StateCreated:
			if err := s.Init(ctx); err != nil {
				return zero, err
			}
		case StateActive:
			if err := s.Step(ctx); err != nil {
				return zero, err
			}
		default:
			if err := s.Err(); err != nil {
				return zero, err
			}
			return zero, ErrExhausted
		}
	}
}

// Result returns a summary of the run so far.
func (s *Search[S, A, V]) Result() *Result[S, V] {
	res := &Result[S, V]{
		RunID:     s.runID,
		State:     s.State(),
		Solutions: s.Solutions(),
		Stats:     s.Stats(),
		Err:       s.Err(),
	}
	if rc := s.run(); rc != nil {
		if best, ok := rc.solutions.Best(); ok {
			res.Best = &best
		}
	}

	s.mu.RLock()
	switch {
	case !s.ended.IsZero():
		res.Duration = s.ended.Sub(s.started)
	case !s.started.IsZero():
		res.Duration = time.Since(s.started)
	}
	s.mu.RUnlock()
	return res
}

func (s *Search[S, A, V]) expand(ctx context.Context, n *Node[S, A, V]) error {
	spanCtx, span := s.cfg.spans.StartExpansionSpan(s.traceCtx(ctx), int(n.ID()), n.Depth())
	logger := observability.NodeLogger(s.rc.logger, int(n.ID()), n.Depth())

	succs, err := await(ctx, "successors", s.cfg.opts.CancellationSlack, func(c context.Context) ([]Successor[S, A], error) {
		return s.graph.Successors(c, n.Point())
	})
	if err != nil {
		if runErr := serrors.FromContext(ctx, "expand"); runErr != nil {
			s.cfg.spans.EndSpanWithError(span, runErr)
			return s.finish(ctx, runErr)
		}
		expErr := &serrors.ExpansionError{NodeID: int(n.ID()), Err: err}
		n.SetAnnotation(AnnotationDead, true)
		n.SetAnnotation(AnnotationError, err.Error())
		s.update(func(st *Stats) {
			st.Expansions++
			st.DeadEnds++
		})
		s.cfg.metrics.RecordExpansion(spanCtx, n.Depth(), 0, expErr)
		observability.LogExpansionError(logger, int(n.ID()), expErr)
		s.cfg.spans.EndSpanWithError(span, expErr)
		s.prune(ctx, n, PruneReasonDeadEnd, expErr)
		return nil
	}

	evtID := uuid.New().String()
	s.expansions[n.ID()] = evtID

	children := make([]*Node[S, A, V], 0, len(succs))
	for _, sc := range succs {
		goal, err := isGoal(s.graph, sc.State)
		child := s.tree.AddChild(n, sc.Action, sc.State, goal)
		if err != nil {
			s.fail(ctx, child, &NodeError{NodeID: child.ID(), Op: "goal test", Err: err})
			continue
		}
		children = append(children, child)
	}
	queued, err := s.label(spanCtx, children)
	if err != nil {
		s.cfg.spans.EndSpanWithError(span, err)
		return s.finish(ctx, err)
	}

	s.update(func(st *Stats) { st.Expansions++ })
	s.cfg.metrics.RecordExpansion(spanCtx, n.Depth(), len(succs), nil)
	observability.LogExpansion(logger, int(n.ID()), n.Depth(), len(succs), len(succs)-queued)
	s.cfg.spans.EndSpanWithError(span, nil)

	s.emit(ctx, EventNodeExpanded, NodeExpansionCompleted[S]{
		NodeID:   n.ID(),
		Depth:    n.Depth(),
		Path:     n.Path(),
		Key:      n.Key(),
		Children: len(succs),
		Pruned:   len(succs) - queued,
	}, event.WithEventID(evtID))
	return nil
}

type labelOutcome int

const (
	outcomeLabeled labelOutcome = iota
	outcomePruned
	outcomeFailed
	outcomeAborted
)

// label evaluates nodes, up to Parallelism at a time, then queues the
// labeled ones in their original order so the frontier does not depend
// on evaluation timing. It returns the number of queued nodes.
func (s *Search[S, A, V]) label(ctx context.Context, nodes []*Node[S, A, V]) (int, error) {
	outcomes := make([]labelOutcome, len(nodes))
	failures := make([]error, len(nodes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.opts.Parallelism)
	for i, n := range nodes {
		g.Go(func() error {
			out, err := s.evaluate(gctx, n)
			if out == outcomeAborted {
				return err
			}
			outcomes[i], failures[i] = out, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if err := serrors.FromContext(ctx, "evaluate"); err != nil {
		return 0, err
	}

	queued := 0
	for i, n := range nodes {
		switch outcomes[i] {
		case outcomeLabeled:
			s.open.Push(n)
			queued++
		case outcomePruned:
			s.prune(ctx, n, PruneReasonEvaluator, nil)
		case outcomeFailed:
			s.prune(ctx, n, PruneReasonFailed, failures[i])
		}
	}
	s.setOpen()
	return queued, nil
}

// evaluate labels one node. Local failures are returned with
// outcomeFailed. An error is run-level only when ctx itself is done or
// an invariant broke; it is returned with outcomeAborted.
func (s *Search[S, A, V]) evaluate(ctx context.Context, n *Node[S, A, V]) (labelOutcome, error) {
	spanCtx, span := s.cfg.spans.StartEvaluationSpan(ctx, int(n.ID()))
	start := time.Now()

	res, err := await(spanCtx, "evaluate", s.cfg.opts.CancellationSlack, func(c context.Context) (scored[V], error) {
		v, ok, err := s.eval.Evaluate(s.rc.WithContext(c), n)
		return scored[V]{v, ok}, err
	})
	elapsed := time.Since(start)
	s.rc.solutions.noteEvaluation()
	s.update(func(st *Stats) { st.Evaluations++ })
	s.cfg.spans.EndSpanWithError(span, err)

	// A deadline or cancellation the evaluator hit on its own calls is
	// local; only the run's ctx decides whether the run ends.
	runErr := serrors.FromContext(ctx, "evaluate")
	switch {
	case err != nil && runErr != nil:
		s.cfg.metrics.RecordEvaluation(ctx, elapsed, observability.OutcomeFailed)
		return outcomeAborted, runErr
	case err != nil && errors.Is(err, serrors.ErrInvariant):
		s.cfg.metrics.RecordEvaluation(ctx, elapsed, observability.OutcomeFailed)
		return outcomeAborted, err
	case err != nil:
		n.SetAnnotation(AnnotationError, err.Error())
		s.update(func(st *Stats) { st.Failures++ })
		s.cfg.metrics.RecordEvaluation(ctx, elapsed, observability.OutcomeFailed)
		observability.LogEvaluationError(s.rc.logger, int(n.ID()), err)
		return outcomeFailed, &NodeError{NodeID: n.ID(), Op: "evaluate", Err: err}
	case !res.ok:
		s.cfg.metrics.RecordEvaluation(ctx, elapsed, observability.OutcomePruned)
		return outcomePruned, nil
	default:
		n.SetLabel(res.v)
		s.cfg.metrics.RecordEvaluation(ctx, elapsed, observability.OutcomeLabeled)
		return outcomeLabeled, nil
	}
}

func (s *Search[S, A, V]) prune(ctx context.Context, n *Node[S, A, V], reason string, cause error) {
	n.SetAnnotation(AnnotationPruneReason, reason)
	s.update(func(st *Stats) { st.Pruned++ })
	observability.LogNodePruned(s.rc.logger, int(n.ID()), reason)

	evt := NodePruned[S]{
		NodeID: n.ID(),
		Depth:  n.Depth(),
		Path:   n.Path(),
		Key:    n.Key(),
		Reason: reason,
	}
	if cause != nil {
		evt.Error = cause.Error()
	}
	var opts []event.EventOption
	if parent, ok := n.Parent(); ok {
		opts = append(opts, event.WithCausationID(s.expansions[parent.ID()]))
	}
	s.emit(ctx, EventNodePruned, evt, opts...)
}

// fail prunes n after a local failure that happened before it could be
// labeled.
func (s *Search[S, A, V]) fail(ctx context.Context, n *Node[S, A, V], err error) {
	n.SetAnnotation(AnnotationError, err.Error())
	s.update(func(st *Stats) { st.Failures++ })
	observability.LogEvaluationError(s.rc.logger, int(n.ID()), err)
	s.prune(ctx, n, PruneReasonFailed, err)
}

// finish ends the run. A nil err terminates it normally; any error fails
// it. The error is returned unchanged.
func (s *Search[S, A, V]) finish(ctx context.Context, err error) error {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return err
	}
	if err == nil {
		s.state = StateTerminated
	} else {
		s.state = StateFailed
		s.err = err
	}
	s.ended = time.Now()
	duration := s.ended.Sub(s.started)
	s.mu.Unlock()

	stats := s.Stats()
	pubCtx := context.WithoutCancel(ctx)
	durationMs := float64(duration.Microseconds()) / 1000

	outcome := "terminated"
	switch cat := serrors.Categorize(err); {
	case err == nil:
		s.emit(pubCtx, EventTerminated, Terminated{Stats: stats})
		observability.LogRunComplete(s.rc.logger, durationMs, stats.Expansions, stats.Solutions)
	case cat == serrors.CategoryCancelled || cat == serrors.CategoryTimeout:
		outcome = cat.String()
		s.emit(pubCtx, EventCancelled, Cancelled{Stats: stats, Timeout: cat == serrors.CategoryTimeout, Error: err.Error()})
		observability.LogRunError(s.rc.logger, err, durationMs, stats.Solutions)
	default:
		outcome = "failed"
		s.emit(pubCtx, EventFailed, Failed{Stats: stats, Error: err.Error()})
		observability.LogRunError(s.rc.logger, err, durationMs, stats.Solutions)
	}

	s.cfg.metrics.RecordRun(pubCtx, outcome, duration)
	s.cfg.spans.EndSpanWithError(s.runSpan, err)
	return err
}

func (s *Search[S, A, V]) emit(ctx context.Context, eventType string, payload any, opts ...event.EventOption) {
	if err := publish(context.WithoutCancel(ctx), s.bus, s.runID, eventType, payload, opts...); err != nil {
		s.rc.logger.Warn("failed to publish event", "type", eventType, "error", err.Error())
	}
}

// bound applies the run deadline to ctx.
func (s *Search[S, A, V]) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.deadline.IsZero() {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, s.deadline)
}

// traceCtx parents spans under the run span.
func (s *Search[S, A, V]) traceCtx(ctx context.Context) context.Context {
	if s.runSpan == nil {
		return ctx
	}
	return trace.ContextWithSpan(ctx, s.runSpan)
}

func (s *Search[S, A, V]) update(fn func(*Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.stats)
}

func (s *Search[S, A, V]) setOpen() {
	n := s.open.Len()
	s.update(func(st *Stats) { st.Open = n })
}
