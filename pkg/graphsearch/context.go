package graphsearch

import (
	"cmp"
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/graphsearch/pkg/graphsearch/event"
	"github.com/randalmurphal/graphsearch/pkg/graphsearch/observability"
)

// Context is the per-run context handed to every evaluator call.
// It extends context.Context with the services and caches that belong to
// one search run, so independent runs never share mutable state.
//
// The driver derives a fresh Context for every call with WithContext;
// everything except the embedded context.Context is shared by the run.
type Context[S, A any, V cmp.Ordered] interface {
	context.Context

	// Logger returns the run logger, enriched with run_id. Never nil.
	Logger() *slog.Logger

	// RunID returns the unique identifier of the run.
	RunID() string

	// Graph returns the graph being searched, for graph-dependent
	// evaluators.
	Graph() GraphGenerator[S, A]

	// StateKey returns the state identity function of the run.
	StateKey() StateKeyFunc[S]

	// Seed returns the run's RNG seed. Evaluators derive per-path streams
	// from it so results do not depend on evaluation order.
	Seed() uint64

	// Solutions returns the run's solution registry: the full-path score
	// cache, the failed-path blacklist and the posted set.
	Solutions() *SolutionRegistry[S, V]

	// Completions returns the run's prefix completion caches.
	Completions() *CompletionCache[S]

	// Bus returns the event bus of the run.
	Bus() event.Bus

	// WithContext returns a copy bound to ctx.
	WithContext(ctx context.Context) Context[S, A, V]
}

type runContext[S, A any, V cmp.Ordered] struct {
	context.Context

	logger      *slog.Logger
	runID       string
	graph       GraphGenerator[S, A]
	keyFn       StateKeyFunc[S]
	seed        uint64
	bus         event.Bus
	solutions   *SolutionRegistry[S, V]
	completions *CompletionCache[S]
}

func (c *runContext[S, A, V]) Logger() *slog.Logger { return c.logger }
func (c *runContext[S, A, V]) RunID() string { return c.runID }
func (c *runContext[S, A, V]) Graph() GraphGenerator[S, A] { return c.graph }
func (c *runContext[S, A, V]) StateKey() StateKeyFunc[S] { return c.keyFn }
func (c *runContext[S, A, V]) Seed() uint64 { return c.seed }
func (c *runContext[S, A, V]) Solutions() *SolutionRegistry[S, V] { return c.solutions }
func (c *runContext[S, A, V]) Completions() *CompletionCache[S] { return c.completions }
func (c *runContext[S, A, V]) Bus() event.Bus { return c.bus }

func (c *runContext[S, A, V]) WithContext(ctx context.Context) Context[S, A, V] {
	cp := *c
	cp.Context = ctx
	return &cp
}

// ContextOption configures a standalone Context.
type ContextOption func(*contextConfig)

type contextConfig struct {
	logger  *slog.Logger
	runID   string
	seed    uint64
	bus     event.Bus
	metrics observability.MetricsRecorder
	keyFn   any
}

// WithContextLogger sets the logger. Default: slog.Default().
func WithContextLogger(logger *slog.Logger) ContextOption {
	return func(c *contextConfig) {
		c.logger = logger
	}
}

// WithContextRunID sets the run identifier. Default: a random UUID.
func WithContextRunID(id string) ContextOption {
	return func(c *contextConfig) {
		c.runID = id
	}
}

// WithContextSeed sets the RNG seed. Default: 0.
func WithContextSeed(seed uint64) ContextOption {
	return func(c *contextConfig) {
		c.seed = seed
	}
}

// WithContextBus sets the bus that solutions are posted to.
// Default: a private synchronous bus.
func WithContextBus(bus event.Bus) ContextOption {
	return func(c *contextConfig) {
		c.bus = bus
	}
}

// WithContextMetrics sets the metrics recorder. Default: no-op.
func WithContextMetrics(m observability.MetricsRecorder) ContextOption {
	return func(c *contextConfig) {
		c.metrics = m
	}
}

// WithContextStateKey sets the state identity function.
func WithContextStateKey[S any](fn StateKeyFunc[S]) ContextOption {
	return func(c *contextConfig) {
		c.keyFn = fn
	}
}

// NewContext creates a per-run Context outside of a Search, for calling
// evaluators directly. Each call starts with empty caches.
//
// Example:
//
//	rc := graphsearch.NewContext[string, string, float64](context.Background(), graph,
//	    graphsearch.WithContextSeed(42))
//	score, ok, err := evaluator.Evaluate(rc, node)
func NewContext[S, A any, V cmp.Ordered](ctx context.Context, graph GraphGenerator[S, A], opts ...ContextOption) Context[S, A, V] {
	cfg := contextConfig{
		logger:  slog.Default(),
		runID:   uuid.New().String(),
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.bus == nil {
		cfg.bus = event.NewBus(event.BusConfig{})
	}
	keyFn, ok := cfg.keyFn.(StateKeyFunc[S])
	if !ok || keyFn == nil {
		keyFn = DefaultStateKey[S]
	}
	return newRunContext[S, A, V](ctx, graph, keyFn, cfg)
}

func newRunContext[S, A any, V cmp.Ordered](ctx context.Context, graph GraphGenerator[S, A], keyFn StateKeyFunc[S], cfg contextConfig) *runContext[S, A, V] {
	logger := observability.EnrichLogger(cfg.logger, cfg.runID)
	return &runContext[S, A, V]{
		Context:     ctx,
		logger:      logger,
		runID:       cfg.runID,
		graph:       graph,
		keyFn:       keyFn,
		seed:        cfg.seed,
		bus:         cfg.bus,
		solutions:   newSolutionRegistry[S, V](cfg.runID, cfg.bus, logger, cfg.metrics),
		completions: newCompletionCache[S](),
	}
}
