/*
Package graphsearch provides anytime best-first search over lazily
generated OR-graphs, with node scores estimated by random completion.

# Overview

A search explores an implicit graph described by a GraphGenerator: the
roots, a successor function and a goal test. Every node is scored by a
NodeEvaluator before it enters the frontier; the lowest score is expanded
first and equal scores are expanded in insertion order. Goal nodes popped
from the frontier are reported as solutions while the search keeps
running, so a caller can stop at any time with everything found so far.

The library provides:
  - Type-safe generics for states, actions and scores
  - A random completion evaluator with path caching and uncertainty
  - Composable evaluator decorators for fallback, timeouts and skipping
  - A synchronous event stream of lifecycle and solution events
  - OpenTelemetry metrics and tracing, and slog logging

# Basic Usage

Describe the graph, pick an evaluator and run:

	graph := graphsearch.GraphFuncs[string, string]{
	    RootsFunc: func(context.Context) ([]string, error) {
	        return []string{""}, nil
	    },
	    SuccessorsFunc: func(_ context.Context, s string) ([]graphsearch.Successor[string, string], error) {
	        return []graphsearch.Successor[string, string]{
	            {Action: "a", State: s + "a"},
	            {Action: "b", State: s + "b"},
	        }, nil
	    },
	    IsGoalFunc: func(s string) bool { return len(s) == 3 },
	}

	search, err := graphsearch.New[string, string, float64](graph, graphsearch.Constant[string, string](0.0))
	if err != nil {
	    log.Fatal(err)
	}
	result, err := search.Run(ctx)
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(len(result.Solutions)) // 8

# Random Completion

RandomCompletionEvaluator scores a partial path by extending it to goal
paths at random and scoring those with a SolutionEvaluator. Each distinct
complete path is evaluated once per run and posted as a solution the first
time it is scored:

	scorer := graphsearch.SolutionEvaluatorFunc[string, float64](
	    func(ctx context.Context, p graphsearch.Path[string]) (float64, error) {
	        return trainAndValidate(ctx, p)
	    })

	eval := graphsearch.NewRandomCompletion[string, string](scorer,
	    graphsearch.CompletionConfig[string, float64]{
	        SampleCount: 3,
	        PathCaching: true,
	    })

Sampling is reproducible: every prefix draws from its own stream derived
from the run seed (WithSeed) and the prefix itself, so results do not
depend on the order in which nodes are evaluated.

# Decorators

Evaluators compose without changing the driver:

	eval := graphsearch.NewTimeLogging[string, string, float64](
	    graphsearch.NewTimed[string, string, float64](
	        graphsearch.NewAlternative[string, string, float64](deadEnds, completion),
	        2*time.Second,
	        graphsearch.Constant[string, string](math.Inf(1)),
	    ),
	)

Use Unwrap, Walk and Find to inspect a chain, and ReportsSolutions or
RequiresGraph to query capabilities.

# Events

Every run publishes to an event.Bus. Listener offers typed callbacks:

	graphsearch.Listener[string, float64]{
	    OnSolution: func(r graphsearch.SolutionRecord[string, float64]) {
	        log.Printf("%s scored %v", r.Key, r.Score)
	    },
	}.Attach(search.Bus())

Solutions are reported in discovery order. Each distinct path is posted at
most once per run.

# Errors

A failing node evaluation or successor generation only prunes that node.
Cancellation, run timeouts and invariant violations end the run; Run then
returns the error together with a Result holding every solution posted so
far. Use the errors subpackage to tell them apart:

	switch gserrors.Categorize(err) {
	case gserrors.CategoryTimeout:
	    // deadline hit
	case gserrors.CategoryCancelled:
	    // ctx cancelled
	}

# Concurrency

The driver loop is single-threaded. WithParallelism labels the children of
an expansion concurrently; they are queued in successor order, so the
expansion order does not depend on scheduling. Independent Search values
share no state.
*/
package graphsearch
