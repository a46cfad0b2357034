package benchmarks

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/randalmurphal/graphsearch/pkg/graphsearch"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// bitGraph enumerates bit strings; strings of length depth are goals.
func bitGraph(depth int) graphsearch.GraphFuncs[string, string] {
	return graphsearch.GraphFuncs[string, string]{
		RootsFunc: func(context.Context) ([]string, error) {
			return []string{""}, nil
		},
		SuccessorsFunc: func(_ context.Context, s string) ([]graphsearch.Successor[string, string], error) {
			if len(s) >= depth {
				return nil, nil
			}
			return []graphsearch.Successor[string, string]{
				{Action: "0", State: s + "0"},
				{Action: "1", State: s + "1"},
			}, nil
		},
		IsGoalFunc: func(s string) bool { return len(s) == depth },
	}
}

// ones scores a bit string by its number of ones.
var ones = graphsearch.SolutionEvaluatorFunc[string, float64](
	func(_ context.Context, p graphsearch.Path[string]) (float64, error) {
		last, _ := p.Last()
		return float64(strings.Count(last, "1")), nil
	})

func runSearch(b *testing.B, graph graphsearch.GraphFuncs[string, string], eval graphsearch.NodeEvaluator[string, string, float64], opts ...graphsearch.Option) {
	b.Helper()
	opts = append([]graphsearch.Option{graphsearch.WithLogger(quiet)}, opts...)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		search, err := graphsearch.New[string, string, float64](graph, eval, opts...)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := search.Run(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRun_Constant_Depth8 expands a 511-node tree.
func BenchmarkRun_Constant_Depth8(b *testing.B) {
	runSearch(b, bitGraph(8), graphsearch.Constant[string, string](0.0))
}

// BenchmarkRun_Constant_Depth12 expands an 8191-node tree.
func BenchmarkRun_Constant_Depth12(b *testing.B) {
	runSearch(b, bitGraph(12), graphsearch.Constant[string, string](0.0))
}

// BenchmarkRun_RandomCompletion_Depth8 scores every node by sampling.
func BenchmarkRun_RandomCompletion_Depth8(b *testing.B) {
	eval := graphsearch.NewRandomCompletion[string, string](ones, graphsearch.CompletionConfig[string, float64]{
		SampleCount: 3,
		PathCaching: true,
	})
	runSearch(b, bitGraph(8), eval, graphsearch.WithSeed(1))
}

// BenchmarkRun_RandomCompletion_NoCache_Depth8 samples without the prefix
// cache.
func BenchmarkRun_RandomCompletion_NoCache_Depth8(b *testing.B) {
	eval := graphsearch.NewRandomCompletion[string, string](ones, graphsearch.CompletionConfig[string, float64]{
		SampleCount: 3,
	})
	runSearch(b, bitGraph(8), eval, graphsearch.WithSeed(1))
}

// BenchmarkRun_Parallel_Depth8 labels successors concurrently.
func BenchmarkRun_Parallel_Depth8(b *testing.B) {
	eval := graphsearch.NewRandomCompletion[string, string](ones, graphsearch.CompletionConfig[string, float64]{
		SampleCount: 3,
		PathCaching: true,
	})
	runSearch(b, bitGraph(8), eval, graphsearch.WithSeed(1), graphsearch.WithParallelism(4))
}

// BenchmarkRun_Decorated_Depth8 measures decorator overhead.
func BenchmarkRun_Decorated_Depth8(b *testing.B) {
	eval := graphsearch.NewTimeLogging[string, string, float64](
		graphsearch.NewAlternative[string, string, float64](
			graphsearch.Prune[string, string, float64](),
			graphsearch.Constant[string, string](0.0),
		))
	runSearch(b, bitGraph(8), eval)
}

// BenchmarkNextSolution measures pulling the first solution.
func BenchmarkNextSolution(b *testing.B) {
	graph := bitGraph(10)
	eval := graphsearch.Constant[string, string](0.0)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		search, err := graphsearch.New[string, string, float64](graph, eval, graphsearch.WithLogger(quiet))
		if err != nil {
			b.Fatal(err)
		}
		if _, err := search.NextSolution(ctx); err != nil {
			b.Fatal(err)
		}
	}
}
