package graphsearch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/graphsearch/pkg/graphsearch/event"
)

// Test graphs use plain strings as states and actions.

// mapGraph is a finite graph given by adjacency lists.
type mapGraph struct {
	roots []string
	edges map[string][]string
	goals map[string]bool
	fail  map[string]error

	successorCalls atomic.Int64
}

func (g *mapGraph) Roots(context.Context) ([]string, error) {
	return g.roots, nil
}

func (g *mapGraph) Successors(_ context.Context, s string) ([]Successor[string, string], error) {
	g.successorCalls.Add(1)
	if err, ok := g.fail[s]; ok {
		return nil, err
	}
	var out []Successor[string, string]
	for _, c := range g.edges[s] {
		out = append(out, Successor[string, string]{Action: c, State: c})
	}
	return out, nil
}

func (g *mapGraph) IsGoal(s string) bool {
	return g.goals[s]
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// fiveGoalGraph has 5 goals reachable from a single root in at most 3
// steps:
//
//	r -> a -> a1*, a2*, a3 -> a3x*
//	r -> b -> b1*, b2 -> b2x*
func fiveGoalGraph() *mapGraph {
	return &mapGraph{
		roots: []string{"r"},
		edges: map[string][]string{
			"r":  {"a", "b"},
			"a":  {"a1", "a2", "a3"},
			"a3": {"a3x"},
			"b":  {"b1", "b2"},
			"b2": {"b2x"},
		},
		goals: set("a1", "a2", "a3x", "b1", "b2x"),
	}
}

// binaryGraph enumerates bit strings; strings of length depth are goals.
type binaryGraph struct {
	depth int

	successorCalls atomic.Int64
}

func (g *binaryGraph) Roots(context.Context) ([]string, error) {
	return []string{""}, nil
}

func (g *binaryGraph) Successors(ctx context.Context, s string) ([]Successor[string, string], error) {
	g.successorCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s) >= g.depth {
		return nil, nil
	}
	return []Successor[string, string]{
		{Action: "0", State: s + "0"},
		{Action: "1", State: s + "1"},
	}, nil
}

func (g *binaryGraph) IsGoal(s string) bool {
	return len(s) == g.depth
}

// leaves returns every goal of a binaryGraph.
func (g *binaryGraph) leaves() []string {
	out := []string{""}
	for i := 0; i < g.depth; i++ {
		next := make([]string, 0, 2*len(out))
		for _, s := range out {
			next = append(next, s+"0", s+"1")
		}
		out = next
	}
	return out
}

// scorer is a SolutionEvaluator that counts its calls.
type scorer struct {
	score func(ctx context.Context, last string) (float64, error)

	calls atomic.Int64
	mu    sync.Mutex
	seen  []string
}

func (s *scorer) EvaluateSolution(ctx context.Context, p Path[string]) (float64, error) {
	s.calls.Add(1)
	last, _ := p.Last()
	s.mu.Lock()
	s.seen = append(s.seen, last)
	s.mu.Unlock()
	return s.score(ctx, last)
}

func (s *scorer) evaluated() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

// onesScorer scores a bit string by its number of ones.
func onesScorer() *scorer {
	return &scorer{score: func(_ context.Context, last string) (float64, error) {
		return float64(strings.Count(last, "1")), nil
	}}
}

var errModel = errors.New("model exploded")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testContext(graph GraphGenerator[string, string], opts ...ContextOption) Context[string, string, float64] {
	opts = append([]ContextOption{WithContextLogger(discardLogger())}, opts...)
	return NewContext[string, string, float64](context.Background(), graph, opts...)
}

// recordedEvents collects the events of a run in publish order.
type recordedEvents struct {
	mu        sync.Mutex
	types     []string
	expanded  []PathKey
	pruned    []NodePruned[string]
	solutions []SolutionRecord[string, float64]
	cancelled []Cancelled
	failed    []Failed
}

func record(s *Search[string, string, float64]) *recordedEvents {
	rec := &recordedEvents{}
	s.Bus().SubscribeAll(event.HandlerFunc(func(_ context.Context, evt event.Event) error {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.types = append(rec.types, evt.Type())
		return nil
	}))
	Listener[string, float64]{
		OnNodeExpanded: func(e NodeExpansionCompleted[string]) {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.expanded = append(rec.expanded, e.Key)
		},
		OnNodePruned: func(e NodePruned[string]) {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.pruned = append(rec.pruned, e)
		},
		OnSolution: func(r SolutionRecord[string, float64]) {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.solutions = append(rec.solutions, r)
		},
		OnCancelled: func(e Cancelled) {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.cancelled = append(rec.cancelled, e)
		},
		OnFailed: func(e Failed) {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.failed = append(rec.failed, e)
		},
	}.Attach(s.Bus())
	return rec
}

func (r *recordedEvents) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

func (r *recordedEvents) solutionLeaves() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.solutions))
	for _, s := range r.solutions {
		last, _ := s.Path.Last()
		out = append(out, last)
	}
	return out
}

// blockingEvaluator scores every node 0 except the ones named in block,
// which hang until release is closed. It ignores cancellation.
func blockingEvaluator(release <-chan struct{}, block ...string) NodeEvaluator[string, string, float64] {
	blocked := set(block...)
	return EvaluatorFunc[string, string, float64](func(_ Context[string, string, float64], n *Node[string, string, float64]) (float64, bool, error) {
		if blocked[n.Point()] {
			<-release
		}
		return 0, true, nil
	})
}

// within reports whether fn returns before d elapses.
func within(d time.Duration, fn func()) bool {
	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
