package graphsearch

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/randalmurphal/graphsearch/pkg/graphsearch/errors"
)

type completionFixture struct {
	graph *binaryGraph
	rc    Context[string, string, float64]
	tree  *Tree[string, string, float64]
	root  *Node[string, string, float64]
}

func newCompletionFixture(depth int, seed uint64) *completionFixture {
	g := &binaryGraph{depth: depth}
	tree := NewTree[string, string, float64](nil)
	return &completionFixture{
		graph: g,
		rc:    testContext(g, WithContextSeed(seed)),
		tree:  tree,
		root:  tree.AddRoot("", false),
	}
}

func (f *completionFixture) child(parent *Node[string, string, float64], bit string) *Node[string, string, float64] {
	state := parent.Point() + bit
	return f.tree.AddChild(parent, bit, state, f.graph.IsGoal(state))
}

func ones(s string) float64 { return float64(strings.Count(s, "1")) }

func TestRandomCompletion_ScoreIsBestSample(t *testing.T) {
	f := newCompletionFixture(3, 1)
	sc := onesScorer()
	eval := NewRandomCompletion[string, string](sc, CompletionConfig[string, float64]{SampleCount: 3})

	v, ok, err := eval.Evaluate(f.rc, f.root)
	require.NoError(t, err)
	require.True(t, ok)

	seen := sc.evaluated()
	require.Len(t, seen, 3)
	best := ones(seen[0])
	for _, s := range seen {
		assert.Len(t, s, 3)
		best = min(best, ones(s))
	}
	assert.ElementsMatch(t, seen, uniqueStrings(seen))
	assert.Equal(t, best, v)
	assert.Equal(t, 3, f.rc.Solutions().Len())

	samples, _ := f.root.Annotation(AnnotationSamples)
	assert.Equal(t, 3, samples)
	attempts, _ := f.root.Annotation(AnnotationAttempts)
	assert.Equal(t, 3, attempts)
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func TestRandomCompletion_CachedPrefixIsNotResampled(t *testing.T) {
	f := newCompletionFixture(4, 3)
	sc := onesScorer()
	eval := NewRandomCompletion[string, string](sc, CompletionConfig[string, float64]{
		SampleCount: 2,
		PathCaching: true,
	})
	node := f.child(f.root, "1")

	first, ok, err := eval.Evaluate(f.rc, node)
	require.NoError(t, err)
	require.True(t, ok)

	calls := sc.calls.Load()
	successorCalls := f.graph.successorCalls.Load()

	again, ok, err := eval.Evaluate(f.rc, node)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, again)

	// The same prefix reached through another node of the run.
	other := NewTree[string, string, float64](nil)
	twin := other.AddChild(other.AddRoot("", false), "1", "1", false)
	v, ok, err := eval.Evaluate(f.rc, twin)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, v)

	cached, _ := twin.Annotation(AnnotationCached)
	assert.Equal(t, true, cached)
	assert.Equal(t, calls, sc.calls.Load())
	assert.Equal(t, successorCalls, f.graph.successorCalls.Load())

	cache := f.rc.Completions().Scope(DefaultCompletionScope)
	assert.Equal(t, 1, cache.Len())
	hits, misses := cache.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestRandomCompletion_RetriesUntilOneSampleSucceeds(t *testing.T) {
	f := newCompletionFixture(3, 9)
	sc := &scorer{score: func(_ context.Context, last string) (float64, error) {
		if last != "101" {
			return 0, errModel
		}
		return ones(last), nil
	}}
	eval := NewRandomCompletion[string, string](sc, CompletionConfig[string, float64]{SampleCount: 1})

	var posted []string
	Listener[string, float64]{
		OnSolution: func(r SolutionRecord[string, float64]) {
			last, _ := r.Path.Last()
			posted = append(posted, last)
		},
	}.Attach(f.rc.Bus())

	v, ok, err := eval.Evaluate(f.rc, f.root)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
	assert.Equal(t, []string{"101"}, posted)
	assert.Equal(t, 1, f.rc.Solutions().Len())

	for _, s := range sc.evaluated() {
		if s != "101" {
			_, key := pathOf(pathStates(s)...)
			assert.True(t, f.rc.Solutions().Blacklisted(key), s)
		}
	}
}

// pathStates returns the states from the binary root to s.
func pathStates(s string) []string {
	out := make([]string, 0, len(s)+1)
	for i := 0; i <= len(s); i++ {
		out = append(out, s[:i])
	}
	return out
}

func TestRandomCompletion_AllSamplesFail(t *testing.T) {
	f := newCompletionFixture(3, 1)
	sc := &scorer{score: func(context.Context, string) (float64, error) {
		return 0, errModel
	}}
	eval := NewRandomCompletion[string, string](sc, CompletionConfig[string, float64]{SampleCount: 1})

	_, ok, err := eval.Evaluate(f.rc, f.root)
	assert.False(t, ok)

	var evalErr *serrors.EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, 8, evalErr.Attempts)
	assert.ErrorIs(t, err, errModel)
	assert.True(t, serrors.IsLocal(err))

	attempts, _ := f.root.Annotation(AnnotationAttempts)
	assert.Equal(t, 8, attempts)
	_, annotated := f.root.Annotation(AnnotationError)
	assert.True(t, annotated)
	assert.Zero(t, f.rc.Solutions().Len())
}

func TestRandomCompletion_AttemptsAreCapped(t *testing.T) {
	f := newCompletionFixture(6, 1)
	sc := &scorer{score: func(context.Context, string) (float64, error) {
		return 0, errModel
	}}
	eval := NewRandomCompletion[string, string](sc, CompletionConfig[string, float64]{
		SampleCount:           2,
		MaxAttemptsMultiplier: 3,
	})

	_, _, err := eval.Evaluate(f.rc, f.root)
	var evalErr *serrors.EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, 6, evalErr.Attempts)
	assert.Equal(t, int64(6), sc.calls.Load())
}

func TestRandomCompletion_DeadEndPrunes(t *testing.T) {
	g := &mapGraph{
		roots: []string{"r"},
		edges: map[string][]string{"r": {"a"}},
	}
	rc := testContext(g)
	root := NewTree[string, string, float64](nil).AddRoot("r", false)
	sc := onesScorer()

	_, ok, err := NewRandomCompletion[string, string](sc, CompletionConfig[string, float64]{}).Evaluate(rc, root)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, sc.calls.Load())

	samples, _ := root.Annotation(AnnotationSamples)
	assert.Equal(t, 0, samples)
}

func TestRandomCompletion_SkipsFailingSubtrees(t *testing.T) {
	g := fiveGoalGraph()
	g.fail = map[string]error{"a": errModel}
	rc := testContext(g)
	root := NewTree[string, string, float64](nil).AddRoot("r", false)
	sc := &scorer{score: func(_ context.Context, last string) (float64, error) {
		return float64(len(last)), nil
	}}

	_, ok, err := NewRandomCompletion[string, string](sc, CompletionConfig[string, float64]{SampleCount: 5}).Evaluate(rc, root)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.ElementsMatch(t, []string{"b1", "b2x"}, sc.evaluated())
}

func TestRandomCompletion_GoalNodeIsScoredDirectly(t *testing.T) {
	f := newCompletionFixture(1, 1)
	sc := onesScorer()
	eval := NewRandomCompletion[string, string](sc, CompletionConfig[string, float64]{})
	goal := f.child(f.root, "1")
	require.True(t, goal.IsGoal())

	v, ok, err := eval.Evaluate(f.rc, goal)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)
	assert.True(t, f.rc.Solutions().IsPosted(goal.Key()))
	assert.Equal(t, int64(0), f.graph.successorCalls.Load())
}

func TestRandomCompletion_FailingGoalIsAnnotated(t *testing.T) {
	f := newCompletionFixture(1, 1)
	sc := &scorer{score: func(context.Context, string) (float64, error) {
		return 0, errModel
	}}
	goal := f.child(f.root, "0")

	_, ok, err := NewRandomCompletion[string, string](sc, CompletionConfig[string, float64]{}).Evaluate(f.rc, goal)
	assert.False(t, ok)
	assert.ErrorIs(t, err, errModel)
	_, annotated := goal.Annotation(AnnotationError)
	assert.True(t, annotated)
}

func TestRandomCompletion_InheritsParentScore(t *testing.T) {
	t.Run("step without future effect", func(t *testing.T) {
		f := newCompletionFixture(3, 1)
		f.root.SetLabel(7)
		sc := onesScorer()
		eval := NewRandomCompletion[string, string](sc, CompletionConfig[string, float64]{
			AffectsFuture: func(Path[string]) bool { return false },
		})

		v, ok, err := eval.Evaluate(f.rc, f.child(f.root, "0"))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 7.0, v)
		assert.Zero(t, sc.calls.Load())
	})

	t.Run("only child", func(t *testing.T) {
		f := newCompletionFixture(3, 1)
		f.root.SetLabel(7)
		sc := onesScorer()
		eval := NewRandomCompletion[string, string](sc, CompletionConfig[string, float64]{
			ReuseParentForOnlyChild: true,
		})

		only := f.child(f.root, "0")
		v, ok, err := eval.Evaluate(f.rc, only)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 7.0, v)
		inherited, _ := only.Annotation(AnnotationInherited)
		assert.Equal(t, true, inherited)

		sibling := f.child(f.root, "1")
		_, _, err = eval.Evaluate(f.rc, sibling)
		require.NoError(t, err)
		assert.NotZero(t, sc.calls.Load())
	})

	t.Run("unlabeled parent samples", func(t *testing.T) {
		f := newCompletionFixture(3, 1)
		sc := onesScorer()
		eval := NewRandomCompletion[string, string](sc, CompletionConfig[string, float64]{
			AffectsFuture: func(Path[string]) bool { return false },
		})

		_, ok, err := eval.Evaluate(f.rc, f.child(f.root, "0"))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NotZero(t, sc.calls.Load())
	})
}

func TestRandomCompletion_Subsumption(t *testing.T) {
	f := newCompletionFixture(3, 5)
	sc := onesScorer()
	eval := NewRandomCompletion[string, string](sc, CompletionConfig[string, float64]{
		SampleCount: 2,
		PathCaching: true,
		Subsumes: func(cached, query Path[string]) bool {
			return len(cached) == len(query)
		},
	})

	left, ok, err := eval.Evaluate(f.rc, f.child(f.root, "0"))
	require.NoError(t, err)
	require.True(t, ok)
	calls := sc.calls.Load()

	right := f.child(f.root, "1")
	v, ok, err := eval.Evaluate(f.rc, right)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, left, v)
	assert.Equal(t, calls, sc.calls.Load())
	cached, _ := right.Annotation(AnnotationCached)
	assert.Equal(t, true, cached)
}

func TestRandomCompletion_ScopesDoNotShare(t *testing.T) {
	f := newCompletionFixture(3, 5)
	sc := onesScorer()
	first := NewRandomCompletion[string, string](sc, CompletionConfig[string, float64]{PathCaching: true, Scope: "first"})
	second := NewRandomCompletion[string, string](sc, CompletionConfig[string, float64]{PathCaching: true, Scope: "second"})
	node := f.child(f.root, "0")

	_, _, err := first.Evaluate(f.rc, node)
	require.NoError(t, err)
	_, _, err = second.Evaluate(f.rc, node)
	require.NoError(t, err)

	assert.Equal(t, 1, f.rc.Completions().Scope("first").Len())
	assert.Equal(t, 1, f.rc.Completions().Scope("second").Len())
}

func TestRandomCompletion_Uncertainty(t *testing.T) {
	t.Run("default sample variance", func(t *testing.T) {
		f := newCompletionFixture(3, 2)
		sc := onesScorer()
		eval := NewRandomCompletion[string, string](sc, CompletionConfig[string, float64]{SampleCount: 4})

		_, _, err := eval.Evaluate(f.rc, f.root)
		require.NoError(t, err)

		var scores []float64
		for _, s := range sc.evaluated() {
			scores = append(scores, ones(s))
		}
		u, ok := f.root.Annotation(AnnotationUncertainty)
		require.True(t, ok)
		assert.InDelta(t, SampleVariance[string](nil, scores), u, 1e-9)
	})

	t.Run("custom estimate", func(t *testing.T) {
		f := newCompletionFixture(3, 2)
		eval := NewRandomCompletion[string, string](onesScorer(), CompletionConfig[string, float64]{
			SampleCount: 3,
			Uncertainty: func(_ Path[string], scores []float64) float64 {
				return float64(len(scores)) * 10
			},
		})

		_, _, err := eval.Evaluate(f.rc, f.root)
		require.NoError(t, err)
		u, _ := f.root.Annotation(AnnotationUncertainty)
		assert.Equal(t, 30.0, u)
	})
}

func TestRandomCompletion_SameSeedSameSamples(t *testing.T) {
	run := func() []string {
		f := newCompletionFixture(5, 42)
		sc := onesScorer()
		eval := NewRandomCompletion[string, string](sc, CompletionConfig[string, float64]{SampleCount: 4})
		_, _, err := eval.Evaluate(f.rc, f.child(f.root, "1"))
		require.NoError(t, err)
		return sc.evaluated()
	}
	assert.Equal(t, run(), run())
}

func TestRandomCompletion_CancellationReturnsPromptly(t *testing.T) {
	for _, caching := range []bool{false, true} {
		f := newCompletionFixture(3, 1)
		sc := &scorer{score: func(ctx context.Context, _ string) (float64, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		}}
		eval := NewRandomCompletion[string, string](sc, CompletionConfig[string, float64]{PathCaching: caching})

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(30*time.Millisecond, cancel)

		var err error
		returned := within(time.Second, func() {
			_, _, err = eval.Evaluate(f.rc.WithContext(ctx), f.root)
		})
		require.True(t, returned, "caching=%v", caching)
		assert.Equal(t, serrors.CategoryCancelled, serrors.Categorize(err), "caching=%v", caching)

		for _, s := range sc.evaluated() {
			_, key := pathOf(pathStates(s)...)
			assert.False(t, f.rc.Solutions().Blacklisted(key))
		}
	}
}

func TestRandomCompletion_KeepsSamplesGatheredBeforeCancellation(t *testing.T) {
	f := newCompletionFixture(3, 1)
	var n atomic.Int64
	sc := &scorer{score: func(ctx context.Context, last string) (float64, error) {
		if n.Add(1) == 1 {
			return ones(last), nil
		}
		<-ctx.Done()
		return 0, ctx.Err()
	}}
	eval := NewRandomCompletion[string, string](sc, CompletionConfig[string, float64]{SampleCount: 3})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	v, ok, err := eval.Evaluate(f.rc.WithContext(ctx), f.root)
	require.NoError(t, err)
	require.True(t, ok)

	seen := sc.evaluated()
	require.NotEmpty(t, seen)
	assert.Equal(t, ones(seen[0]), v)
	assert.Equal(t, 1, f.rc.Solutions().Len())
}

func TestSampleVariance(t *testing.T) {
	assert.InDelta(t, 1.0, SampleVariance[string](nil, []float64{1, 2, 3}), 1e-9)
	assert.InDelta(t, 2.0, SampleVariance[string](nil, []int{2, 4}), 1e-9)
	assert.Zero(t, SampleVariance[string](nil, []float64{5}))
	assert.Zero(t, SampleVariance[string](nil, []string{"a", "b"}))
}

func TestCompleter_EnumeratesDistinctCompletions(t *testing.T) {
	g := &binaryGraph{depth: 3}
	prefix, key := pathOf("")
	c := newCompleter[string, string](g, DefaultStateKey[string], pathStream(1, key), 0)

	var leaves []string
	for {
		p, k, ok, err := c.next(context.Background(), prefix, key)
		require.NoError(t, err)
		if !ok {
			break
		}
		assert.True(t, key.IsPrefixOf(k))
		last, _ := p.Last()
		leaves = append(leaves, last)
	}
	assert.ElementsMatch(t, g.leaves(), leaves)
}

func TestCompleter_MaxDepth(t *testing.T) {
	g := &binaryGraph{depth: 3}

	prefix, key := pathOf("")
	c := newCompleter[string, string](g, DefaultStateKey[string], pathStream(1, key), 2)
	_, _, ok, err := c.next(context.Background(), prefix, key)
	require.NoError(t, err)
	assert.False(t, ok)

	prefix, key = pathOf("", "1")
	c = newCompleter[string, string](g, DefaultStateKey[string], pathStream(1, key), 2)
	count := 0
	for {
		_, _, ok, err := c.next(context.Background(), prefix, key)
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, 4, count)
}

func TestCompleter_GoalTestPanicSkipsSubtree(t *testing.T) {
	g := &binaryGraph{depth: 2}
	funcs := GraphFuncs[string, string]{
		RootsFunc:      g.Roots,
		SuccessorsFunc: g.Successors,
		IsGoalFunc: func(s string) bool {
			if s == "01" {
				panic("bad leaf")
			}
			return g.IsGoal(s)
		},
	}
	prefix, key := pathOf("")
	c := newCompleter[string, string](funcs, DefaultStateKey[string], pathStream(1, key), 0)

	var leaves []string
	for {
		p, _, ok, err := c.next(context.Background(), prefix, key)
		require.NoError(t, err)
		if !ok {
			break
		}
		last, _ := p.Last()
		leaves = append(leaves, last)
	}
	assert.ElementsMatch(t, []string{"00", "10", "11"}, leaves)
	assert.Equal(t, 1, c.failures)
}

func TestCompleter_Cancelled(t *testing.T) {
	g := &binaryGraph{depth: 3}
	prefix, key := pathOf("")
	c := newCompleter[string, string](g, DefaultStateKey[string], pathStream(1, key), 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, _, err := c.next(ctx, prefix, key)
	assert.Equal(t, serrors.CategoryCancelled, serrors.Categorize(err))
}

func TestPrefixCache_Put(t *testing.T) {
	cache := newCompletionCache[string]().Scope("test")
	_, prefix := pathOf("", "1")
	_, inside := pathOf("", "1", "10", "101")
	_, outside := pathOf("", "0", "00", "001")

	stored, err := cache.Put(Completion[string]{Prefix: prefix, Found: true, Key: inside})
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = cache.Put(Completion[string]{Prefix: prefix, Found: true, Key: inside})
	require.NoError(t, err)
	assert.False(t, stored)

	_, err = cache.Put(Completion[string]{Prefix: prefix, Found: true, Key: outside})
	assert.ErrorIs(t, err, serrors.ErrInvariant)

	c, ok := cache.Get(prefix)
	require.True(t, ok)
	assert.Equal(t, inside, c.Key)
}
