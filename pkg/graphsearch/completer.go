package graphsearch

import (
	"context"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"

	serrors "github.com/randalmurphal/graphsearch/pkg/graphsearch/errors"
)

// completer draws distinct random completions of one prefix by
// randomized depth-first search. A completer is owned by a single
// evaluation and is not safe for concurrent use.
type completer[S, A any] struct {
	graph    GraphGenerator[S, A]
	keyFn    StateKeyFunc[S]
	rng      *rand.Rand
	maxDepth int

	succ      map[PathKey][]Successor[S, A]
	exhausted map[PathKey]struct{}

	// failures counts successor generation errors and goal test panics;
	// the failing subtree is skipped.
	failures int
}

// pathStream derives a reproducible random stream for one path, so the
// draws do not depend on the order in which nodes are evaluated.
func pathStream(seed uint64, key PathKey) *rand.Rand {
	return rand.New(rand.NewPCG(seed, xxhash.Sum64String(string(key))))
}

func newCompleter[S, A any](graph GraphGenerator[S, A], keyFn StateKeyFunc[S], rng *rand.Rand, maxDepth int) *completer[S, A] {
	return &completer[S, A]{
		graph:     graph,
		keyFn:     keyFn,
		rng:       rng,
		maxDepth:  maxDepth,
		succ:      make(map[PathKey][]Successor[S, A]),
		exhausted: make(map[PathKey]struct{}),
	}
}

// next returns a goal path extending prefix that this completer has not
// returned before. ok is false once no unseen completion is left. The
// only errors are run-level: cancellation and deadlines.
func (c *completer[S, A]) next(ctx context.Context, prefix Path[S], key PathKey) (Path[S], PathKey, bool, error) {
	return c.dive(ctx, prefix, key, 0)
}

func (c *completer[S, A]) dive(ctx context.Context, path Path[S], key PathKey, depth int) (Path[S], PathKey, bool, error) {
	if err := serrors.FromContext(ctx, "complete"); err != nil {
		return nil, "", false, err
	}
	if _, done := c.exhausted[key]; done {
		return nil, "", false, nil
	}

	last, _ := path.Last()
	goal, err := isGoal(c.graph, last)
	if err != nil {
		c.failures++
		c.exhausted[key] = struct{}{}
		return nil, "", false, nil
	}
	if goal {
		c.exhausted[key] = struct{}{}
		return path, key, true, nil
	}
	if c.maxDepth > 0 && depth >= c.maxDepth {
		c.exhausted[key] = struct{}{}
		return nil, "", false, nil
	}

	succs, err := c.successors(ctx, last, key)
	if err != nil {
		if serrors.IsRunLevel(err) {
			return nil, "", false, err
		}
		c.failures++
		c.exhausted[key] = struct{}{}
		return nil, "", false, nil
	}

	for _, i := range c.rng.Perm(len(succs)) {
		child := succs[i].State
		childKey := key.Child(c.keyFn(child))
		if _, done := c.exhausted[childKey]; done {
			continue
		}
		p, k, ok, err := c.dive(ctx, path.Extend(child), childKey, depth+1)
		if err != nil || ok {
			return p, k, ok, err
		}
	}
	c.exhausted[key] = struct{}{}
	return nil, "", false, nil
}

func (c *completer[S, A]) successors(ctx context.Context, state S, key PathKey) ([]Successor[S, A], error) {
	if succs, ok := c.succ[key]; ok {
		return succs, nil
	}
	succs, err := protect("successors", func() ([]Successor[S, A], error) {
		return c.graph.Successors(ctx, state)
	})
	if err != nil {
		if runErr := serrors.FromContext(ctx, "complete"); runErr != nil {
			return nil, runErr
		}
		return nil, &serrors.ExpansionError{Err: err}
	}
	c.succ[key] = succs
	return succs, nil
}
