package graphsearch

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	serrors "github.com/randalmurphal/graphsearch/pkg/graphsearch/errors"
	"github.com/randalmurphal/graphsearch/pkg/graphsearch/registry"
)

// SubsumptionFunc reports whether a completion cached for the prefix
// cached is also valid for the prefix query. The relation is domain
// specific; a typical one is "both prefixes leave the same choices open".
// Without one, only identical prefixes share completions.
type SubsumptionFunc[S any] func(cached, query Path[S]) bool

// Completion is the outcome of sampling completions for one prefix.
type Completion[S any] struct {
	PrefixPath Path[S]
	Prefix     PathKey

	// Found is false when the prefix has no completion at all.
	Found bool
	// Path is the best completion found; its score lives in the run's
	// SolutionRegistry under Key.
	Path Path[S]
	Key  PathKey

	Samples     int
	Attempts    int
	Uncertainty float64
}

// CompletionCache holds the prefix completion caches of one run, one per
// named scope so independent evaluators do not share entries.
type CompletionCache[S any] struct {
	scopes *registry.Registry[string, *PrefixCache[S]]
}

func newCompletionCache[S any]() *CompletionCache[S] {
	return &CompletionCache[S]{scopes: registry.New[string, *PrefixCache[S]]()}
}

// Scope returns the cache of the named scope, creating it on first use.
func (c *CompletionCache[S]) Scope(name string) *PrefixCache[S] {
	return c.scopes.GetOrCreate(name, func() *PrefixCache[S] {
		return &PrefixCache[S]{entries: registry.New[PathKey, Completion[S]]()}
	})
}

// PrefixCache maps prefixes to their best completion. Entries are written
// once and never replaced.
type PrefixCache[S any] struct {
	entries *registry.Registry[PathKey, Completion[S]]
	group   singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// Get returns the completion cached for exactly this prefix.
func (p *PrefixCache[S]) Get(prefix PathKey) (Completion[S], bool) {
	return p.entries.Get(prefix)
}

// Lookup returns the completion for prefix, falling back to the first
// cached entry, in insertion order, whose prefix subsumes it.
func (p *PrefixCache[S]) Lookup(prefix Path[S], key PathKey, subsumes SubsumptionFunc[S]) (Completion[S], bool) {
	if c, ok := p.entries.Get(key); ok {
		p.hits.Add(1)
		return c, true
	}
	if subsumes != nil {
		var found Completion[S]
		ok := false
		p.entries.Range(func(_ PathKey, c Completion[S]) bool {
			if subsumes(c.PrefixPath, prefix) {
				found, ok = c, true
				return false
			}
			return true
		})
		if ok {
			p.hits.Add(1)
			return found, true
		}
	}
	p.misses.Add(1)
	return Completion[S]{}, false
}

// Put stores c unless its prefix already has an entry, and reports
// whether it did. A completion that does not extend its own prefix is
// rejected as an invariant violation.
func (p *PrefixCache[S]) Put(c Completion[S]) (bool, error) {
	if c.Found && !c.Prefix.IsPrefixOf(c.Key) {
		return false, &serrors.InvariantError{
			Invariant: "completion-extends-prefix",
			Detail:    fmt.Sprintf("completion %q does not extend %q", c.Key.String(), c.Prefix.String()),
		}
	}
	return p.entries.PutIfAbsent(c.Prefix, c), nil
}

// Len returns the number of cached prefixes.
func (p *PrefixCache[S]) Len() int {
	return p.entries.Len()
}

// Stats returns the number of lookups that hit and missed.
func (p *PrefixCache[S]) Stats() (hits, misses int64) {
	return p.hits.Load(), p.misses.Load()
}

func (p *PrefixCache[S]) do(ctx context.Context, key PathKey, fn func() (Completion[S], error)) (Completion[S], error) {
	return flight(ctx, &p.group, string(key), "sample completions", fn)
}
