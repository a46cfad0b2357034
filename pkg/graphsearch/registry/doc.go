// Package registry provides a concurrency-safe, insertion-ordered map with
// insert-if-absent semantics.
//
// The search run uses registries for every piece of state that concurrent
// evaluator calls share: the full-path score cache, the failed-path
// blacklist, the posted-solutions set and the prefix completion cache.
// None of those are ever overwritten once written, so the registry has no
// plain "set" operation; the first writer for a key wins.
//
// # Basic Usage
//
//	scores := registry.New[string, float64]()
//	if scores.PutIfAbsent("a|b|c", 0.25) {
//	    // first evaluation of this path
//	}
//
//	v, ok := scores.Get("a|b|c")
//
// # Lazy Initialization
//
// GetOrCreate calls the factory at most once per key, even under concurrent
// access:
//
//	mu := locks.GetOrCreate(key, func() *sync.Mutex { return new(sync.Mutex) })
//
// # Ordering
//
// Keys, Values and Range visit entries in the order they were first
// inserted. Range works on a snapshot, so inserting during iteration is safe
// and does not affect the iteration in progress.
package registry
