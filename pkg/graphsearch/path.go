package graphsearch

import "strings"

// Path is the ordered sequence of states from a root to a node.
type Path[S any] []S

// Last returns the final state of the path.
func (p Path[S]) Last() (S, bool) {
	if len(p) == 0 {
		var zero S
		return zero, false
	}
	return p[len(p)-1], true
}

// Extend returns a new path with s appended. p is never modified.
func (p Path[S]) Extend(s S) Path[S] {
	out := make(Path[S], len(p), len(p)+1)
	copy(out, p)
	return append(out, s)
}

// PathKey identifies a path structurally. Paths whose states have equal
// keys have equal PathKeys, even when they belong to distinct nodes.
type PathKey string

// keySep precedes every state key in a PathKey. State keys must not
// contain it.
const keySep = "\x1f"

// KeyOf computes the key of a whole path.
func KeyOf[S any](p Path[S], keyFn StateKeyFunc[S]) PathKey {
	var b strings.Builder
	for _, s := range p {
		b.WriteString(keySep)
		b.WriteString(keyFn(s))
	}
	return PathKey(b.String())
}

// Child returns the key of this path extended by one state key.
func (k PathKey) Child(stateKey string) PathKey {
	return k + PathKey(keySep+stateKey)
}

// IsPrefixOf reports whether k is a (non-strict) prefix of other.
func (k PathKey) IsPrefixOf(other PathKey) bool {
	if !strings.HasPrefix(string(other), string(k)) {
		return false
	}
	return len(other) == len(k) || strings.HasPrefix(string(other[len(k):]), keySep)
}

// Len returns the number of states in the path.
func (k PathKey) Len() int {
	return strings.Count(string(k), keySep)
}

// Steps returns the state keys of the path in order.
func (k PathKey) Steps() []string {
	if k == "" {
		return nil
	}
	return strings.Split(string(k[len(keySep):]), keySep)
}

// String renders the key for logs, e.g. "a > b > c".
func (k PathKey) String() string {
	if k == "" {
		return ""
	}
	return strings.ReplaceAll(string(k[len(keySep):]), keySep, " > ")
}
