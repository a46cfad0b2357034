package graphsearch

import (
	"cmp"
	"maps"
	"sync"
)

// NodeID indexes a node in its Tree.
type NodeID int

// NoParent is the parent ID of root nodes.
const NoParent NodeID = -1

// Annotation keys written by the evaluators and the driver.
const (
	// AnnotationEvalTime holds the time.Duration the evaluator took.
	AnnotationEvalTime = "f_time"
	// AnnotationError holds the error string of a failed evaluation.
	AnnotationError = "f_error"
	// AnnotationUncertainty holds the float64 spread of sampled scores.
	AnnotationUncertainty = "f_uncertainty"
	// AnnotationSamples holds the number of completions that were scored.
	AnnotationSamples = "f_samples"
	// AnnotationAttempts holds the number of completion attempts.
	AnnotationAttempts = "f_attempts"
	// AnnotationCached is true when the label came from the prefix cache.
	AnnotationCached = "f_cached"
	// AnnotationInherited is true when the label was copied from the parent.
	AnnotationInherited = "f_inherited"
	// AnnotationTimedOut is true when a TimedEvaluator fell back.
	AnnotationTimedOut = "f_timeout"
	// AnnotationSkipped is the coin outcome of a SkippingEvaluator.
	AnnotationSkipped = "f_skipped"
	// AnnotationPruneReason says why a node never entered OPEN.
	AnnotationPruneReason = "prune_reason"
	// AnnotationDead is true when successor generation failed.
	AnnotationDead = "dead"
)

// Node is a vertex of the search tree. Structural fields are fixed at
// creation; the label and annotations may be written concurrently while
// the node is being evaluated.
type Node[S, A any, V cmp.Ordered] struct {
	id     NodeID
	parent NodeID
	point  S
	action A
	depth  int
	goal   bool
	key    PathKey
	tree   *Tree[S, A, V]

	mu          sync.RWMutex
	label       V
	labeled     bool
	annotations map[string]any
}

// ID returns the arena index of the node.
func (n *Node[S, A, V]) ID() NodeID { return n.id }

// Point returns the domain state of the node.
func (n *Node[S, A, V]) Point() S { return n.point }

// Action returns the action on the edge from the parent. Zero for roots.
func (n *Node[S, A, V]) Action() A { return n.action }

// Depth returns the distance from the root. Roots have depth 0.
func (n *Node[S, A, V]) Depth() int { return n.depth }

// IsGoal reports the cached goal test of the state.
func (n *Node[S, A, V]) IsGoal() bool { return n.goal }

// Key returns the structural key of the root-to-node path.
func (n *Node[S, A, V]) Key() PathKey { return n.key }

// ParentID returns the parent index, or NoParent for roots.
func (n *Node[S, A, V]) ParentID() NodeID { return n.parent }

// Parent returns the parent node.
func (n *Node[S, A, V]) Parent() (*Node[S, A, V], bool) {
	if n.parent == NoParent {
		return nil, false
	}
	return n.tree.Node(n.parent), true
}

// Path walks parent indices back to the root.
func (n *Node[S, A, V]) Path() Path[S] {
	path := make(Path[S], n.depth+1)
	for cur := n; ; {
		path[cur.depth] = cur.point
		p, ok := cur.Parent()
		if !ok {
			break
		}
		cur = p
	}
	return path
}

// Siblings returns the number of children of the parent, including n.
// Roots count the other roots.
func (n *Node[S, A, V]) Siblings() int {
	return len(n.tree.Children(n.parent))
}

// Label returns the evaluator's score, if one was set.
func (n *Node[S, A, V]) Label() (V, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.label, n.labeled
}

// SetLabel records the evaluator's score.
func (n *Node[S, A, V]) SetLabel(v V) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.label = v
	n.labeled = true
}

// Labeled reports whether the node has been given a label.
func (n *Node[S, A, V]) Labeled() bool {
	_, ok := n.Label()
	return ok
}

// Dead reports whether successor generation failed for the node.
func (n *Node[S, A, V]) Dead() bool {
	v, ok := n.Annotation(AnnotationDead)
	dead, _ := v.(bool)
	return ok && dead
}

// Annotation returns a named annotation.
func (n *Node[S, A, V]) Annotation(key string) (any, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.annotations[key]
	return v, ok
}

// SetAnnotation records a named annotation, replacing any previous value.
func (n *Node[S, A, V]) SetAnnotation(key string, value any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.annotations == nil {
		n.annotations = make(map[string]any)
	}
	n.annotations[key] = value
}

// Annotations returns a copy of all annotations.
func (n *Node[S, A, V]) Annotations() map[string]any {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return maps.Clone(n.annotations)
}

// Tree is the arena owning every node of one search run.
// Nodes are never removed before the run ends.
type Tree[S, A any, V cmp.Ordered] struct {
	keyFn StateKeyFunc[S]

	mu       sync.RWMutex
	nodes    []*Node[S, A, V]
	roots    []NodeID
	children map[NodeID][]NodeID
}

// NewTree creates an empty arena. A nil keyFn uses DefaultStateKey.
func NewTree[S, A any, V cmp.Ordered](keyFn StateKeyFunc[S]) *Tree[S, A, V] {
	if keyFn == nil {
		keyFn = DefaultStateKey[S]
	}
	return &Tree[S, A, V]{
		keyFn:    keyFn,
		children: make(map[NodeID][]NodeID),
	}
}

// AddRoot adds a root node.
func (t *Tree[S, A, V]) AddRoot(state S, goal bool) *Node[S, A, V] {
	var zero A
	return t.add(NoParent, zero, state, goal, "", 0)
}

// AddChild adds a child of parent reached through action.
func (t *Tree[S, A, V]) AddChild(parent *Node[S, A, V], action A, state S, goal bool) *Node[S, A, V] {
	return t.add(parent.id, action, state, goal, parent.key, parent.depth+1)
}

func (t *Tree[S, A, V]) add(parent NodeID, action A, state S, goal bool, parentKey PathKey, depth int) *Node[S, A, V] {
	n := &Node[S, A, V]{
		parent: parent,
		point:  state,
		action: action,
		depth:  depth,
		goal:   goal,
		key:    parentKey.Child(t.keyFn(state)),
		tree:   t,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	n.id = NodeID(len(t.nodes))
	t.nodes = append(t.nodes, n)
	if parent == NoParent {
		t.roots = append(t.roots, n.id)
	}
	t.children[parent] = append(t.children[parent], n.id)
	return n
}

// Node returns the node with the given ID, or nil.
func (t *Tree[S, A, V]) Node(id NodeID) *Node[S, A, V] {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id < 0 || int(id) >= len(t.nodes) {
		return nil
	}
	return t.nodes[id]
}

// Children returns the IDs of the children of id in creation order.
// NoParent yields the roots.
func (t *Tree[S, A, V]) Children(id NodeID) []NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]NodeID(nil), t.children[id]...)
}

// Roots returns the root IDs in creation order.
func (t *Tree[S, A, V]) Roots() []NodeID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]NodeID(nil), t.roots...)
}

// Len returns the number of nodes in the arena.
func (t *Tree[S, A, V]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}

// KeyFunc returns the state key function the tree was built with.
func (t *Tree[S, A, V]) KeyFunc() StateKeyFunc[S] {
	return t.keyFn
}
