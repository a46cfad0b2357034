package graphsearch

import (
	"cmp"
	"container/heap"
)

type openEntry[S, A any, V cmp.Ordered] struct {
	node  *Node[S, A, V]
	label V
	seq   uint64
}

// openHeap orders entries by label, then insertion sequence, so equal
// labels pop in FIFO order.
type openHeap[S, A any, V cmp.Ordered] []openEntry[S, A, V]

func (h openHeap[S, A, V]) Len() int { return len(h) }

func (h openHeap[S, A, V]) Less(i, j int) bool {
	if c := cmp.Compare(h[i].label, h[j].label); c != 0 {
		return c < 0
	}
	return h[i].seq < h[j].seq
}

func (h openHeap[S, A, V]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *openHeap[S, A, V]) Push(x any) { *h = append(*h, x.(openEntry[S, A, V])) }

func (h *openHeap[S, A, V]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = openEntry[S, A, V]{}
	*h = old[:n-1]
	return e
}

// Frontier is the OPEN list of a search: labeled nodes waiting for
// expansion.
// It is owned by the driver loop and is not safe for concurrent use.
type Frontier[S, A any, V cmp.Ordered] struct {
	h   openHeap[S, A, V]
	seq uint64
}

// Push queues a labeled node. Unlabeled nodes are rejected.
func (o *Frontier[S, A, V]) Push(n *Node[S, A, V]) bool {
	label, ok := n.Label()
	if !ok {
		return false
	}
	heap.Push(&o.h, openEntry[S, A, V]{node: n, label: label, seq: o.seq})
	o.seq++
	return true
}

// Pop removes the node with the lowest label.
func (o *Frontier[S, A, V]) Pop() (*Node[S, A, V], bool) {
	if len(o.h) == 0 {
		return nil, false
	}
	return heap.Pop(&o.h).(openEntry[S, A, V]).node, true
}

// Peek returns the node Pop would return without removing it.
func (o *Frontier[S, A, V]) Peek() (*Node[S, A, V], bool) {
	if len(o.h) == 0 {
		return nil, false
	}
	return o.h[0].node, true
}

// Len returns the number of queued nodes.
func (o *Frontier[S, A, V]) Len() int { return len(o.h) }
