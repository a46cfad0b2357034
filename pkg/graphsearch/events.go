package graphsearch

import (
	"cmp"
	"context"

	"github.com/randalmurphal/graphsearch/pkg/graphsearch/event"
)

// Event types published by a search run.
const (
	EventInitialized   = "search.initialized"
	EventNodeExpanded  = "search.node_expanded"
	EventNodePruned    = "search.node_pruned"
	EventSolutionFound = "search.solution_found"
	EventTerminated    = "search.terminated"
	EventCancelled     = "search.cancelled"
	EventFailed        = "search.failed"
)

// EventSource is the source of every event published by this package.
const EventSource = "graphsearch"

// Reasons carried by NodePruned.
const (
	PruneReasonEvaluator = "evaluator"
	PruneReasonFailed    = "evaluation_failed"
	PruneReasonDeadEnd   = "successor_generation_failed"
)

// Initialized is published once the roots are labeled and queued.
type Initialized struct {
	Roots  int `json:"roots"`
	Queued int `json:"queued"`
}

// NodeExpansionCompleted is published after a node's children were
// generated, labeled and queued.
type NodeExpansionCompleted[S any] struct {
	NodeID   NodeID  `json:"node_id"`
	Depth    int     `json:"depth"`
	Path     Path[S] `json:"path"`
	Key      PathKey `json:"key"`
	Children int     `json:"children"`
	Pruned   int     `json:"pruned"`
}

// NodePruned is published when a node is dropped from the frontier. Its
// causation ID is the ID of the NodeExpanded event of the node's parent.
type NodePruned[S any] struct {
	NodeID NodeID  `json:"node_id"`
	Depth  int     `json:"depth"`
	Path   Path[S] `json:"path"`
	Key    PathKey `json:"key"`
	Reason string  `json:"reason"`
	Error  string  `json:"error,omitempty"`
}

// SolutionFound is published once per distinct solution path.
type SolutionFound[S any, V cmp.Ordered] struct {
	Record SolutionRecord[S, V] `json:"record"`
}

// Terminated is published when the run ends normally: the frontier is
// empty or the expansion budget is used up.
type Terminated struct {
	Stats Stats `json:"stats"`
}

// Cancelled is published when the run was cancelled or timed out.
type Cancelled struct {
	Stats   Stats  `json:"stats"`
	Timeout bool   `json:"timeout"`
	Error   string `json:"error"`
}

// Failed is published when the run ended on an invariant violation.
type Failed struct {
	Stats Stats  `json:"stats"`
	Error string `json:"error"`
}

// Listener receives typed search events. Nil fields are skipped.
//
// Example:
//
//	sub := graphsearch.Listener[string, float64]{
//	    OnSolution: func(r graphsearch.SolutionRecord[string, float64]) {
//	        fmt.Println(r.Key, r.Score)
//	    },
//	}.Attach(search.Bus())
//	defer sub.Unsubscribe()
type Listener[S any, V cmp.Ordered] struct {
	OnInitialized  func(Initialized)
	OnNodeExpanded func(NodeExpansionCompleted[S])
	OnNodePruned   func(NodePruned[S])
	OnSolution     func(SolutionRecord[S, V])
	OnTerminated   func(Terminated)
	OnCancelled    func(Cancelled)
	OnFailed       func(Failed)
}

// Attach subscribes the listener to every event on bus.
func (l Listener[S, V]) Attach(bus event.Bus) event.Subscription {
	return bus.SubscribeAll(event.HandlerFunc(l.handle))
}

func (l Listener[S, V]) handle(_ context.Context, evt event.Event) error {
	switch data := evt.Data().(type) {
	case Initialized:
		if l.OnInitialized != nil {
			l.OnInitialized(data)
		}
	case NodeExpansionCompleted[S]:
		if l.OnNodeExpanded != nil {
			l.OnNodeExpanded(data)
		}
	case NodePruned[S]:
		if l.OnNodePruned != nil {
			l.OnNodePruned(data)
		}
	case SolutionFound[S, V]:
		if l.OnSolution != nil {
			l.OnSolution(data.Record)
		}
	case Terminated:
		if l.OnTerminated != nil {
			l.OnTerminated(data)
		}
	case Cancelled:
		if l.OnCancelled != nil {
			l.OnCancelled(data)
		}
	case Failed:
		if l.OnFailed != nil {
			l.OnFailed(data)
		}
	}
	return nil
}

func publish[T any](ctx context.Context, bus event.Bus, runID, eventType string, payload T, opts ...event.EventOption) error {
	return bus.Publish(ctx, event.New(eventType, EventSource, runID, payload, opts...))
}
