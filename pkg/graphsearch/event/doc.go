// Package event provides the publish/subscribe primitives a search run uses
// to report its lifecycle and the solutions it discovers.
//
// # Events
//
// Every event carries a unique ID, a type, a source and the ID of the run
// that produced it. Payloads are strongly typed through BaseEvent:
//
//	evt := event.New("search.solution_found", "graphsearch", runID, payload)
//
// WithCausationID links an event to the event that caused it:
//
//	evt := event.New("search.node_pruned", "graphsearch", runID, p,
//	    event.WithCausationID(expansion.ID()))
//
// # Bus
//
// LocalBus fans events out to subscribers. Publish runs every matching
// handler inline, in subscription order, and returns only after all of
// them finished. Concurrent publishers are
// serialised so listeners observe one total order. Handlers run on the
// publishing goroutine and must not block for long or publish to the same
// bus.
//
//	bus := event.NewBus(event.BusConfig{})
//	sub := bus.Subscribe([]string{"search.solution_found"}, handler)
//	defer sub.Unsubscribe()
//
// # Typed handlers
//
// TypedHandler unpacks the payload before calling the function:
//
//	h := event.TypedHandler(func(ctx context.Context, p Payload, meta event.Metadata) error {
//	    ...
//	})
package event
