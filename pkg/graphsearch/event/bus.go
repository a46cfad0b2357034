package event

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
)

// Bus provides pub/sub event distribution with fan-out support.
type Bus interface {
	// Publish sends an event to all subscribers.
	Publish(ctx context.Context, evt Event) error

	// Subscribe creates a subscription for specific event types.
	Subscribe(types []string, handler Handler) Subscription

	// SubscribeAll subscribes to all events.
	SubscribeAll(handler Handler) Subscription

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe removes the subscription.
	Unsubscribe()
}

// BusConfig configures bus behavior.
type BusConfig struct {
	// OnError is called when a handler returns an error.
	// Handler errors never fail Publish.
	OnError func(evt Event, subscriberID string, err error)
}

// LocalBus is an in-memory event bus implementation. Delivery is
// synchronous: Publish runs every matching handler before it returns.
type LocalBus struct {
	config BusConfig

	mu            sync.RWMutex
	subscriptions map[string]*subscription
	byType        map[string]map[string]*subscription
	wildcards     map[string]*subscription

	// deliverMu serialises delivery.
	deliverMu sync.Mutex

	nextID atomic.Int64
	closed atomic.Bool
}

// NewBus creates a new local event bus.
func NewBus(config BusConfig) *LocalBus {
	return &LocalBus{
		config:        config,
		subscriptions: make(map[string]*subscription),
		byType:        make(map[string]map[string]*subscription),
		wildcards:     make(map[string]*subscription),
	}
}

type subscription struct {
	id      string
	seq     int64
	types   []string // empty = all types
	handler Handler
	bus     *LocalBus
}

// Publish sends an event to all matching subscribers and returns after
// every handler ran.
func (b *LocalBus) Publish(ctx context.Context, evt Event) error {
	if b.closed.Load() {
		return &EventError{Event: evt, Message: "publish", Err: ErrBusClosed}
	}

	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	b.mu.RLock()
	subs := b.matching(evt.Type())
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.deliver(ctx, evt)
	}
	return nil
}

// Subscribe creates a subscription for specific event types.
func (b *LocalBus) Subscribe(types []string, handler Handler) Subscription {
	return b.subscribe(types, handler)
}

// SubscribeAll subscribes to all events.
func (b *LocalBus) SubscribeAll(handler Handler) Subscription {
	return b.subscribe(nil, handler)
}

func (b *LocalBus) subscribe(types []string, handler Handler) Subscription {
	if b.closed.Load() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	seq := b.nextID.Add(1)
	sub := &subscription{
		id:      "sub-" + strconv.FormatInt(seq, 10),
		seq:     seq,
		types:   types,
		handler: handler,
		bus:     b,
	}

	b.subscriptions[sub.id] = sub
	if len(types) == 0 {
		b.wildcards[sub.id] = sub
	} else {
		for _, t := range types {
			if b.byType[t] == nil {
				b.byType[t] = make(map[string]*subscription)
			}
			b.byType[t][sub.id] = sub
		}
	}
	return sub
}

// matching returns the subscriptions for an event type in subscription order.
func (b *LocalBus) matching(eventType string) []*subscription {
	subs := make([]*subscription, 0, len(b.wildcards)+len(b.byType[eventType]))
	for _, sub := range b.byType[eventType] {
		subs = append(subs, sub)
	}
	for _, sub := range b.wildcards {
		subs = append(subs, sub)
	}
	slices.SortFunc(subs, func(a, c *subscription) int {
		return int(a.seq - c.seq)
	})
	return subs
}

// Close shuts down the bus and drops every subscription.
func (b *LocalBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.subscriptions)
	clear(b.byType)
	clear(b.wildcards)
	return nil
}

func (s *subscription) deliver(ctx context.Context, evt Event) {
	if err := s.handler.Handle(ctx, evt); err != nil && s.bus.config.OnError != nil {
		s.bus.config.OnError(evt, s.id, err)
	}
}

// Unsubscribe removes the subscription.
func (s *subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	delete(s.bus.subscriptions, s.id)
	delete(s.bus.wildcards, s.id)
	for _, t := range s.types {
		if typeSubs, ok := s.bus.byType[t]; ok {
			delete(typeSubs, s.id)
		}
	}
}
