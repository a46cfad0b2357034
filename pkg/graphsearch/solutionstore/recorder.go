package solutionstore

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/randalmurphal/graphsearch/pkg/graphsearch"
	"github.com/randalmurphal/graphsearch/pkg/graphsearch/event"
)

// Recorder archives the solutions announced on an event bus.
//
// Example:
//
//	store, _ := solutionstore.NewSQLiteStore("solutions.db")
//	rec := solutionstore.NewRecorder[string, float64](store, logger)
//	sub := rec.Attach(search.Bus())
//	defer sub.Unsubscribe()
type Recorder[S any, V cmp.Ordered] struct {
	store  Store
	logger *slog.Logger

	mu     sync.Mutex
	saved  int
	errors []error
}

// NewRecorder creates a Recorder saving to store. A nil logger uses
// slog.Default().
func NewRecorder[S any, V cmp.Ordered](store Store, logger *slog.Logger) *Recorder[S, V] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder[S, V]{store: store, logger: logger}
}

// Attach subscribes the recorder to solution events on bus.
func (r *Recorder[S, V]) Attach(bus event.Bus) event.Subscription {
	return bus.Subscribe(
		[]string{graphsearch.EventSolutionFound},
		event.TypedHandler(r.handle),
	)
}

func (r *Recorder[S, V]) handle(_ context.Context, payload graphsearch.SolutionFound[S, V], meta event.Metadata) error {
	rec, err := FromSolution(meta.RunID, payload.Record)
	if err == nil {
		err = r.store.Save(rec)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.errors = append(r.errors, err)
		r.logger.Warn("failed to archive solution",
			slog.String("run_id", meta.RunID),
			slog.String("path", payload.Record.Key.String()),
			slog.String("error", err.Error()),
		)
		return err
	}
	r.saved++
	return nil
}

// Saved returns the number of archived solutions.
func (r *Recorder[S, V]) Saved() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saved
}

// Err returns every archiving failure so far, joined, or nil.
func (r *Recorder[S, V]) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(r.errors...)
}
