// Package solutionstore archives the solutions posted by search runs.
//
// A Recorder subscribes to a run's event bus and saves every solution as
// it is announced, so the results of a run survive the process. Only
// results are archived; search state is never persisted.
package solutionstore

import "errors"

// Store archives solution records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save archives a record and assigns its sequence within the run.
	// Returns ErrDuplicate if the run already has a record for the path.
	Save(rec Record) error

	// Load retrieves the record of one path of a run.
	// Returns ErrNotFound if it doesn't exist.
	Load(runID, pathKey string) (Record, error)

	// List returns all records of a run in discovery order.
	// Returns an empty slice (not error) if the run has no records.
	List(runID string) ([]Record, error)

	// Runs returns the IDs of all runs with at least one record.
	Runs() ([]string, error)

	// DeleteRun removes all records of a run.
	// Returns nil if the run has no records.
	DeleteRun(runID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates a record doesn't exist.
	ErrNotFound = errors.New("solution record not found")

	// ErrDuplicate indicates the path was already archived for the run.
	ErrDuplicate = errors.New("solution already archived")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("solution store closed")
)
