package solutionstore

import (
	"encoding/json"
	"maps"
	"slices"
	"sync"
)

// MemoryStore is an in-memory solution store for testing.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string][]Record       // runID -> records in sequence order
	index  map[string]map[string]int // runID -> path key -> position
	closed bool
}

// NewMemoryStore creates a new in-memory solution store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:  make(map[string][]Record),
		index: make(map[string]map[string]int),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	if m.index[rec.RunID] == nil {
		m.index[rec.RunID] = make(map[string]int)
	}
	if _, ok := m.index[rec.RunID][rec.PathKey]; ok {
		return ErrDuplicate
	}

	rec = clone(rec)
	rec.Sequence = len(m.runs[rec.RunID]) + 1
	m.index[rec.RunID][rec.PathKey] = len(m.runs[rec.RunID])
	m.runs[rec.RunID] = append(m.runs[rec.RunID], rec)
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(runID, pathKey string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Record{}, ErrStoreClosed
	}

	pos, ok := m.index[runID][pathKey]
	if !ok {
		return Record{}, ErrNotFound
	}
	return clone(m.runs[runID][pos]), nil
}

// List implements Store.
func (m *MemoryStore) List(runID string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := make([]Record, 0, len(m.runs[runID]))
	for _, r := range m.runs[runID] {
		out = append(out, clone(r))
	}
	return out, nil
}

// Runs implements Store.
func (m *MemoryStore) Runs() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	return slices.Sorted(maps.Keys(m.runs)), nil
}

// DeleteRun implements Store.
func (m *MemoryStore) DeleteRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.runs, runID)
	delete(m.index, runID)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.runs = nil
	m.index = nil
	return nil
}

// Len returns the total number of records across all runs.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, run := range m.runs {
		count += len(run)
	}
	return count
}

// clone copies the slices and maps of r so callers cannot alias stored
// records.
func clone(r Record) Record {
	r.Steps = slices.Clone(r.Steps)
	r.Score = json.RawMessage(slices.Clone([]byte(r.Score)))
	r.Annotations = maps.Clone(r.Annotations)
	return r
}
