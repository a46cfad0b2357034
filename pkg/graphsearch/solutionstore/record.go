package solutionstore

import (
	"cmp"
	"encoding/json"
	"fmt"
	"time"

	"github.com/randalmurphal/graphsearch/pkg/graphsearch"
)

// Version is the current record format version.
// Increment when making breaking changes to the record structure.
const Version = 1

// Record is the archived form of a posted solution. The score is kept as
// JSON so a store does not depend on the score type.
type Record struct {
	Version  int    `json:"version"`
	RunID    string `json:"run_id"`
	Sequence int    `json:"sequence"`

	PathKey string          `json:"path_key"`
	Steps   []string        `json:"steps"`
	Score   json.RawMessage `json:"score"`

	EvaluationTime time.Duration  `json:"evaluation_time"`
	TimeToSolution time.Duration  `json:"time_to_solution"`
	FoundAt        time.Time      `json:"found_at"`
	Annotations    map[string]any `json:"annotations,omitempty"`
}

// FromSolution converts a posted solution of run runID into a Record.
// Steps are the state keys along the path.
func FromSolution[S any, V cmp.Ordered](runID string, sol graphsearch.SolutionRecord[S, V]) (Record, error) {
	score, err := json.Marshal(sol.Score)
	if err != nil {
		return Record{}, fmt.Errorf("marshal score: %w", err)
	}
	return Record{
		Version:        Version,
		RunID:          runID,
		PathKey:        string(sol.Key),
		Steps:          sol.Key.Steps(),
		Score:          score,
		EvaluationTime: sol.EvaluationTime,
		TimeToSolution: sol.TimeToSolution,
		FoundAt:        sol.FoundAt.UTC(),
		Annotations:    sol.Annotations,
	}, nil
}

// Marshal serializes a record to JSON.
func (r *Record) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal deserializes a record from JSON.
func Unmarshal(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// DecodeScore returns the score of r as a V.
func DecodeScore[V cmp.Ordered](r Record) (V, error) {
	var v V
	if err := json.Unmarshal(r.Score, &v); err != nil {
		return v, fmt.Errorf("decode score of %q: %w", r.PathKey, err)
	}
	return v, nil
}

// Best returns the record with the lowest score. Ties go to the lowest
// sequence. ok is false for an empty slice.
func Best[V cmp.Ordered](records []Record) (best Record, score V, ok bool, err error) {
	for _, r := range records {
		v, decodeErr := DecodeScore[V](r)
		if decodeErr != nil {
			return Record{}, score, false, decodeErr
		}
		if !ok || v < score || (v == score && r.Sequence < best.Sequence) {
			best, score, ok = r, v, true
		}
	}
	return best, score, ok, nil
}
