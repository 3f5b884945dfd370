// Package accuracy records how sketch estimates compare against exact
// counts from the host executer, and aggregates the history into summary
// statistics.
package accuracy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/cardest/cardest/pkg/estimator"
	"github.com/cardest/cardest/pkg/storage"
)

// Tracker appends evaluations to the sqlite history and summarizes them.
type Tracker struct {
	db *sql.DB
}

// NewTracker wraps a database handle whose meta tables already exist.
func NewTracker(db *sql.DB) *Tracker {
	return &Tracker{db: db}
}

// Record stores one estimate-vs-actual observation.
func (t *Tracker) Record(ctx context.Context, engineName, workload string, preds []estimator.Predicate, estimate, actual int64, samplingRate float64) error {
	encoded, err := json.Marshal(preds)
	if err != nil {
		return fmt.Errorf("accuracy: encode predicates: %w", err)
	}
	return storage.InsertAccuracy(ctx, t.db, engineName, workload, string(encoded), estimate, actual, samplingRate)
}

// Stats summarizes one engine's evaluation history. Relative error is
// (estimate - actual) / max(actual, 1); negative values mean the sketch
// undercounted, which sampling and ungated deletions both permit.
type Stats struct {
	Evaluations      int64   `json:"evaluations"`
	MeanRelError     float64 `json:"mean_rel_error"`
	MaxRelError      float64 `json:"max_rel_error"`
	Underestimates   int64   `json:"underestimates"`
	LastSamplingRate float64 `json:"last_sampling_rate"`
}

// Stats aggregates the recorded history for an engine. An empty history
// yields zero-valued stats, not an error.
func (t *Tracker) Stats(ctx context.Context, engineName string) (Stats, error) {
	var s Stats
	row := t.db.QueryRowContext(ctx, `SELECT
            COUNT(*),
            COALESCE(AVG(CAST(estimate - actual AS REAL) / MAX(actual, 1)), 0),
            COALESCE(MAX(CAST(estimate - actual AS REAL) / MAX(actual, 1)), 0),
            COALESCE(SUM(CASE WHEN estimate < actual THEN 1 ELSE 0 END), 0),
            COALESCE((SELECT sampling_rate FROM cardest_accuracy
                      WHERE engine_name = ? ORDER BY id DESC LIMIT 1), 0)
        FROM cardest_accuracy WHERE engine_name = ?`, engineName, engineName)
	if err := row.Scan(&s.Evaluations, &s.MeanRelError, &s.MaxRelError, &s.Underestimates, &s.LastSamplingRate); err != nil {
		return Stats{}, fmt.Errorf("accuracy: aggregate history: %w", err)
	}
	return s, nil
}
