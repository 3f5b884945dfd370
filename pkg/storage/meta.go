// Package storage owns the sqlite meta tables: the workload registry and
// the accuracy evaluation history. Sketch state itself is never persisted;
// engines rebuild from replayed workloads.
package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureMetaTables creates the meta tables if they do not exist.
func EnsureMetaTables(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cardest_workloads (
            table_name TEXT PRIMARY KEY,
            columns INTEGER NOT NULL,
            row_count INTEGER DEFAULT 0,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS cardest_accuracy (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            engine_name TEXT NOT NULL,
            workload TEXT NOT NULL,
            predicates TEXT NOT NULL,
            estimate INTEGER NOT NULL,
            actual INTEGER NOT NULL,
            sampling_rate REAL NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("storage: ensure meta tables: %w", err)
		}
	}
	return nil
}

// UpsertWorkload records a workload table's shape and row count.
func UpsertWorkload(ctx context.Context, db *sql.DB, table string, columns int, rowCount int64) error {
	_, err := db.ExecContext(ctx, `INSERT INTO cardest_workloads(table_name,columns,row_count,updated_at)
        VALUES(?,?,?,CURRENT_TIMESTAMP)
        ON CONFLICT(table_name) DO UPDATE SET columns=excluded.columns, row_count=excluded.row_count, updated_at=CURRENT_TIMESTAMP`,
		table, columns, rowCount)
	if err != nil {
		return fmt.Errorf("storage: upsert workload %s: %w", table, err)
	}
	return nil
}

// Workload is one registered workload table.
type Workload struct {
	Table    string `json:"table"`
	Columns  int    `json:"columns"`
	RowCount int64  `json:"row_count"`
}

// ListWorkloads returns all registered workloads.
func ListWorkloads(ctx context.Context, db *sql.DB) ([]Workload, error) {
	rows, err := db.QueryContext(ctx, `SELECT table_name, columns, row_count FROM cardest_workloads ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("storage: list workloads: %w", err)
	}
	defer rows.Close()

	var out []Workload
	for rows.Next() {
		var w Workload
		if err := rows.Scan(&w.Table, &w.Columns, &w.RowCount); err != nil {
			return nil, fmt.Errorf("storage: list workloads: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// InsertAccuracy appends one estimate-vs-actual observation.
func InsertAccuracy(ctx context.Context, db *sql.DB, engineName, workload, predicates string, estimate, actual int64, samplingRate float64) error {
	_, err := db.ExecContext(ctx, `INSERT INTO cardest_accuracy(engine_name,workload,predicates,estimate,actual,sampling_rate,created_at)
        VALUES(?,?,?,?,?,?,CURRENT_TIMESTAMP)`,
		engineName, workload, predicates, estimate, actual, samplingRate)
	if err != nil {
		return fmt.Errorf("storage: insert accuracy row: %w", err)
	}
	return nil
}
