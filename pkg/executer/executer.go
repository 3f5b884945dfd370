// Package executer implements the host side of the estimator: a
// sqlite-backed row source that can replay workload tables into an engine
// and answer exact counts for accuracy evaluation.
package executer

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/cardest/cardest/pkg/estimator"
)

// TupleSink receives replayed rows. *estimator.Engine satisfies it.
type TupleSink interface {
	InsertTuple(tuple []int64) error
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQL reads workload tables whose tracked columns are named col0..colN-1.
// It implements estimator.DataExecuter.
type SQL struct {
	db      *sql.DB
	columns int
}

// NewSQL wraps a database handle for workloads with the given tracked
// column count.
func NewSQL(db *sql.DB, columns int) (*SQL, error) {
	if columns < 1 {
		return nil, fmt.Errorf("executer: column count %d below 1", columns)
	}
	return &SQL{db: db, columns: columns}, nil
}

// Columns returns the tracked column count.
func (s *SQL) Columns() int {
	return s.columns
}

// RowCount returns the number of rows in the workload table.
func (s *SQL) RowCount(ctx context.Context, table string) (int64, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}
	var count int64
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("executer: count %s: %w", table, err)
	}
	return count, nil
}

// ExactCount returns the exact number of rows matching every predicate.
// It is the ground truth the sketch estimates approximate.
func (s *SQL) ExactCount(ctx context.Context, table string, preds []estimator.Predicate) (int64, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}
	if len(preds) == 0 {
		return 0, fmt.Errorf("executer: empty predicate set")
	}

	conds := make([]string, 0, len(preds))
	args := make([]any, 0, len(preds))
	for _, p := range preds {
		if p.Column < 0 || p.Column >= s.columns {
			return 0, fmt.Errorf("executer: column %d outside [0, %d)", p.Column, s.columns)
		}
		conds = append(conds, fmt.Sprintf("col%d = ?", p.Column))
		args = append(args, p.Value)
	}

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, strings.Join(conds, " AND "))
	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("executer: exact count on %s: %w", table, err)
	}
	return count, nil
}

// Replay streams every row of the workload table into the sink in rowid
// order and returns how many rows were offered. The sink's own sampling
// decides what sticks.
func (s *SQL) Replay(ctx context.Context, table string, sink TupleSink) (int64, error) {
	if err := checkIdent(table); err != nil {
		return 0, err
	}

	cols := make([]string, s.columns)
	for i := range cols {
		cols[i] = fmt.Sprintf("col%d", i)
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY rowid", strings.Join(cols, ", "), table)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("executer: replay %s: %w", table, err)
	}
	defer rows.Close()

	tuple := make([]int64, s.columns)
	ptrs := make([]any, s.columns)
	for i := range tuple {
		ptrs[i] = &tuple[i]
	}

	var offered int64
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return offered, fmt.Errorf("executer: scan %s: %w", table, err)
		}
		if err := sink.InsertTuple(tuple); err != nil {
			return offered, err
		}
		offered++
	}
	if err := rows.Err(); err != nil {
		return offered, fmt.Errorf("executer: replay %s: %w", table, err)
	}
	return offered, nil
}

func checkIdent(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("executer: invalid table name %q", name)
	}
	return nil
}

var _ estimator.DataExecuter = (*SQL)(nil)
