// Package estimator answers approximate cardinality queries for a host
// query engine. It keeps one frequency sketch per tracked column, admits
// inserted tuples through a sampling gate, and reduces per-predicate
// estimates to a single worst-case answer.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/cardest/cardest/pkg/sampler"
	"github.com/cardest/cardest/pkg/sketch"
)

// ErrInvalidInput marks caller errors: tuples shorter than the tracked
// column count, empty predicate sets, or predicates naming an untracked
// column. The engine's state is unchanged when it is returned.
var ErrInvalidInput = errors.New("estimator: invalid input")

const (
	// DefaultColumns matches the reference workload shape of two tracked
	// columns at positions 0 and 1.
	DefaultColumns = 2

	// DefaultDepth is the number of independent sketch rows.
	DefaultDepth = 5

	// DefaultSamplingRate is the fraction of inserts admitted to the
	// sketches.
	DefaultSamplingRate = 0.1

	// widthFraction sizes sketch width as a fraction of the expected row
	// count.
	widthFraction = 0.01
)

// Predicate is an equality qualifier from the host's query layer: a
// tracked column index and the target value.
type Predicate struct {
	Column int   `json:"column"`
	Value  int64 `json:"value"`
}

// DataExecuter is the host collaborator that owns the actual rows. The
// engine holds one on behalf of the host; the estimation path never calls
// it. Evaluation tooling uses it for ground truth.
type DataExecuter interface {
	// RowCount returns the number of rows in a workload table.
	RowCount(ctx context.Context, table string) (int64, error)

	// ExactCount returns the exact number of rows satisfying every
	// predicate conjunctively.
	ExactCount(ctx context.Context, table string, preds []Predicate) (int64, error)
}

// Config controls engine construction. Zero fields take defaults.
type Config struct {
	// ExpectedRows sizes the sketches: width = ceil(ExpectedRows * 1%),
	// clamped to at least 1. Negative is a construction error.
	ExpectedRows int64

	// Columns is the number of tracked columns. Zero means DefaultColumns;
	// negative is a construction error.
	Columns int

	// Depth is the number of sketch rows. Zero means DefaultDepth.
	Depth int

	// SamplingRate is the insert admission fraction in [0, 1]. Zero means
	// DefaultSamplingRate; to disable sampling entirely use a rate of 1.
	SamplingRate float64

	// Seed, when non-zero, makes the sampling gate reproducible.
	Seed int64
}

// Engine estimates per-predicate cardinalities from sampled sketches.
//
// An Engine is single-threaded: nothing inside locks the sketches or the
// gate's generator state. Callers issuing InsertTuple, DeleteTuple, Query
// or Prepare from multiple goroutines must serialize access themselves,
// for example with one mutex per engine or one engine per shard.
type Engine struct {
	sketches []*sketch.CountMin
	distinct []*sketch.HyperLogLog
	gate     *sampler.Gate
	executer DataExecuter

	columns      int
	expectedRows int64
	inserted     int64 // tuples offered, before gating
	admitted     int64 // tuples that passed the gate
	deleted      int64
}

// New creates an engine for the default two-column shape. The executer
// handle may be nil when no host row source exists (pure in-memory use).
func New(expectedRows int64, executer DataExecuter) (*Engine, error) {
	return NewWithConfig(Config{ExpectedRows: expectedRows}, executer)
}

// NewWithConfig creates an engine from an explicit configuration. All
// per-column sketches are sized identically. The fresh engine is prepared
// (empty) on return.
func NewWithConfig(cfg Config, executer DataExecuter) (*Engine, error) {
	if cfg.ExpectedRows < 0 {
		return nil, fmt.Errorf("%w: expected row count %d is negative", ErrInvalidInput, cfg.ExpectedRows)
	}
	if cfg.Columns < 0 {
		return nil, fmt.Errorf("%w: column count %d is negative", ErrInvalidInput, cfg.Columns)
	}

	columns := cfg.Columns
	if columns == 0 {
		columns = DefaultColumns
	}
	depth := cfg.Depth
	if depth == 0 {
		depth = DefaultDepth
	}
	rate := cfg.SamplingRate
	if rate == 0 {
		rate = DefaultSamplingRate
	}

	width := int(math.Ceil(float64(cfg.ExpectedRows) * widthFraction))
	if width < 1 {
		width = 1
	}

	var (
		gate *sampler.Gate
		err  error
	)
	if cfg.Seed != 0 {
		gate, err = sampler.NewGateWithSource(rate, newSeededSource(cfg.Seed))
	} else {
		gate, err = sampler.NewGate(rate)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	e := &Engine{
		sketches:     make([]*sketch.CountMin, columns),
		distinct:     make([]*sketch.HyperLogLog, columns),
		gate:         gate,
		executer:     executer,
		columns:      columns,
		expectedRows: cfg.ExpectedRows,
	}
	for i := range e.sketches {
		e.sketches[i] = sketch.NewCountMin(width, depth)
		e.distinct[i] = sketch.NewHyperLogLog(12)
	}

	e.Prepare()
	return e, nil
}

// InsertTuple offers one row to the engine. The tuple must carry at least
// one value per tracked column; extra positions are ignored. A single gate
// decision governs the whole row: either every tracked column's value is
// added to its sketch, or none is.
func (e *Engine) InsertTuple(tuple []int64) error {
	if len(tuple) < e.columns {
		return fmt.Errorf("%w: tuple has %d values, engine tracks %d columns", ErrInvalidInput, len(tuple), e.columns)
	}

	e.inserted++
	if !e.gate.ShouldSample() {
		return nil
	}

	e.admitted++
	for i := 0; i < e.columns; i++ {
		e.sketches[i].Add(tuple[i])
		e.distinct[i].Add(tuple[i])
	}
	return nil
}

// DeleteTuple removes one row. Deletions bypass the gate so that estimates
// do not drift upward as the workload churns, at the price of occasionally
// decrementing cells for a row that was never admitted; counters floor at
// zero so this cannot corrupt the tables, only loosen nearby estimates.
// rowID is the host's row identity and is accepted for interface
// compatibility only.
func (e *Engine) DeleteTuple(tuple []int64, rowID int64) error {
	if len(tuple) < e.columns {
		return fmt.Errorf("%w: tuple has %d values, engine tracks %d columns", ErrInvalidInput, len(tuple), e.columns)
	}

	_ = rowID
	e.deleted++
	for i := 0; i < e.columns; i++ {
		e.sketches[i].Remove(tuple[i])
	}
	return nil
}

// Query estimates how many rows satisfy all predicates conjunctively.
// Predicates on the same column keep the tightest (minimum) estimate;
// the result is the minimum across columns, the loosest correct upper
// bound available without joint statistics. The returned count is over
// sampled rows and is not rescaled by the sampling rate.
func (e *Engine) Query(preds []Predicate) (int64, error) {
	if len(preds) == 0 {
		return 0, fmt.Errorf("%w: empty predicate set", ErrInvalidInput)
	}

	perColumn := make(map[int]int64, e.columns)
	for _, p := range preds {
		if p.Column < 0 || p.Column >= e.columns {
			return 0, fmt.Errorf("%w: column %d outside tracked range [0, %d)", ErrInvalidInput, p.Column, e.columns)
		}

		est := e.sketches[p.Column].Estimate(p.Value)
		if cur, ok := perColumn[p.Column]; !ok || est < cur {
			perColumn[p.Column] = est
		}
	}

	result := int64(math.MaxInt64)
	for _, est := range perColumn {
		if est < result {
			result = est
		}
	}
	return result, nil
}

// Prepare discards all accumulated statistics, keeping sketch shapes. The
// host calls it to clear state between runs; construction calls it once.
func (e *Engine) Prepare() {
	for i := range e.sketches {
		e.sketches[i].Reset()
		e.distinct[i].Reset()
	}
	e.inserted = 0
	e.admitted = 0
	e.deleted = 0
}

// Columns returns the number of tracked columns.
func (e *Engine) Columns() int {
	return e.columns
}

// SamplingRate returns the gate's admission fraction. Consumers that want
// population-scaled figures divide estimates by it; the engine itself
// reports raw sampled counts.
func (e *Engine) SamplingRate() float64 {
	return e.gate.Rate()
}

// Executer returns the host row-source handle the engine was built with.
func (e *Engine) Executer() DataExecuter {
	return e.executer
}
