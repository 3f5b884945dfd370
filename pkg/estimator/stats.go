package estimator

import "math/rand"

// ColumnStats describes one tracked column's sketch state.
type ColumnStats struct {
	Column         int    `json:"column"`
	SketchWidth    int    `json:"sketch_width"`
	SketchDepth    int    `json:"sketch_depth"`
	SampledCount   int64  `json:"sampled_count"`
	ErrorBound     int64  `json:"error_bound"`
	DistinctValues int64  `json:"distinct_values"`
	SketchType     string `json:"sketch_type"`
}

// Stats is a point-in-time snapshot of the engine.
type Stats struct {
	Columns      int           `json:"columns"`
	ExpectedRows int64         `json:"expected_rows"`
	SamplingRate float64       `json:"sampling_rate"`
	Inserted     int64         `json:"inserted"`
	Admitted     int64         `json:"admitted"`
	Deleted      int64         `json:"deleted"`
	PerColumn    []ColumnStats `json:"per_column"`
}

// Stats reports sketch shapes, traffic counters and per-column distinct
// estimates. Like every other engine method it must not race with
// concurrent mutations.
func (e *Engine) Stats() Stats {
	s := Stats{
		Columns:      e.columns,
		ExpectedRows: e.expectedRows,
		SamplingRate: e.gate.Rate(),
		Inserted:     e.inserted,
		Admitted:     e.admitted,
		Deleted:      e.deleted,
		PerColumn:    make([]ColumnStats, e.columns),
	}
	for i := 0; i < e.columns; i++ {
		cm := e.sketches[i]
		s.PerColumn[i] = ColumnStats{
			Column:         i,
			SketchWidth:    cm.Width(),
			SketchDepth:    cm.Depth(),
			SampledCount:   cm.Count(),
			ErrorBound:     cm.ErrorBound(),
			DistinctValues: e.distinct[i].Count(),
			SketchType:     string(cm.Type()),
		}
	}
	return s
}

func newSeededSource(seed int64) rand.Source {
	return rand.NewSource(seed)
}
