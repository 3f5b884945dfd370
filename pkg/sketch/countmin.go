// Package sketch provides probabilistic data structures for approximate
// column statistics: a Count-Min sketch for per-value frequencies and a
// HyperLogLog for distinct-value counts.
package sketch

import "math"

// Row hash parameters. The bucket for (value, row) is
//
//	((mult*value + offset*row) mod prime) mod width
//
// The multiplier is odd and the per-row offset is distinct for distinct
// rows, so rows index independently for typical inputs. These constants
// must not change while a sketch holds data: Remove and Estimate must hit
// the exact cells Add used.
const (
	hashMultiplier = 31
	hashRowOffset  = 17
	hashPrime      = 15485863
)

// CountMin is a Count-Min sketch over int64 values: a depth×width table of
// counters where each row indexes the value independently. Estimates are
// the minimum counter across rows and never undercount in an insert-only
// workload; deletions are floored at zero, so after deletes the usual
// overestimation guarantee no longer holds.
//
// A CountMin is not safe for concurrent use.
type CountMin struct {
	table [][]int64
	width int
	depth int
	count int64 // net additions, floored at 0
}

// NewCountMin creates a sketch with the given dimensions. Width and depth
// are clamped to at least 1 so a degenerate configuration cannot produce a
// modulo-by-zero.
func NewCountMin(width, depth int) *CountMin {
	if width < 1 {
		width = 1
	}
	if depth < 1 {
		depth = 1
	}

	table := make([][]int64, depth)
	for i := range table {
		table[i] = make([]int64, width)
	}

	return &CountMin{
		table: table,
		width: width,
		depth: depth,
	}
}

// Width returns the number of counters per row.
func (c *CountMin) Width() int {
	return c.width
}

// Depth returns the number of rows (independent hash functions).
func (c *CountMin) Depth() int {
	return c.depth
}

// Count returns the net number of additions (additions minus removals,
// floored at zero). It is the N in the classic epsilon*N error bound.
func (c *CountMin) Count() int64 {
	return c.count
}

// bucket computes the column index for value in the given row. Go's %
// follows the sign of the dividend, so negative values are folded back
// into [0, prime) before the final reduction.
func (c *CountMin) bucket(value int64, row int) int {
	h := (hashMultiplier*value + hashRowOffset*int64(row)) % hashPrime
	if h < 0 {
		h += hashPrime
	}
	return int(h % int64(c.width))
}

// Add increments one counter per row for the value.
func (c *CountMin) Add(value int64) {
	for i := 0; i < c.depth; i++ {
		c.table[i][c.bucket(value, i)]++
	}
	c.count++
}

// Remove decrements one counter per row for the value, flooring each
// counter at zero. Removing a value that was never added only disturbs
// whatever colliding values share its cells; it cannot drive a counter
// negative.
func (c *CountMin) Remove(value int64) {
	for i := 0; i < c.depth; i++ {
		j := c.bucket(value, i)
		if c.table[i][j] > 0 {
			c.table[i][j]--
		}
	}
	if c.count > 0 {
		c.count--
	}
}

// Estimate returns the minimum counter across rows for the value. It does
// not mutate the sketch.
func (c *CountMin) Estimate(value int64) int64 {
	min := int64(math.MaxInt64)
	for i := 0; i < c.depth; i++ {
		if v := c.table[i][c.bucket(value, i)]; v < min {
			min = v
		}
	}
	return min
}

// ErrorBound returns the expected per-row overcount, count/width. The
// minimum across depth rows is typically far below this.
func (c *CountMin) ErrorBound() int64 {
	return c.count / int64(c.width)
}

// Reset zeroes every counter, keeping the dimensions. The row hash is
// unchanged, so a reset sketch accepts the same values as a fresh one.
func (c *CountMin) Reset() {
	for i := range c.table {
		row := c.table[i]
		for j := range row {
			row[j] = 0
		}
	}
	c.count = 0
}
