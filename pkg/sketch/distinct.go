package sketch

import (
	"encoding/binary"
	"math"
	"math/bits"

	"github.com/cespare/xxhash/v2"
)

// HyperLogLog estimates the number of distinct int64 values added. It is
// maintained per tracked column as a reported statistic; nothing in the
// estimation path consults it. Standard error is roughly 1.04/sqrt(m).
//
// A HyperLogLog is not safe for concurrent use.
type HyperLogLog struct {
	registers []uint8
	b         uint8  // register index bits, m = 2^b
	m         uint32 // number of registers
	alpha     float64
}

// NewHyperLogLog creates a HyperLogLog with 2^b registers. Values of b
// outside [4, 16] fall back to 12 (4096 registers, ~1.6% standard error).
func NewHyperLogLog(b uint8) *HyperLogLog {
	if b < 4 || b > 16 {
		b = 12
	}

	m := uint32(1) << b

	var alpha float64
	switch {
	case m >= 128:
		alpha = 0.7213 / (1 + 1.079/float64(m))
	case m >= 64:
		alpha = 0.709
	case m >= 32:
		alpha = 0.697
	default:
		alpha = 0.673
	}

	return &HyperLogLog{
		registers: make([]uint8, m),
		b:         b,
		m:         m,
		alpha:     alpha,
	}
}

// Add records a value.
func (h *HyperLogLog) Add(value int64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(value))
	hash := xxhash.Sum64(buf[:])

	// Low b bits select the register, the rest feed the rank.
	j := hash & uint64(h.m-1)
	w := hash >> h.b

	rank := uint8(bits.TrailingZeros64(w)) + 1
	maxRank := uint8(64-h.b) + 1
	if rank > maxRank {
		rank = maxRank
	}

	if rank > h.registers[j] {
		h.registers[j] = rank
	}
}

// Count estimates the number of distinct values added.
func (h *HyperLogLog) Count() int64 {
	sum := 0.0
	zeros := 0
	for _, r := range h.registers {
		sum += 1.0 / float64(uint64(1)<<r)
		if r == 0 {
			zeros++
		}
	}

	raw := h.alpha * float64(h.m) * float64(h.m) / sum

	// Small-range correction: linear counting while registers are sparse.
	if raw <= 2.5*float64(h.m) && zeros != 0 {
		return int64(float64(h.m) * math.Log(float64(h.m)/float64(zeros)))
	}

	return int64(raw)
}

// StandardError returns the theoretical relative standard error.
func (h *HyperLogLog) StandardError() float64 {
	return 1.04 / math.Sqrt(float64(h.m))
}

// Reset zeroes all registers.
func (h *HyperLogLog) Reset() {
	for i := range h.registers {
		h.registers[i] = 0
	}
}
