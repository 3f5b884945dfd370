// Package sampler provides the randomized admission gate that bounds how
// much of the inserted workload reaches the sketches.
package sampler

import (
	"fmt"
	"math/rand"
	"time"
)

// Gate admits a configured fraction of events. Each gate owns its own
// generator state, so independent gates never contend or correlate. A Gate
// is stateful and not safe for concurrent use; callers serialize access
// along with the structures the gate feeds.
type Gate struct {
	rate float64
	rng  *rand.Rand
}

// NewGate creates a gate admitting the given fraction in [0, 1], seeded
// from the clock.
func NewGate(rate float64) (*Gate, error) {
	return NewGateWithSource(rate, rand.NewSource(time.Now().UnixNano()))
}

// NewGateWithSource creates a gate with an explicit random source, for
// reproducible runs.
func NewGateWithSource(rate float64, src rand.Source) (*Gate, error) {
	if rate < 0 || rate > 1 {
		return nil, fmt.Errorf("sampler: rate %f outside [0, 1]", rate)
	}
	return &Gate{rate: rate, rng: rand.New(src)}, nil
}

// ShouldSample draws one uniform value in [0, 1) and reports whether the
// event is admitted. The fraction of true results converges to the rate.
func (g *Gate) ShouldSample() bool {
	return g.rng.Float64() < g.rate
}

// Rate returns the configured admission fraction.
func (g *Gate) Rate() float64 {
	return g.rate
}
