package sampler

import (
	"math"
	"math/rand"
	"testing"
)

func TestNewGate_RateValidation(t *testing.T) {
	tests := []struct {
		name    string
		rate    float64
		wantErr bool
	}{
		{"zero", 0, false},
		{"one", 1, false},
		{"typical", 0.1, false},
		{"negative", -0.01, true},
		{"above one", 1.01, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGate(tt.rate)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewGate(%f): err = %v, wantErr = %v", tt.rate, err, tt.wantErr)
			}
		})
	}
}

func TestGate_RateZeroNeverAdmits(t *testing.T) {
	g, err := NewGate(0)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	for i := 0; i < 10000; i++ {
		if g.ShouldSample() {
			t.Fatal("rate-0 gate admitted an event")
		}
	}
}

func TestGate_RateOneAlwaysAdmits(t *testing.T) {
	g, err := NewGate(1)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	for i := 0; i < 10000; i++ {
		if !g.ShouldSample() {
			t.Fatal("rate-1 gate rejected an event")
		}
	}
}

func TestGate_Convergence(t *testing.T) {
	const (
		rate  = 0.1
		draws = 100000
	)

	g, err := NewGateWithSource(rate, rand.NewSource(1))
	if err != nil {
		t.Fatalf("NewGateWithSource: %v", err)
	}

	admitted := 0
	for i := 0; i < draws; i++ {
		if g.ShouldSample() {
			admitted++
		}
	}

	got := float64(admitted) / draws
	// ~10 standard deviations of a Bernoulli(0.1) mean over 100k draws.
	if math.Abs(got-rate) > 0.01 {
		t.Errorf("admission fraction: got %f, want %f +/- 0.01", got, rate)
	}
}

func TestGate_Rate(t *testing.T) {
	g, err := NewGate(0.25)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	if got := g.Rate(); got != 0.25 {
		t.Errorf("Rate: got %f, want 0.25", got)
	}
}
