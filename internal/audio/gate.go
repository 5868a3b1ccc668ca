// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"
)

// DefaultGateThreshold is the mean absolute amplitude, after peak
// normalisation, below which a clip is treated as silence.
const DefaultGateThreshold = 0.001

// Gate peak-normalises a clip and rejects near-silent input.
type Gate struct {
	threshold float64
}

// NewGate returns a gate with the given strength threshold. Negative
// thresholds are clamped to zero, which only rejects all-zero or
// non-finite input.
func NewGate(threshold float64) *Gate {
	if threshold < 0 || math.IsNaN(threshold) {
		threshold = 0
	}
	return &Gate{threshold: threshold}
}

// Threshold returns the configured strength threshold.
func (g *Gate) Threshold() float64 {
	return g.threshold
}

// GateDecision is the outcome of Gate.Apply. When Proceed is false the
// clip must not be analysed further and Reason explains why.
type GateDecision struct {
	Proceed    bool
	Normalized []float64
	Peak       float64
	Strength   float64
	Reason     string
}

// Apply normalises samples by their peak absolute value and measures the
// mean absolute amplitude of the result. The input is not modified.
func (g *Gate) Apply(samples []float64) GateDecision {
	peak := 0.0
	for _, x := range samples {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return GateDecision{Peak: math.NaN(), Reason: "silent or invalid audio"}
		}
		if a := math.Abs(x); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return GateDecision{Reason: "silent or invalid audio"}
	}

	normalized := make([]float64, len(samples))
	sum := 0.0
	for i, x := range samples {
		normalized[i] = x / peak
		sum += math.Abs(normalized[i])
	}
	strength := sum / float64(len(samples))

	if strength < g.threshold {
		return GateDecision{
			Peak:     peak,
			Strength: strength,
			Reason:   fmt.Sprintf("signal too weak: strength %.6f below threshold %.6f", strength, g.threshold),
		}
	}

	return GateDecision{
		Proceed:    true,
		Normalized: normalized,
		Peak:       peak,
		Strength:   strength,
	}
}
