// SPDX-License-Identifier: MIT
package classify

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Softmax converts logits to probabilities. The maximum logit is
// subtracted before exponentiating so large inputs do not overflow.
func Softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}
	peak := floats.Max(logits)
	out := make([]float64, len(logits))
	for i, v := range logits {
		out[i] = math.Exp(v - peak)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out
}

// Calibrator adjusts a probability vector after softmax. Implementations
// must return a new slice of the same length whose entries are
// non-negative and sum to 1.
type Calibrator interface {
	Calibrate(probs []float64) []float64
}

// BoostCalibrator sharpens under-confident predictions by raising the
// top class toward a cap and rescaling the rest so their relative
// weights are unchanged.
//
// A strong boost applies when the top probability exceeds StrongMin and
// leads the runner-up by more than Margin. A gentle boost applies when
// the top probability is above GentleMin but not above StrongMin.
// Anything else passes through unchanged.
type BoostCalibrator struct {
	StrongMin    float64
	Margin       float64
	StrongFactor float64
	// HighMin raises the strong factor to HighFactor for top
	// probabilities that are already high.
	HighMin    float64
	HighFactor float64
	StrongCap  float64

	GentleMin    float64
	GentleFactor float64
	GentleCap    float64
}

// DefaultBoost is the calibration shipped with the bundled model.
var DefaultBoost = BoostCalibrator{
	StrongMin:    0.2,
	Margin:       0.02,
	StrongFactor: 1.5,
	HighMin:      0.3,
	HighFactor:   1.8,
	StrongCap:    0.92,
	GentleMin:    0.15,
	GentleFactor: 1.3,
	GentleCap:    0.80,
}

// Calibrate implements Calibrator.
func (c BoostCalibrator) Calibrate(probs []float64) []float64 {
	out := append([]float64(nil), probs...)
	if len(out) < 2 {
		return out
	}

	top := floats.MaxIdx(out)
	best := out[top]
	second := math.Inf(-1)
	for i, p := range out {
		if i != top && p > second {
			second = p
		}
	}

	var factor, ceiling float64
	switch {
	case best > c.StrongMin && best-second > c.Margin:
		factor, ceiling = c.StrongFactor, c.StrongCap
		if best > c.HighMin {
			factor = c.HighFactor
		}
	case best > c.GentleMin && best <= c.StrongMin:
		factor, ceiling = c.GentleFactor, c.GentleCap
	default:
		return out
	}

	boosted := math.Max(best, math.Min(best*factor, ceiling))
	if boosted == best || best >= 1 {
		return out
	}

	scale := (1 - boosted) / (1 - best)
	for i := range out {
		if i == top {
			out[i] = boosted
		} else {
			out[i] *= scale
		}
	}
	return out
}

var errNonFiniteLogits = errors.New("logits contain NaN or Inf")

// Postprocessor turns logits into a Result.
type Postprocessor struct {
	labels     *LabelTable
	calibrator Calibrator
}

// NewPostprocessor binds a label table and an optional calibrator. A nil
// calibrator leaves softmax output unchanged.
func NewPostprocessor(labels *LabelTable, cal Calibrator) *Postprocessor {
	return &Postprocessor{labels: labels, calibrator: cal}
}

// Process applies softmax and calibration, then picks the top class. The
// returned Result has no diagnostic text and zero clip metadata.
func (p *Postprocessor) Process(logits []float64) (Result, error) {
	if len(logits) != p.labels.Len() {
		return Result{}, fmt.Errorf("%w: got %d logits for %d classes", ErrLabelCount, len(logits), p.labels.Len())
	}
	for _, v := range logits {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Result{}, errNonFiniteLogits
		}
	}

	probs := Softmax(logits)
	if p.calibrator != nil {
		probs = p.calibrator.Calibrate(probs)
	}

	idx := floats.MaxIdx(probs)
	class := p.labels.At(idx)
	return Result{
		Label:         class.Label,
		Phrase:        class.Phrase,
		Index:         idx,
		Confidence:    int(math.Round(probs[idx] * 100)),
		Probabilities: probs,
		Outcome:       OutcomeClassified,
	}, nil
}
