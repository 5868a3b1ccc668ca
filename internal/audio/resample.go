// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resampler names accepted by NewResampler.
const (
	ResamplerLinear    = "linear"
	ResamplerPolyphase = "polyphase"
)

// sameRateTolerance is the largest rate difference treated as "already
// at the target rate".
const sameRateTolerance = 1.0

// Resampler converts a signal to targetRate. Implementations never
// mutate the input.
type Resampler interface {
	Resample(s Signal, targetRate float64) ([]float64, error)
}

// NewResampler returns the resampler registered under name.
func NewResampler(name string) (Resampler, error) {
	switch name {
	case "", ResamplerLinear:
		return LinearResampler{}, nil
	case ResamplerPolyphase:
		return PolyphaseResampler{}, nil
	default:
		return nil, fmt.Errorf("unknown resampler %q (want %q or %q)", name, ResamplerLinear, ResamplerPolyphase)
	}
}

// LinearResampler is the reference resampler the model features were
// computed with: two-tap linear interpolation.
type LinearResampler struct{}

// Resample implements Resampler. It never fails.
func (LinearResampler) Resample(s Signal, targetRate float64) ([]float64, error) {
	return Resample(s, targetRate), nil
}

// Resample converts s to targetRate with linear interpolation. When the
// rates differ by less than 1 Hz the samples are returned unchanged.
func Resample(s Signal, targetRate float64) []float64 {
	if math.Abs(s.SampleRate-targetRate) < sameRateTolerance {
		return s.Samples
	}

	in := s.Samples
	ratio := s.SampleRate / targetRate
	outLen := int(math.Round(float64(len(in)) / ratio))
	out := make([]float64, outLen)

	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		switch {
		case idx+1 < len(in):
			out[i] = in[idx]*(1-frac) + in[idx+1]*frac
		case idx < len(in):
			out[i] = in[idx]
		default:
			out[i] = 0
		}
	}
	return out
}

// PolyphaseResampler uses a band-limited polyphase FIR. It is not the
// reference path: features computed through it differ numerically from
// the ones the model was trained on.
type PolyphaseResampler struct{}

// Resample implements Resampler.
func (PolyphaseResampler) Resample(s Signal, targetRate float64) ([]float64, error) {
	if math.Abs(s.SampleRate-targetRate) < sameRateTolerance {
		return s.Samples, nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  s.SampleRate,
		OutputRate: targetRate,
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create polyphase resampler: %w", err)
	}

	out, err := r.Process(s.Samples)
	if err != nil {
		return nil, fmt.Errorf("polyphase resample: %w", err)
	}
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("polyphase flush: %w", err)
	}
	return append(out, tail...), nil
}
