// SPDX-License-Identifier: MIT

/*
Package audio covers everything between a raw audio source and the
feature front-end: the Signal type, resampling to the model rate, the
silence gate, file decoding (WAV, MP3), WAV writing and PortAudio clip
capture.

Signals are mono. Multi-channel sources keep channel 0.
*/
package audio

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrEmptySignal       = errors.New("audio signal is empty")
	ErrInvalidRate       = errors.New("sample rate must be positive")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Signal is a mono clip tagged with its sample rate. It is treated as
// immutable once constructed.
type Signal struct {
	Samples    []float64
	SampleRate float64
}

// NewSignal validates and wraps samples.
func NewSignal(samples []float64, sampleRate float64) (Signal, error) {
	s := Signal{Samples: samples, SampleRate: sampleRate}
	if err := s.Validate(); err != nil {
		return Signal{}, err
	}
	return s, nil
}

// Validate checks the non-empty and positive-rate invariants.
func (s Signal) Validate() error {
	if len(s.Samples) == 0 {
		return ErrEmptySignal
	}
	if !(s.SampleRate > 0) || math.IsInf(s.SampleRate, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidRate, s.SampleRate)
	}
	return nil
}

// Duration is the clip length.
func (s Signal) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(s.Samples)) / s.SampleRate * float64(time.Second))
}
