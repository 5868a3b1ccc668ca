// SPDX-License-Identifier: MIT

// Package fft computes one-sided power spectra of windowed frames.
package fft

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"

	"meowsense/pkg/bitint"
)

// ErrSizeNotPowerOfTwo is returned when an analyzer is built with a size
// the radix-2 FFT cannot handle.
var ErrSizeNotPowerOfTwo = errors.New("fft size must be a power of 2")

// Analyzer owns an FFT plan and its scratch buffers. It is not safe for
// concurrent use; give each goroutine its own Analyzer.
type Analyzer struct {
	size       int
	sampleRate float64
	fftObj     *fourier.FFT
	input      []float64
	coeffs     []complex128
}

// NewAnalyzer validates size and preallocates the plan.
func NewAnalyzer(size int, sampleRate float64) (*Analyzer, error) {
	if err := ValidateSize(size); err != nil {
		return nil, err
	}
	return &Analyzer{
		size:       size,
		sampleRate: sampleRate,
		fftObj:     fourier.NewFFT(size),
		input:      make([]float64, size),
		coeffs:     make([]complex128, size/2+1),
	}, nil
}

// ValidateSize reports whether size is usable, naming the nearest valid
// sizes when it is not.
func ValidateSize(size int) error {
	if bitint.IsPowerOfTwo(size) {
		return nil
	}
	if size < 2 {
		return fmt.Errorf("%w, got %d", ErrSizeNotPowerOfTwo, size)
	}
	return fmt.Errorf("%w, got %d (try %d or %d)", ErrSizeNotPowerOfTwo, size,
		bitint.PreviousPowerOfTwo(size), bitint.NextPowerOfTwo(size))
}

// Size is the FFT length.
func (a *Analyzer) Size() int { return a.size }

// Bins is the number of one-sided output bins, size/2+1.
func (a *Analyzer) Bins() int { return a.size/2 + 1 }

// PowerSpectrum returns re²+im² for bins 0..size/2 of frame. Frames
// shorter than the FFT are zero-padded, longer ones truncated.
func (a *Analyzer) PowerSpectrum(frame []float64) []float64 {
	dst := make([]float64, a.Bins())
	a.PowerSpectrumInto(dst, frame)
	return dst
}

// PowerSpectrumInto is PowerSpectrum writing into dst, which must hold
// at least Bins() values. It does not allocate.
func (a *Analyzer) PowerSpectrumInto(dst, frame []float64) {
	n := copy(a.input, frame)
	clear(a.input[n:])

	a.fftObj.Coefficients(a.coeffs, a.input)
	for i, c := range a.coeffs {
		re, im := real(c), imag(c)
		dst[i] = re*re + im*im
	}
}

// BinFrequency returns the centre frequency in Hz of bin i, or 0 when i
// is out of range.
func (a *Analyzer) BinFrequency(i int) float64 {
	if i < 0 || i >= a.Bins() {
		return 0
	}
	return a.fftObj.Freq(i) * a.sampleRate
}
