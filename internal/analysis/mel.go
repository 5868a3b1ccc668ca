// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"meowsense/internal/fft"
)

// MelOf converts Hz to mel (HTK formula).
func MelOf(f float64) float64 {
	return 2595 * math.Log10(1+f/700)
}

// FreqOf converts mel back to Hz.
func FreqOf(m float64) float64 {
	return 700 * (math.Pow(10, m/2595) - 1)
}

// FilterbankConfig fully determines a filterbank.
type FilterbankConfig struct {
	SampleRate float64
	FFTSize    int
	Bands      int
	FMin       float64
	FMax       float64
}

// Filterbank is a [bands × fftSize/2+1] matrix of triangular weights.
// It is immutable after construction and shared by all classifications.
type Filterbank struct {
	cfg     FilterbankConfig
	edges   []float64 // bands+2 boundary frequencies in Hz
	weights [][]float64
}

// NewFilterbank builds the weight matrix. Each band's triangle is
// evaluated in Hz at every bin frequency bin*sampleRate/fftSize.
func NewFilterbank(cfg FilterbankConfig) (*Filterbank, error) {
	if err := fft.ValidateSize(cfg.FFTSize); err != nil {
		return nil, err
	}
	switch {
	case cfg.SampleRate <= 0:
		return nil, fmt.Errorf("filterbank sample rate must be positive, got %v", cfg.SampleRate)
	case cfg.Bands <= 0:
		return nil, fmt.Errorf("filterbank needs at least one band, got %d", cfg.Bands)
	case cfg.FMin < 0 || cfg.FMax <= cfg.FMin:
		return nil, fmt.Errorf("filterbank range [%v, %v] Hz is invalid", cfg.FMin, cfg.FMax)
	}

	melMin, melMax := MelOf(cfg.FMin), MelOf(cfg.FMax)
	edges := make([]float64, cfg.Bands+2)
	for i := range edges {
		edges[i] = FreqOf(melMin + float64(i)*(melMax-melMin)/float64(cfg.Bands+1))
	}

	bins := cfg.FFTSize/2 + 1
	weights := make([][]float64, cfg.Bands)
	for m := range weights {
		row := make([]float64, bins)
		left, center, right := edges[m], edges[m+1], edges[m+2]
		for k := range row {
			row[k] = triangle(float64(k)*cfg.SampleRate/float64(cfg.FFTSize), left, center, right)
		}
		weights[m] = row
	}

	return &Filterbank{cfg: cfg, edges: edges, weights: weights}, nil
}

func triangle(freq, left, center, right float64) float64 {
	switch {
	case freq < left || freq > right:
		return 0
	case freq <= center:
		if center == left {
			return 1
		}
		return (freq - left) / (center - left)
	default:
		if right == center {
			return 1
		}
		return (right - freq) / (right - center)
	}
}

// Config returns the parameters the filterbank was built from.
func (fb *Filterbank) Config() FilterbankConfig { return fb.cfg }

// Bands is the number of mel bands (rows).
func (fb *Filterbank) Bands() int { return fb.cfg.Bands }

// Bins is the number of FFT bins per row.
func (fb *Filterbank) Bins() int { return fb.cfg.FFTSize/2 + 1 }

// Row returns the weights of band m. The slice is shared; callers must
// not modify it.
func (fb *Filterbank) Row(m int) []float64 { return fb.weights[m] }

// Edges returns the left, centre and right frequencies of band m.
func (fb *Filterbank) Edges(m int) (left, center, right float64) {
	return fb.edges[m], fb.edges[m+1], fb.edges[m+2]
}

// Weight evaluates band m's triangle at an arbitrary frequency.
func (fb *Filterbank) Weight(m int, freq float64) float64 {
	left, center, right := fb.Edges(m)
	return triangle(freq, left, center, right)
}

// Apply writes the energy of each band for one power spectrum into dst,
// which must hold Bands values.
func (fb *Filterbank) Apply(dst, power []float64) {
	for m, row := range fb.weights {
		dst[m] = floats.Dot(row, power)
	}
}
