// SPDX-License-Identifier: MIT

// Package analysis turns a normalised clip into the fixed-shape
// log-mel feature matrix the classifier consumes: framing and windowing,
// the mel filterbank, and assembly with per-clip dB scaling and padding.
package analysis

import "fmt"

// FrameCount is floor((n-frameSize)/hop)+1, or 0 when the signal is
// shorter than one frame.
func FrameCount(n, frameSize, hop int) int {
	if n < frameSize || frameSize <= 0 || hop <= 0 {
		return 0
	}
	return (n-frameSize)/hop + 1
}

// Framer slices a signal into overlapping windowed frames. It holds only
// immutable state and is safe for concurrent use.
type Framer struct {
	frameSize int
	hop       int
	window    []float64
}

// NewFramer precomputes the window for frameSize.
func NewFramer(frameSize, hop int, wf WindowFunc) (*Framer, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %d", frameSize)
	}
	if hop <= 0 {
		return nil, fmt.Errorf("hop size must be positive, got %d", hop)
	}
	return &Framer{
		frameSize: frameSize,
		hop:       hop,
		window:    wf.Coefficients(frameSize),
	}, nil
}

// FrameSize returns the frame length in samples.
func (f *Framer) FrameSize() int { return f.frameSize }

// Hop returns the hop length in samples.
func (f *Framer) Hop() int { return f.hop }

// Count returns the number of frames for a signal of n samples.
func (f *Framer) Count(n int) int {
	return FrameCount(n, f.frameSize, f.hop)
}

// Frames returns every windowed frame of samples as a fresh buffer.
func (f *Framer) Frames(samples []float64) [][]float64 {
	count := f.Count(len(samples))
	frames := make([][]float64, count)
	for i := range frames {
		frames[i] = make([]float64, f.frameSize)
		f.FrameInto(frames[i], samples, i)
	}
	return frames
}

// FrameInto writes windowed frame idx of samples into dst, zero-padding
// past the end of the signal. dst must hold FrameSize values.
func (f *Framer) FrameInto(dst, samples []float64, idx int) {
	start := idx * f.hop
	n := 0
	if start < len(samples) {
		n = copy(dst[:f.frameSize], samples[start:])
	}
	clear(dst[n:f.frameSize])
	for i := range n {
		dst[i] *= f.window[i]
	}
}
