// SPDX-License-Identifier: MIT

// Package utils holds signal generators and fakes shared by package tests.
package utils

import (
	"math"
	"sync"
)

// MockTransport records every payload it is asked to send.
type MockTransport struct {
	mu       sync.Mutex
	payloads []any
	closed   bool
}

// Send stores the payload for later inspection.
func (m *MockTransport) Send(data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payloads = append(m.payloads, data)
	return nil
}

// Close marks the transport closed.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Payloads returns a copy of the recorded payloads in send order.
func (m *MockTransport) Payloads() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.payloads))
	copy(out, m.payloads)
	return out
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// GenerateSineWave returns size samples of a sine at frequency Hz.
func GenerateSineWave(size int, sampleRate, frequency, amplitude float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = amplitude * math.Sin(2*math.Pi*frequency*t)
	}
	return buffer
}

// GenerateComplexWave returns a 440 Hz fundamental with two harmonics,
// peaking just under 1.0.
func GenerateComplexWave(size int, sampleRate float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		buffer[i] = 0.9 * (math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2)
	}
	return buffer
}

// GenerateConstant returns size samples all equal to value.
func GenerateConstant(size int, value float64) []float64 {
	buffer := make([]float64, size)
	for i := range buffer {
		buffer[i] = value
	}
	return buffer
}

// FindPeakBin returns the index of the largest value in
// values[startBin:endBin+1], clamping the range to the slice.
func FindPeakBin(values []float64, startBin, endBin int) int {
	if len(values) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(values) {
		endBin = len(values) - 1
	}

	peakBin := startBin
	peakValue := values[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if values[bin] > peakValue {
			peakValue = values[bin]
			peakBin = bin
		}
	}
	return peakBin
}
