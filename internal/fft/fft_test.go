// SPDX-License-Identifier: MIT
package fft

import (
	"errors"
	"math"
	"strings"
	"testing"

	"meowsense/pkg/utils"
)

const (
	testFFTSize    = 2048
	testSampleRate = 22050
)

func TestNewAnalyzerRejectsBadSizes(t *testing.T) {
	tests := []struct {
		size   int
		substr string
	}{
		{0, "got 0"},
		{-4, "got -4"},
		{2000, "try 1024 or 2048"},
		{3, "try 2 or 4"},
	}

	for _, tt := range tests {
		_, err := NewAnalyzer(tt.size, testSampleRate)
		if !errors.Is(err, ErrSizeNotPowerOfTwo) {
			t.Errorf("NewAnalyzer(%d) error = %v, want ErrSizeNotPowerOfTwo", tt.size, err)
			continue
		}
		if !strings.Contains(err.Error(), tt.substr) {
			t.Errorf("NewAnalyzer(%d) error = %q, want substring %q", tt.size, err, tt.substr)
		}
	}
}

func TestPowerSpectrumPeak(t *testing.T) {
	a, err := NewAnalyzer(testFFTSize, testSampleRate)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		freq float64
	}{
		{"A4", 440},
		{"1 kHz", 1000},
		{"4 kHz", 4000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := utils.GenerateSineWave(testFFTSize, testSampleRate, tt.freq, 1)
			power := a.PowerSpectrum(frame)

			if len(power) != testFFTSize/2+1 {
				t.Fatalf("len = %d, want %d", len(power), testFFTSize/2+1)
			}
			peak := utils.FindPeakBin(power, 0, len(power)-1)
			want := int(math.Round(tt.freq * testFFTSize / testSampleRate))
			if peak < want-1 || peak > want+1 {
				t.Errorf("peak bin = %d (%.1f Hz), want %d±1", peak, a.BinFrequency(peak), want)
			}
		})
	}
}

func TestPowerSpectrumIsSquaredMagnitude(t *testing.T) {
	a, err := NewAnalyzer(8, 8)
	if err != nil {
		t.Fatal(err)
	}
	// A unit impulse has a flat spectrum of magnitude 1; a DC frame of
	// ones puts all energy, N², in bin 0.
	impulse := []float64{1, 0, 0, 0, 0, 0, 0, 0}
	for i, p := range a.PowerSpectrum(impulse) {
		if math.Abs(p-1) > 1e-12 {
			t.Errorf("impulse bin %d = %v, want 1", i, p)
		}
	}

	dc := utils.GenerateConstant(8, 1)
	power := a.PowerSpectrum(dc)
	if math.Abs(power[0]-64) > 1e-9 {
		t.Errorf("dc bin 0 = %v, want 64", power[0])
	}
	for i := 1; i < len(power); i++ {
		if math.Abs(power[i]) > 1e-9 {
			t.Errorf("dc bin %d = %v, want 0", i, power[i])
		}
	}
}

func TestPowerSpectrumZeroPadsShortFrames(t *testing.T) {
	a, err := NewAnalyzer(8, 8)
	if err != nil {
		t.Fatal(err)
	}
	_ = a.PowerSpectrum(utils.GenerateConstant(8, 5))

	// Scratch from the previous call must not leak into this one.
	power := a.PowerSpectrum([]float64{1})
	for i, p := range power {
		if math.Abs(p-1) > 1e-12 {
			t.Errorf("bin %d = %v, want 1", i, p)
		}
	}
}

func TestFFTHotPath(t *testing.T) {
	a, err := NewAnalyzer(testFFTSize, testSampleRate)
	if err != nil {
		t.Fatal(err)
	}
	frame := utils.GenerateComplexWave(testFFTSize, testSampleRate)
	dst := make([]float64, a.Bins())

	a.PowerSpectrumInto(dst, frame)
	allocs := testing.AllocsPerRun(100, func() {
		a.PowerSpectrumInto(dst, frame)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in PowerSpectrumInto, got %.1f", allocs)
	}
}

func TestBinFrequency(t *testing.T) {
	a, err := NewAnalyzer(testFFTSize, testSampleRate)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		bin  int
		want float64
	}{
		{-1, 0},
		{0, 0},
		{1, testSampleRate / float64(testFFTSize)},
		{testFFTSize / 2, testSampleRate / 2},
		{testFFTSize/2 + 1, 0},
	}
	for _, tt := range tests {
		if got := a.BinFrequency(tt.bin); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("BinFrequency(%d) = %v, want %v", tt.bin, got, tt.want)
		}
	}
}

func BenchmarkPowerSpectrum(b *testing.B) {
	a, err := NewAnalyzer(testFFTSize, testSampleRate)
	if err != nil {
		b.Fatal(err)
	}
	frame := utils.GenerateComplexWave(testFFTSize, testSampleRate)
	dst := make([]float64, a.Bins())

	b.ReportAllocs()
	for b.Loop() {
		a.PowerSpectrumInto(dst, frame)
	}
}
