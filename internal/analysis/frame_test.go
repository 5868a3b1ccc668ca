// SPDX-License-Identifier: MIT
package analysis

import (
	"math"
	"testing"

	"meowsense/pkg/utils"
)

func TestFrameCount(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		frameSize int
		hop       int
		want      int
	}{
		{"Shorter Than Frame", 2047, 2048, 512, 0},
		{"Exactly One Frame", 2048, 2048, 512, 1},
		{"One Hop More", 2560, 2048, 512, 2},
		{"Partial Hop Dropped", 2559, 2048, 512, 1},
		{"Three Seconds At 22050", 66150, 2048, 512, 126},
		{"Empty", 0, 2048, 512, 0},
		{"Bad Hop", 4096, 2048, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FrameCount(tt.n, tt.frameSize, tt.hop); got != tt.want {
				t.Errorf("FrameCount(%d, %d, %d) = %d, want %d", tt.n, tt.frameSize, tt.hop, got, tt.want)
			}
		})
	}
}

func TestHannCoefficients(t *testing.T) {
	const n = 2048
	w := Hann.Coefficients(n)

	for i, got := range w {
		want := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
		if math.Abs(got-want) > 1e-12 {
			t.Fatalf("w[%d] = %v, want %v", i, got, want)
		}
	}
	if w[0] != 0 || math.Abs(w[n-1]) > 1e-12 {
		t.Errorf("symmetric Hann should be zero at both ends, got %v and %v", w[0], w[n-1])
	}
}

func TestFramerAppliesWindow(t *testing.T) {
	f, err := NewFramer(8, 4, Hann)
	if err != nil {
		t.Fatal(err)
	}
	samples := utils.GenerateConstant(16, 1)
	frames := f.Frames(samples)

	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	w := Hann.Coefficients(8)
	for i, frame := range frames {
		for j := range frame {
			if math.Abs(frame[j]-w[j]) > 1e-12 {
				t.Fatalf("frame %d[%d] = %v, want %v", i, j, frame[j], w[j])
			}
		}
	}
	// The input must not be windowed in place.
	if samples[0] != 1 {
		t.Error("Frames mutated its input")
	}
}

func TestFramerFrameIntoZeroPads(t *testing.T) {
	f, err := NewFramer(4, 2, Rectangular)
	if err != nil {
		t.Fatal(err)
	}
	dst := []float64{9, 9, 9, 9}
	f.FrameInto(dst, []float64{1, 2, 3, 4, 5}, 2) // starts at 4

	want := []float64{5, 0, 0, 0}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestFramerShortSignal(t *testing.T) {
	f, err := NewFramer(2048, 512, Hann)
	if err != nil {
		t.Fatal(err)
	}
	if frames := f.Frames(make([]float64, 1000)); len(frames) != 0 {
		t.Errorf("got %d frames for a short signal, want 0", len(frames))
	}
}

func TestNewFramerValidation(t *testing.T) {
	if _, err := NewFramer(0, 512, Hann); err == nil {
		t.Error("expected error for zero frame size")
	}
	if _, err := NewFramer(2048, -1, Hann); err == nil {
		t.Error("expected error for negative hop")
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		in      string
		want    WindowFunc
		wantErr bool
	}{
		{"", Hann, false},
		{"Hann", Hann, false},
		{"hanning", Hann, false},
		{"HAMMING", Hamming, false},
		{"blackman", Blackman, false},
		{"none", Rectangular, false},
		{"kaiser", Hann, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWindowFunc(tt.in)
			if got != tt.want || (err != nil) != tt.wantErr {
				t.Errorf("ParseWindowFunc(%q) = %v, %v; want %v, err=%v", tt.in, got, err, tt.want, tt.wantErr)
			}
		})
	}
}

func TestWindowFuncString(t *testing.T) {
	for w, name := range windowNames {
		parsed, err := ParseWindowFunc(w.String())
		if err != nil || parsed != w {
			t.Errorf("round trip of %q gave %v, %v", name, parsed, err)
		}
	}
	if got := WindowFunc(99).String(); got != "WindowFunc(99)" {
		t.Errorf("unknown String() = %q", got)
	}
}
