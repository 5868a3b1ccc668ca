// SPDX-License-Identifier: MIT
package analysis

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects the taper applied to each frame before the FFT.
type WindowFunc int

const (
	Hann WindowFunc = iota
	Hamming
	Blackman
	BlackmanNuttall
	BartlettHann
	Nuttall
	Rectangular
)

var windowNames = map[WindowFunc]string{
	Hann:            "hann",
	Hamming:         "hamming",
	Blackman:        "blackman",
	BlackmanNuttall: "blackmannuttall",
	BartlettHann:    "bartletthann",
	Nuttall:         "nuttall",
	Rectangular:     "rectangular",
}

func (w WindowFunc) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return fmt.Sprintf("WindowFunc(%d)", int(w))
}

// ParseWindowFunc converts a case-insensitive name to a WindowFunc. Unknown
// names return Hann and an error.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "hann", "hanning":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "blackman":
		return Blackman, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "bartletthann":
		return BartlettHann, nil
	case "nuttall":
		return Nuttall, nil
	case "rectangular", "none":
		return Rectangular, nil
	default:
		return Hann, fmt.Errorf("unknown window function name: '%s'", name)
	}
}

// Coefficients returns n window weights. Hann is the symmetric form
// 0.5*(1-cos(2πi/(n-1))).
func (w WindowFunc) Coefficients(n int) []float64 {
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	if n < 2 {
		return coeffs
	}

	switch w {
	case Hamming:
		window.Hamming(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	case Rectangular:
	default:
		window.Hann(coeffs)
	}
	return coeffs
}
