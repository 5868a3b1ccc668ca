// SPDX-License-Identifier: MIT
package analysis

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"meowsense/internal/fft"
)

// ErrNoEnergy means no mel cell held a finite positive value, so the
// clip has no reference level for dB scaling.
var ErrNoEnergy = errors.New("spectrogram has no finite positive energy")

const powerFloor = 1e-10

// FeatureMatrix is a band-major [Bands × Frames] log-mel spectrogram.
type FeatureMatrix struct {
	Bands  int
	Frames int
	Data   []float64 // Data[b*Frames+f]
}

// NewFeatureMatrix allocates a zero-filled matrix.
func NewFeatureMatrix(bands, frames int) *FeatureMatrix {
	return &FeatureMatrix{Bands: bands, Frames: frames, Data: make([]float64, bands*frames)}
}

// At returns the value for band b, frame f.
func (m *FeatureMatrix) At(b, f int) float64 { return m.Data[b*m.Frames+f] }

// Set stores v at band b, frame f.
func (m *FeatureMatrix) Set(b, f int, v float64) { m.Data[b*m.Frames+f] = v }

// Row returns band b. The slice aliases the matrix.
func (m *FeatureMatrix) Row(b int) []float64 { return m.Data[b*m.Frames : (b+1)*m.Frames] }

// FirstNonFinite returns the position of the first NaN or Inf cell.
func (m *FeatureMatrix) FirstNonFinite() (band, frame int, ok bool) {
	for i, v := range m.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i / m.Frames, i % m.Frames, true
		}
	}
	return 0, 0, false
}

// Assembler applies the filterbank, scales to dB relative to the clip's
// peak and pads or truncates to a fixed frame count.
type Assembler struct {
	fb           *Filterbank
	targetFrames int
}

// NewAssembler binds a filterbank to an output frame count.
func NewAssembler(fb *Filterbank, targetFrames int) (*Assembler, error) {
	if targetFrames <= 0 {
		return nil, fmt.Errorf("target frame count must be positive, got %d", targetFrames)
	}
	return &Assembler{fb: fb, targetFrames: targetFrames}, nil
}

// TargetFrames is the fixed output width.
func (a *Assembler) TargetFrames() int { return a.targetFrames }

// Assemble builds the feature matrix from per-frame power spectra. The
// result always has Bands × TargetFrames cells. When the spectra hold no
// finite positive energy the matrix is all zeros and ErrNoEnergy is
// returned alongside it.
func (a *Assembler) Assemble(spectra [][]float64) (*FeatureMatrix, error) {
	bands := a.fb.Bands()
	out := NewFeatureMatrix(bands, a.targetFrames)
	if len(spectra) == 0 {
		return out, ErrNoEnergy
	}

	mel := NewFeatureMatrix(bands, len(spectra))
	energy := make([]float64, bands)
	for f, power := range spectra {
		a.fb.Apply(energy, power)
		for b, e := range energy {
			mel.Set(b, f, e)
		}
	}

	maxPower := 0.0
	for _, v := range mel.Data {
		if v > maxPower && !math.IsInf(v, 1) {
			maxPower = v
		}
	}
	if maxPower == 0 {
		return out, ErrNoEnergy
	}

	keep := min(len(spectra), a.targetFrames)
	for b := range bands {
		src, dst := mel.Row(b), out.Row(b)
		for f := range keep {
			dst[f] = 10 * math.Log10(math.Max(src[f], powerFloor)/maxPower)
		}
	}
	return out, nil
}

// ExtractorConfig parameterises Extractor.
type ExtractorConfig struct {
	SampleRate   float64
	FFTSize      int
	HopSize      int
	Bands        int
	FMin         float64
	FMax         float64
	TargetFrames int
	Window       WindowFunc
}

// Extractor runs framing, FFT and assembly for one clip. The filterbank
// and window are built once; FFT scratch space is pooled so concurrent
// calls do not share buffers.
type Extractor struct {
	cfg       ExtractorConfig
	framer    *Framer
	fb        *Filterbank
	assembler *Assembler
	analyzers sync.Pool
}

// NewExtractor validates cfg and builds the shared read-only state.
func NewExtractor(cfg ExtractorConfig) (*Extractor, error) {
	if err := fft.ValidateSize(cfg.FFTSize); err != nil {
		return nil, err
	}
	framer, err := NewFramer(cfg.FFTSize, cfg.HopSize, cfg.Window)
	if err != nil {
		return nil, err
	}
	fb, err := NewFilterbank(FilterbankConfig{
		SampleRate: cfg.SampleRate,
		FFTSize:    cfg.FFTSize,
		Bands:      cfg.Bands,
		FMin:       cfg.FMin,
		FMax:       cfg.FMax,
	})
	if err != nil {
		return nil, err
	}
	assembler, err := NewAssembler(fb, cfg.TargetFrames)
	if err != nil {
		return nil, err
	}

	e := &Extractor{cfg: cfg, framer: framer, fb: fb, assembler: assembler}
	e.analyzers.New = func() any {
		// Size was validated above.
		a, _ := fft.NewAnalyzer(cfg.FFTSize, cfg.SampleRate)
		return a
	}
	return e, nil
}

// Filterbank exposes the shared filterbank.
func (e *Extractor) Filterbank() *Filterbank { return e.fb }

// Config returns the extractor parameters.
func (e *Extractor) Config() ExtractorConfig { return e.cfg }

// Extract computes the feature matrix for normalised samples at the
// configured sample rate. See Assembler.Assemble for ErrNoEnergy.
func (e *Extractor) Extract(samples []float64) (*FeatureMatrix, error) {
	analyzer := e.analyzers.Get().(*fft.Analyzer)
	defer e.analyzers.Put(analyzer)

	count := e.framer.Count(len(samples))
	frame := make([]float64, e.framer.FrameSize())
	spectra := make([][]float64, count)
	for i := range spectra {
		e.framer.FrameInto(frame, samples, i)
		spectra[i] = make([]float64, analyzer.Bins())
		analyzer.PowerSpectrumInto(spectra[i], frame)
	}
	return e.assembler.Assemble(spectra)
}
