// SPDX-License-Identifier: MIT
package classify

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"meowsense/internal/analysis"
	"meowsense/internal/audio"
	"meowsense/internal/fft"
	"meowsense/internal/inference"
	"meowsense/internal/observe"
	"meowsense/pkg/utils"
)

// recordingAdapter returns fixed logits and keeps the last matrix it saw.
type recordingAdapter struct {
	mu     sync.Mutex
	logits []float64
	err    error
	calls  atomic.Int32
	last   *analysis.FeatureMatrix
}

func (a *recordingAdapter) Predict(_ context.Context, m *analysis.FeatureMatrix) ([]float64, error) {
	a.calls.Add(1)
	a.mu.Lock()
	a.last = m
	a.mu.Unlock()
	if a.err != nil {
		return nil, a.err
	}
	return append([]float64(nil), a.logits...), nil
}

type sizedAdapter struct {
	recordingAdapter
	n int
}

func (a *sizedAdapter) NumClasses() int { return a.n }

func hungryLogits() []float64 { return []float64{0, 0, 0, 0, 0, 0, 5} }

func newTestClassifier(t *testing.T, a inference.Adapter, opts Options) (*Classifier, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	c, err := New(opts, a, DefaultLabels(), WithMetrics(m))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, reader
}

func signal(t *testing.T, samples []float64, rate float64) audio.Signal {
	t.Helper()
	s, err := audio.NewSignal(samples, rate)
	if err != nil {
		t.Fatalf("NewSignal() error = %v", err)
	}
	return s
}

func TestClassifySilentClip(t *testing.T) {
	a := &recordingAdapter{logits: hungryLogits()}
	c, _ := newTestClassifier(t, a, DefaultOptions())

	res, err := c.Classify(context.Background(), signal(t, make([]float64, 3*44100), 44100))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if res.Index != 0 || res.Confidence != 100 || res.Outcome != OutcomeSilent {
		t.Errorf("Classify() = %+v, want silent class 0 at 100%%", res)
	}
	for i, p := range res.Probabilities {
		want := 0.0
		if i == 0 {
			want = 1
		}
		if p != want {
			t.Errorf("Probabilities[%d] = %v, want %v", i, p, want)
		}
	}
	if res.Diagnostic != "silent or invalid audio" {
		t.Errorf("Diagnostic = %q", res.Diagnostic)
	}
	if math.Abs(res.Duration-3) > 1e-9 {
		t.Errorf("Duration = %v, want 3", res.Duration)
	}
	if a.calls.Load() != 0 {
		t.Error("adapter called for silent input")
	}
}

func TestClassifyWeakSignal(t *testing.T) {
	samples := make([]float64, 22050)
	samples[100] = 0.8 // one spike: strength 1/22050
	opts := DefaultOptions()
	a := &recordingAdapter{logits: hungryLogits()}
	c, _ := newTestClassifier(t, a, opts)

	res, err := c.Classify(context.Background(), signal(t, samples, 22050))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if res.Outcome != OutcomeSilent || res.Confidence != 100 {
		t.Errorf("Classify() = %+v, want silent", res)
	}
	if !strings.Contains(res.Diagnostic, "strength") {
		t.Errorf("Diagnostic = %q, want measured strength", res.Diagnostic)
	}
	if res.Strength <= 0 || res.Strength >= opts.GateThreshold {
		t.Errorf("Strength = %v, want in (0, %v)", res.Strength, opts.GateThreshold)
	}
}

func TestClassifySineTone(t *testing.T) {
	a := &recordingAdapter{logits: hungryLogits()}
	c, reader := newTestClassifier(t, a, DefaultOptions())

	samples := utils.GenerateSineWave(3*44100, 44100, 440, 0.5)
	res, err := c.Classify(context.Background(), signal(t, samples, 44100))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if a.calls.Load() != 1 {
		t.Fatalf("adapter calls = %d, want 1", a.calls.Load())
	}

	m := a.last
	if m.Bands != 128 || m.Frames != 174 || len(m.Data) != 128*174 {
		t.Fatalf("matrix shape = %d×%d (%d cells), want 128×174", m.Bands, m.Frames, len(m.Data))
	}
	peak := math.Inf(-1)
	for _, v := range m.Data {
		if v > 0 || math.IsNaN(v) {
			t.Fatalf("cell = %v, want finite and <= 0", v)
		}
		peak = math.Max(peak, v)
	}
	if peak != 0 {
		t.Errorf("max cell = %v, want 0", peak)
	}
	// 66150 samples at 22050 Hz give 126 frames; the rest is padding.
	for b := range m.Bands {
		for f := analysis.FrameCount(66150, 2048, 512); f < m.Frames; f++ {
			if m.At(b, f) != 0 {
				t.Fatalf("padding cell (%d,%d) = %v, want 0", b, f, m.At(b, f))
			}
		}
	}

	if res.Outcome != OutcomeClassified || res.Label != "Hungry" {
		t.Errorf("Classify() = %+v, want classified Hungry", res)
	}
	if res.Strength < 0.6 || res.Strength > 0.7 {
		t.Errorf("Strength = %v, want about 2/pi", res.Strength)
	}
	for _, want := range []string{"Cat Sound Analysis", "Class 6 (Hungry)", "Confidence: "} {
		if !strings.Contains(res.Diagnostic, want) {
			t.Errorf("Diagnostic missing %q:\n%s", want, res.Diagnostic)
		}
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name == "meowsense.classifications" {
				found = true
			}
		}
	}
	if !found {
		t.Error("classification counter not recorded")
	}
}

func TestClassifyFeaturesRejectsNonFinite(t *testing.T) {
	tests := []struct {
		name  string
		value float64
	}{
		{"NaN", math.NaN()},
		{"+Inf", math.Inf(1)},
		{"-Inf", math.Inf(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &recordingAdapter{logits: hungryLogits()}
			c, _ := newTestClassifier(t, a, DefaultOptions())

			m := analysis.NewFeatureMatrix(128, 174)
			m.Set(17, 42, tt.value)
			res, err := c.ClassifyFeatures(context.Background(), m)
			if err != nil {
				t.Fatalf("ClassifyFeatures() error = %v", err)
			}
			if a.calls.Load() != 0 {
				t.Fatal("adapter received a non-finite matrix")
			}
			if res.Outcome != OutcomeInvalidData || res.Confidence != 0 {
				t.Errorf("ClassifyFeatures() = %+v, want invalid data stub", res)
			}
			for i, p := range res.Probabilities {
				if p != 0 {
					t.Errorf("Probabilities[%d] = %v, want 0", i, p)
				}
			}
			if !strings.Contains(res.Diagnostic, "band 17 frame 42") {
				t.Errorf("Diagnostic = %q", res.Diagnostic)
			}
		})
	}
}

func TestClassifyShortClipIsInvalidSpectrogram(t *testing.T) {
	a := &recordingAdapter{logits: hungryLogits()}
	c, _ := newTestClassifier(t, a, DefaultOptions())

	// Shorter than one FFT frame: no spectra, so no energy.
	samples := utils.GenerateSineWave(1000, 22050, 440, 0.5)
	res, err := c.Classify(context.Background(), signal(t, samples, 22050))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if res.Outcome != OutcomeInvalidSpectrogram || res.Confidence != 0 {
		t.Errorf("Classify() = %+v, want invalid spectrogram stub", res)
	}
	if a.calls.Load() != 0 {
		t.Error("adapter called without features")
	}
}

func TestClassifyAdapterFailure(t *testing.T) {
	boom := errors.New("session closed")
	a := &recordingAdapter{err: boom}
	c, _ := newTestClassifier(t, a, DefaultOptions())

	samples := utils.GenerateComplexWave(22050, 22050)
	_, err := c.Classify(context.Background(), signal(t, samples, 22050))
	if !errors.Is(err, ErrInference) || !errors.Is(err, boom) {
		t.Errorf("Classify() error = %v, want ErrInference wrapping adapter error", err)
	}
}

func TestClassifyLogitCountMismatch(t *testing.T) {
	a := &recordingAdapter{logits: []float64{1, 2, 3}}
	c, _ := newTestClassifier(t, a, DefaultOptions())

	_, err := c.ClassifyFeatures(context.Background(), analysis.NewFeatureMatrix(128, 174))
	if !errors.Is(err, ErrLabelCount) {
		t.Errorf("ClassifyFeatures() error = %v, want ErrLabelCount", err)
	}
}

func TestClassifyFeaturesShape(t *testing.T) {
	a := &recordingAdapter{logits: hungryLogits()}
	c, _ := newTestClassifier(t, a, DefaultOptions())

	if _, err := c.ClassifyFeatures(context.Background(), analysis.NewFeatureMatrix(64, 174)); err == nil {
		t.Error("ClassifyFeatures() accepted a 64-band matrix")
	}
}

func TestClassifyInvalidSignal(t *testing.T) {
	a := &recordingAdapter{logits: hungryLogits()}
	c, _ := newTestClassifier(t, a, DefaultOptions())

	_, err := c.Classify(context.Background(), audio.Signal{SampleRate: 44100})
	if !errors.Is(err, audio.ErrEmptySignal) {
		t.Errorf("Classify() error = %v, want ErrEmptySignal", err)
	}
}

func TestNewValidation(t *testing.T) {
	adapter := &recordingAdapter{logits: hungryLogits()}

	t.Run("fft size", func(t *testing.T) {
		opts := DefaultOptions()
		opts.FFTSize = 2000
		if _, err := New(opts, adapter, nil); !errors.Is(err, fft.ErrSizeNotPowerOfTwo) {
			t.Errorf("New() error = %v, want ErrSizeNotPowerOfTwo", err)
		}
	})

	t.Run("sized adapter mismatch", func(t *testing.T) {
		a := &sizedAdapter{n: 10}
		if _, err := New(DefaultOptions(), a, DefaultLabels()); !errors.Is(err, ErrLabelCount) {
			t.Errorf("New() error = %v, want ErrLabelCount", err)
		}
	})

	t.Run("sized adapter match", func(t *testing.T) {
		a := &sizedAdapter{n: 7}
		if _, err := New(DefaultOptions(), a, DefaultLabels()); err != nil {
			t.Errorf("New() error = %v", err)
		}
	})

	t.Run("nil adapter", func(t *testing.T) {
		if _, err := New(DefaultOptions(), nil, nil); err == nil {
			t.Error("New() accepted a nil adapter")
		}
	})

	t.Run("unknown resampler", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Resampler = "cubic"
		if _, err := New(opts, adapter, nil); err == nil {
			t.Error("New() accepted an unknown resampler")
		}
	})
}

func TestEnhanceToggle(t *testing.T) {
	logits := []float64{math.Log(0.4), math.Log(0.1), math.Log(0.1), math.Log(0.1), math.Log(0.1), math.Log(0.1), math.Log(0.1)}
	m := analysis.NewFeatureMatrix(128, 174)

	tests := []struct {
		enhance bool
		want    int
	}{
		{false, 40},
		{true, 72},
	}
	for _, tt := range tests {
		opts := DefaultOptions()
		opts.Enhance = tt.enhance
		c, _ := newTestClassifier(t, &recordingAdapter{logits: logits}, opts)

		res, err := c.ClassifyFeatures(context.Background(), m)
		if err != nil {
			t.Fatalf("ClassifyFeatures() error = %v", err)
		}
		if res.Confidence != tt.want {
			t.Errorf("enhance=%v: Confidence = %d, want %d", tt.enhance, res.Confidence, tt.want)
		}
	}
}

func TestClassifyConcurrent(t *testing.T) {
	a := &recordingAdapter{logits: hungryLogits()}
	c, _ := newTestClassifier(t, a, DefaultOptions())

	want, err := c.Classify(context.Background(), signal(t, utils.GenerateComplexWave(44100, 44100), 44100))
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Classify(context.Background(), audio.Signal{
				Samples:    utils.GenerateComplexWave(44100, 44100),
				SampleRate: 44100,
			})
			if err != nil {
				errs <- err
				return
			}
			if got.Index != want.Index || got.Strength != want.Strength {
				errs <- errors.New("concurrent result differs from serial result")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
