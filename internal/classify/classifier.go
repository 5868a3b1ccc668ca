// SPDX-License-Identifier: MIT

// Package classify runs the full clip classification pipeline: resample,
// gate, log-mel feature extraction, model inference and postprocessing.
//
// A Classifier holds only read-only state after New returns, so one
// instance serves concurrent calls.
package classify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"meowsense/internal/analysis"
	"meowsense/internal/audio"
	"meowsense/internal/inference"
	"meowsense/internal/observe"
)

// ErrInference wraps every adapter failure. Callers get this error
// instead of a fabricated result.
var ErrInference = errors.New("inference failed")

// Options are the pipeline parameters. Zero values are not defaults; use
// DefaultOptions and override fields.
type Options struct {
	TargetSampleRate float64
	FFTSize          int
	HopSize          int
	MelBands         int
	FMin             float64
	FMax             float64
	TargetFrames     int
	GateThreshold    float64
	Enhance          bool

	Window    analysis.WindowFunc
	Resampler string
}

// DefaultOptions returns the parameters the bundled model was trained with.
func DefaultOptions() Options {
	return Options{
		TargetSampleRate: 22050,
		FFTSize:          2048,
		HopSize:          512,
		MelBands:         128,
		FMin:             0,
		FMax:             8000,
		TargetFrames:     174,
		GateThreshold:    audio.DefaultGateThreshold,
		Enhance:          true,
		Window:           analysis.Hann,
		Resampler:        audio.ResamplerLinear,
	}
}

// Option customises a Classifier.
type Option func(*Classifier)

// WithMetrics records to m instead of observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Classifier) { c.metrics = m }
}

// WithCalibrator replaces DefaultBoost when enhancement is enabled.
func WithCalibrator(cal Calibrator) Option {
	return func(c *Classifier) { c.calibrator = cal }
}

// Classifier is the pipeline orchestrator.
type Classifier struct {
	opts       Options
	resampler  audio.Resampler
	gate       *audio.Gate
	extractor  *analysis.Extractor
	adapter    inference.Adapter
	labels     *LabelTable
	calibrator Calibrator
	post       *Postprocessor
	metrics    *observe.Metrics
}

// New validates opts and builds the shared filterbank and window. When
// the adapter implements inference.Sized, its class count is checked
// against labels here.
func New(opts Options, adapter inference.Adapter, labels *LabelTable, options ...Option) (*Classifier, error) {
	if adapter == nil {
		return nil, errors.New("adapter is required")
	}
	if labels == nil {
		labels = DefaultLabels()
	}
	if sized, ok := adapter.(inference.Sized); ok {
		if n := sized.NumClasses(); n > 0 && n != labels.Len() {
			return nil, fmt.Errorf("%w: model has %d classes, table has %d", ErrLabelCount, n, labels.Len())
		}
	}
	if !(opts.TargetSampleRate > 0) {
		return nil, fmt.Errorf("target sample rate must be positive, got %v", opts.TargetSampleRate)
	}

	resampler, err := audio.NewResampler(opts.Resampler)
	if err != nil {
		return nil, err
	}
	extractor, err := analysis.NewExtractor(analysis.ExtractorConfig{
		SampleRate:   opts.TargetSampleRate,
		FFTSize:      opts.FFTSize,
		HopSize:      opts.HopSize,
		Bands:        opts.MelBands,
		FMin:         opts.FMin,
		FMax:         opts.FMax,
		TargetFrames: opts.TargetFrames,
		Window:       opts.Window,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid feature configuration: %w", err)
	}

	c := &Classifier{
		opts:       opts,
		resampler:  resampler,
		gate:       audio.NewGate(opts.GateThreshold),
		extractor:  extractor,
		adapter:    adapter,
		labels:     labels,
		calibrator: DefaultBoost,
	}
	for _, o := range options {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}

	var cal Calibrator
	if opts.Enhance {
		cal = c.calibrator
	}
	c.post = NewPostprocessor(labels, cal)
	return c, nil
}

// Options returns the parameters the classifier was built with.
func (c *Classifier) Options() Options { return c.opts }

// Labels returns the class table.
func (c *Classifier) Labels() *LabelTable { return c.labels }

// Classify runs the whole pipeline on one clip. Silent input and
// degenerate spectrograms produce stub results with a nil error. An
// error is returned only for invalid input signals and adapter failures.
func (c *Classifier) Classify(ctx context.Context, sig audio.Signal) (Result, error) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "classify.Classify",
		trace.WithAttributes(
			attribute.Float64("audio.sample_rate", sig.SampleRate),
			attribute.Int("audio.samples", len(sig.Samples)),
		),
	)
	defer span.End()

	res, err := c.classify(ctx, sig)
	c.metrics.ClassifyDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	span.SetAttributes(
		attribute.String("result.label", res.Label),
		attribute.String("result.outcome", string(res.Outcome)),
		attribute.Int("result.confidence", res.Confidence),
	)
	c.metrics.RecordClassification(ctx, res.Label, string(res.Outcome))
	return res, nil
}

func (c *Classifier) classify(ctx context.Context, sig audio.Signal) (Result, error) {
	if err := sig.Validate(); err != nil {
		return Result{}, err
	}
	duration := sig.Duration().Seconds()

	samples, err := c.resampler.Resample(sig, c.opts.TargetSampleRate)
	if err != nil {
		return Result{}, fmt.Errorf("resample: %w", err)
	}

	decision := c.gate.Apply(samples)
	if !decision.Proceed {
		observe.Logger(ctx).Debugf("Gate short-circuit: %s", decision.Reason)
		return silentResult(c.labels, decision.Reason, duration, decision.Strength), nil
	}

	m, err := c.extractor.Extract(decision.Normalized)
	if errors.Is(err, analysis.ErrNoEnergy) {
		observe.Logger(ctx).Debugf("Degenerate spectrogram: %v", err)
		return invalidResult(c.labels, OutcomeInvalidSpectrogram,
			"invalid spectrogram: no finite positive energy", duration, decision.Strength), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("feature extraction: %w", err)
	}

	return c.classifyFeatures(ctx, m, duration, decision.Strength)
}

// ClassifyFeatures runs inference and postprocessing on a prepared
// feature matrix. The matrix must have the configured shape. Matrices
// holding NaN or Inf never reach the adapter.
func (c *Classifier) ClassifyFeatures(ctx context.Context, m *analysis.FeatureMatrix) (Result, error) {
	res, err := c.classifyFeatures(ctx, m, 0, 0)
	if err == nil {
		c.metrics.RecordClassification(ctx, res.Label, string(res.Outcome))
	}
	return res, err
}

func (c *Classifier) classifyFeatures(ctx context.Context, m *analysis.FeatureMatrix, duration, strength float64) (Result, error) {
	if m.Bands != c.opts.MelBands || m.Frames != c.opts.TargetFrames {
		return Result{}, fmt.Errorf("feature matrix is %d×%d, want %d×%d",
			m.Bands, m.Frames, c.opts.MelBands, c.opts.TargetFrames)
	}
	if band, frame, bad := m.FirstNonFinite(); bad {
		reason := fmt.Sprintf("invalid data: non-finite value %v at band %d frame %d",
			m.At(band, frame), band, frame)
		observe.Logger(ctx).Warnf("Rejected feature matrix: %s", reason)
		return invalidResult(c.labels, OutcomeInvalidData, reason, duration, strength), nil
	}

	logits, err := c.predict(ctx, m)
	if err != nil {
		return Result{}, err
	}

	res, err := c.post.Process(logits)
	if errors.Is(err, ErrLabelCount) {
		return Result{}, err
	}
	if err != nil {
		c.metrics.RecordInferenceError(ctx)
		return Result{}, fmt.Errorf("%w: %w", ErrInference, err)
	}
	res.Duration = duration
	res.Strength = strength
	res.Diagnostic = diagnostic(res, c.labels)
	return res, nil
}

func (c *Classifier) predict(ctx context.Context, m *analysis.FeatureMatrix) ([]float64, error) {
	ctx, span := observe.StartSpan(ctx, "inference.Predict")
	defer span.End()

	start := time.Now()
	logits, err := c.adapter.Predict(ctx, m)
	c.metrics.InferenceDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		c.metrics.RecordInferenceError(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observe.Logger(ctx).Errorf("Inference failed: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}
	return logits, nil
}
