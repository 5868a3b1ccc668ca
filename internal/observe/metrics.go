// SPDX-License-Identifier: MIT

// Package observe provides OpenTelemetry metrics and tracing for the
// classification pipeline and its HTTP surface. Metrics are exported for
// scraping through a Prometheus bridge set up by InitProvider. Tests should
// build their own Metrics with NewMetrics and a manual reader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "meowsense"

// Metrics holds every instrument the application records. Safe for
// concurrent use.
type Metrics struct {
	// ClassifyDuration covers one clip from resampling to result.
	ClassifyDuration metric.Float64Histogram

	// InferenceDuration covers the adapter call only.
	InferenceDuration metric.Float64Histogram

	// Classifications counts results by label and outcome.
	Classifications metric.Int64Counter

	// InferenceErrors counts adapter failures.
	InferenceErrors metric.Int64Counter

	// HTTPRequestDuration is recorded by Middleware with method and path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets are in seconds. Model calls on CPU land in the 5-250 ms range.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ClassifyDuration, err = m.Float64Histogram("meowsense.classify.duration",
		metric.WithDescription("Latency of one clip classification."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.InferenceDuration, err = m.Float64Histogram("meowsense.inference.duration",
		metric.WithDescription("Latency of the model call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Classifications, err = m.Int64Counter("meowsense.classifications",
		metric.WithDescription("Classification results by label and outcome."),
	); err != nil {
		return nil, err
	}
	if met.InferenceErrors, err = m.Int64Counter("meowsense.inference.errors",
		metric.WithDescription("Model calls that returned an error."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("meowsense.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the process-wide instance built from the global
// meter provider on first use.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordClassification counts one result.
func (m *Metrics) RecordClassification(ctx context.Context, label, outcome string) {
	m.Classifications.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("label", label),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordInferenceError counts one adapter failure.
func (m *Metrics) RecordInferenceError(ctx context.Context) {
	m.InferenceErrors.Add(ctx, 1)
}
