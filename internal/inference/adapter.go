// SPDX-License-Identifier: MIT

// Package inference is the boundary between the feature front-end and a
// trained classifier. Adapters receive a finished feature matrix and
// return one raw logit per class.
package inference

import (
	"context"

	"meowsense/internal/analysis"
)

// Adapter runs the classifier on one feature matrix. Implementations must
// not retain or modify m, and must return the same number of logits on
// every call.
type Adapter interface {
	Predict(ctx context.Context, m *analysis.FeatureMatrix) ([]float64, error)
}

// Sized is implemented by adapters that know their output width before
// the first call, so label tables can be checked at construction.
type Sized interface {
	NumClasses() int
}

// AdapterFunc turns a function into an Adapter.
type AdapterFunc func(ctx context.Context, m *analysis.FeatureMatrix) ([]float64, error)

// Predict calls f.
func (f AdapterFunc) Predict(ctx context.Context, m *analysis.FeatureMatrix) ([]float64, error) {
	return f(ctx, m)
}

// TensorShape is the model input layout: 1 × bands × frames × 1.
func TensorShape(m *analysis.FeatureMatrix) []int64 {
	return []int64{1, int64(m.Bands), int64(m.Frames), 1}
}

// Flatten copies m into a float32 buffer in TensorShape order. With the
// batch and channel axes both 1, the order is band-major like m.Data.
func Flatten(m *analysis.FeatureMatrix) []float32 {
	out := make([]float32, len(m.Data))
	for i, v := range m.Data {
		out[i] = float32(v)
	}
	return out
}
