// SPDX-License-Identifier: MIT
package classify

import (
	"fmt"
	"strings"
)

// Outcome tells a classified result apart from the stub results.
type Outcome string

const (
	OutcomeClassified         Outcome = "classified"
	OutcomeSilent             Outcome = "silent"
	OutcomeInvalidSpectrogram Outcome = "invalid_spectrogram"
	OutcomeInvalidData        Outcome = "invalid_data"
)

// Result is the outcome of one classification.
type Result struct {
	ID            string    `json:"id,omitempty"`
	Label         string    `json:"label"`
	Phrase        string    `json:"phrase"`
	Index         int       `json:"index"`
	Confidence    int       `json:"confidence"`
	Probabilities []float64 `json:"probabilities"`
	Diagnostic    string    `json:"diagnostic,omitempty"`
	Outcome       Outcome   `json:"outcome"`
	// Duration of the input clip in seconds.
	Duration float64 `json:"duration"`
	// Strength is the mean absolute amplitude after peak normalisation.
	Strength float64 `json:"strength"`
}

// silentResult is the confident background answer for quiet input.
func silentResult(labels *LabelTable, reason string, duration, strength float64) Result {
	probs := make([]float64, labels.Len())
	probs[0] = 1
	class := labels.At(0)
	return Result{
		Label:         class.Label,
		Phrase:        class.Phrase,
		Index:         0,
		Confidence:    100,
		Probabilities: probs,
		Diagnostic:    reason,
		Outcome:       OutcomeSilent,
		Duration:      duration,
		Strength:      strength,
	}
}

// invalidResult is the zero-confidence answer used when no usable
// features could be produced.
func invalidResult(labels *LabelTable, outcome Outcome, reason string, duration, strength float64) Result {
	class := labels.At(0)
	return Result{
		Label:         class.Label,
		Phrase:        class.Phrase,
		Index:         0,
		Confidence:    0,
		Probabilities: make([]float64, labels.Len()),
		Diagnostic:    reason,
		Outcome:       outcome,
		Duration:      duration,
		Strength:      strength,
	}
}

// diagnostic renders the per-class breakdown for a classified result.
func diagnostic(r Result, labels *LabelTable) string {
	var b strings.Builder
	b.WriteString("Cat Sound Analysis\n")
	fmt.Fprintf(&b, "Detected context: %s (%s)\n", r.Phrase, r.Label)
	fmt.Fprintf(&b, "Confidence: %d%%\n", r.Confidence)
	fmt.Fprintf(&b, "Audio duration: %.2f s\n", r.Duration)
	fmt.Fprintf(&b, "Signal strength: %.6f\n", r.Strength)
	for i, p := range r.Probabilities {
		fmt.Fprintf(&b, "Class %d (%s): %.1f%%\n", i, labels.At(i).Label, p*100)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
