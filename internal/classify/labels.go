// SPDX-License-Identifier: MIT
package classify

import (
	"errors"
	"fmt"
)

// ErrLabelCount means the class table and the model disagree on the
// number of classes.
var ErrLabelCount = errors.New("label table size does not match model output")

// Class is one entry of a LabelTable.
type Class struct {
	Label  string `json:"label" yaml:"label"`
	Phrase string `json:"phrase" yaml:"phrase"`
}

// LabelTable maps class indices to labels in the order the model was
// trained on. Index 0 is the background class used by silent results.
// A table is immutable once built.
type LabelTable struct {
	classes []Class
}

// NewLabelTable copies classes into a table. Labels must be non-empty
// and unique.
func NewLabelTable(classes []Class) (*LabelTable, error) {
	if len(classes) == 0 {
		return nil, errors.New("label table is empty")
	}
	seen := make(map[string]int, len(classes))
	for i, c := range classes {
		if c.Label == "" {
			return nil, fmt.Errorf("class %d has an empty label", i)
		}
		if j, ok := seen[c.Label]; ok {
			return nil, fmt.Errorf("duplicate label %q at classes %d and %d", c.Label, j, i)
		}
		seen[c.Label] = i
	}
	return &LabelTable{classes: append([]Class(nil), classes...)}, nil
}

// DefaultClasses are the seven cat vocalisation contexts of the bundled
// model, in training order. The label spellings match the model's
// training data and must not be corrected.
var DefaultClasses = []Class{
	{Label: "Enviroment", Phrase: "Environment Sounds"},
	{Label: "Growl", Phrase: "I'm angry. Get away from me!"},
	{Label: "Hissing", Phrase: "I feel threatened and scared. Leave me alone!"},
	{Label: "Satistfied", Phrase: "I am super satisfied! I love you!"},
	{Label: "Attention", Phrase: "Pet me! I want to play with you"},
	{Label: "Isolation", Phrase: "I feel lonely. Where are you?"},
	{Label: "Hungry", Phrase: "I'm hungry! Feed me now, please!"},
}

// DefaultLabels returns a table built from DefaultClasses.
func DefaultLabels() *LabelTable {
	t, err := NewLabelTable(DefaultClasses)
	if err != nil {
		panic(err)
	}
	return t
}

// Len is the number of classes.
func (t *LabelTable) Len() int { return len(t.classes) }

// At returns class i.
func (t *LabelTable) At(i int) Class { return t.classes[i] }

// Classes returns a copy of the table entries.
func (t *LabelTable) Classes() []Class {
	return append([]Class(nil), t.classes...)
}
