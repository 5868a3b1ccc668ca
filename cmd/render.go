// SPDX-License-Identifier: MIT
package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"meowsense/internal/classify"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6E7681"))

	highlightStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#25A065")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E0AF68")).
			Bold(true)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#25A065")).
			Padding(0, 1)
)

const barWidth = 20

// renderResult draws one result as a bordered card with a bar per class.
func renderResult(source string, r classify.Result, labels *classify.LabelTable) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(source))
	b.WriteString("\n\n")

	switch r.Outcome {
	case classify.OutcomeClassified:
		b.WriteString(highlightStyle.Render(r.Phrase))
		fmt.Fprintf(&b, "\n%s %d%%\n", infoStyle.Render(r.Label+" ·"), r.Confidence)
	default:
		b.WriteString(warnStyle.Render(string(r.Outcome)))
		fmt.Fprintf(&b, "\n%s\n", infoStyle.Render(r.Diagnostic))
	}
	fmt.Fprintf(&b, "%s\n\n", infoStyle.Render(fmt.Sprintf("%.2f s · strength %.4f", r.Duration, r.Strength)))

	width := 0
	for _, c := range labels.Classes() {
		width = max(width, len(c.Label))
	}
	for i, p := range r.Probabilities {
		filled := int(p*barWidth + 0.5)
		bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
		line := fmt.Sprintf("%-*s %s %5.1f%%", width, labels.At(i).Label, bar, p*100)
		if i == r.Index && r.Outcome == classify.OutcomeClassified {
			line = highlightStyle.Render(line)
		}
		b.WriteString(line)
		if i < len(r.Probabilities)-1 {
			b.WriteByte('\n')
		}
	}

	return cardStyle.Render(b.String())
}
