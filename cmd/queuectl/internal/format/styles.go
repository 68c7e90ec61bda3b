package format

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/queuectl/queuectl/pkg/job"
)

var stateStyles = map[job.State]lipgloss.Style{
	job.StatePending:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")), // yellow
	job.StateProcessing: lipgloss.NewStyle().Foreground(lipgloss.Color("12")), // blue
	job.StateCompleted:  lipgloss.NewStyle().Foreground(lipgloss.Color("10")), // green
	job.StateFailed:     lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
	job.StateDead:       lipgloss.NewStyle().Foreground(lipgloss.Color("9")), // red
}

var headerStyle = lipgloss.NewStyle().Bold(true)

// State renders a job state with its color, or plain text when color is off.
func State(s job.State, useColor bool) string {
	if !useColor {
		return string(s)
	}
	style, ok := stateStyles[s]
	if !ok {
		return string(s)
	}
	return style.Render(string(s))
}

// Header renders a section heading for status/metrics output.
func Header(text string, useColor bool) string {
	if !useColor {
		return text
	}
	return headerStyle.Render(text)
}
