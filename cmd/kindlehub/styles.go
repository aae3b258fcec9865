package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/kindlehubapp/kindlehub/internal/batch"
)

// Colors used in command output.
var (
	colorPrimary = lipgloss.Color("62")  // Purple
	colorMuted   = lipgloss.Color("241") // Gray
	colorSuccess = lipgloss.Color("78")  // Green
	colorWarning = lipgloss.Color("214") // Amber
	colorError   = lipgloss.Color("203") // Red
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)

	headerCell = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Padding(0, 1)
	bodyCell   = lipgloss.NewStyle().Padding(0, 1)
)

// newTable returns a bordered table with styled headers.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCell
			}
			return bodyCell
		})
}

func severityStyle(s batch.Severity) lipgloss.Style {
	switch s {
	case batch.SeverityError:
		return errorStyle
	case batch.SeverityWarning:
		return warningStyle
	default:
		return mutedStyle
	}
}
