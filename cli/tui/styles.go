// Package tui provides the interactive terminal views of the flint CLI and
// the shared lipgloss styles used for operator messages.
//
// TUI is opt-in (--tui) and read-only: it shows the same data as the plain
// output of the same command.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	successColor   = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	highlightColor = lipgloss.Color("#3B82F6") // Blue
)

// Styles.
var (
	// TitleStyle for headers and titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// PromptStyle for instructions the operator must act on.
	PromptStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(warningColor)

	// MutedStyle for progress lines and secondary text.
	MutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// SuccessStyle for success states.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// ErrorStyle for error states.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// PreferredStyle marks the device a session would bind.
	PreferredStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(highlightColor)

	// HeaderStyle for table headers.
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(mutedColor)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)
