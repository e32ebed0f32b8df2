// Package ui renders editguard output for the terminal.
package ui

import "github.com/charmbracelet/lipgloss"

// Semantic colors
var (
	Destructive = lipgloss.Color("#e53935") // Red
	Success     = lipgloss.Color("#8BC34A") // Lime Green
	Warning     = lipgloss.Color("#FFC107") // Yellow
	Info        = lipgloss.Color("#2196F3") // Blue
	Muted       = lipgloss.Color("#8a94a6")
	Primary     = lipgloss.Color("#101F38") // Dark Blue

	addedFg   = lipgloss.Color("#22c55e")
	addedBg   = lipgloss.Color("#052e16")
	removedFg = lipgloss.Color("#ef4444")
	removedBg = lipgloss.Color("#2d0a0a")
)

// Styles groups the styles used by the renderers.
type Styles struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Body    lipgloss.Style
	Added   lipgloss.Style
	Removed lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Box     lipgloss.Style
}

// DefaultStyles returns the standard palette.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(Muted).
			Padding(0, 1),
		Muted:   lipgloss.NewStyle().Foreground(Muted),
		Bold:    lipgloss.NewStyle().Bold(true),
		Body:    lipgloss.NewStyle(),
		Added:   lipgloss.NewStyle().Foreground(addedFg).Background(addedBg),
		Removed: lipgloss.NewStyle().Foreground(removedFg).Background(removedBg),
		Success: lipgloss.NewStyle().Foreground(Success).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(Destructive).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(Warning),
		Info:    lipgloss.NewStyle().Foreground(Info),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Warning).
			Padding(0, 1),
	}
}
