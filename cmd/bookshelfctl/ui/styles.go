package ui

import "github.com/charmbracelet/lipgloss"

// Status badges share a fixed width so report columns line up
var badge = lipgloss.NewStyle().Bold(true).Width(4).Align(lipgloss.Center)

var (
	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true).
			Foreground(lipgloss.Color("75")).
			MarginBottom(1)

	okStyle   = badge.Foreground(lipgloss.Color("34"))
	skipStyle = badge.Foreground(lipgloss.Color("178"))
	failStyle = badge.Foreground(lipgloss.Color("160"))

	detailStyle = lipgloss.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("245"))

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("34"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("160"))
)
