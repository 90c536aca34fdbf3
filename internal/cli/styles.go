package cli

import "github.com/charmbracelet/lipgloss"

// Text-mode styles. Colors adapt to light and dark terminals; lipgloss
// drops them when the output is not a terminal.
var (
	HeadingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#1F4E79", Dark: "#7FB3E6"})

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#1E7B34", Dark: "#73D98C"})

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#B3261E", Dark: "#F28B82"})

	MutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#6B6B6B", Dark: "#9E9E9E"})
)
