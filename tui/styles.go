package tui

import "github.com/charmbracelet/lipgloss"

var (
	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)

	answerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("10")).
			Padding(0, 1)

	agentStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	userStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	recordStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)
