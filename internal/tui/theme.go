package tui

import (
	"github.com/charmbracelet/lipgloss"

	"deadlinemaster/internal/countdown"
	"deadlinemaster/internal/domain"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	colorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	colorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	colorAmber  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	colorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	colorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	colorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	colorSubtle = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorWhite).
	Background(colorBlue).
	Padding(0, 1)

var statusBarStyle = lipgloss.NewStyle().
	Foreground(colorWhite).
	Background(colorSubtle).
	Padding(0, 1)

var helpStyle = lipgloss.NewStyle().
	Foreground(colorGray).
	Italic(true)

var errorStyle = lipgloss.NewStyle().Foreground(colorRed).Bold(true)

var doneTitleStyle = lipgloss.NewStyle().Foreground(colorGray).Strikethrough(true)

// tierStyle colours a countdown by how close it is.
func tierStyle(tr countdown.TimeRemaining) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch {
	case tr.Completed:
		return base.Foreground(colorGreen)
	case tr.IsOverdue, tr.Urgency == countdown.UrgencyUrgent:
		return base.Foreground(colorRed)
	case tr.Urgency == countdown.UrgencyWarning:
		return base.Foreground(colorAmber)
	}
	return base.Foreground(colorGreen)
}

func priorityStyle(p domain.Priority) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch p {
	case domain.PriorityHigh:
		return base.Foreground(colorRed)
	case domain.PriorityMedium:
		return base.Foreground(colorAmber)
	}
	return base.Foreground(colorGreen)
}
