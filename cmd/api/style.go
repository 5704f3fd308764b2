package main

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"project-health-backend/internal/projecthealth"
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	styleLabel   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Width(18)
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleRisk    = map[projecthealth.RiskLevel]lipgloss.Style{
		projecthealth.RiskLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		projecthealth.RiskMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		projecthealth.RiskHigh:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
)

func renderRisk(level projecthealth.RiskLevel) string {
	if s, ok := styleRisk[level]; ok {
		return s.Render("[" + string(level) + "]")
	}
	return "[" + string(level) + "]"
}

// renderMarkdown renders markdown text for terminal display.
func renderMarkdown(text string) string {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(out)
}
