package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ogulcanaydogan/norway-alerts/pkg/model"
)

var (
	levelColors = map[model.Level]lipgloss.Color{
		model.LevelGreen:  lipgloss.Color("2"),
		model.LevelYellow: lipgloss.Color("3"),
		model.LevelOrange: lipgloss.Color("208"),
		model.LevelRed:    lipgloss.Color("1"),
		model.LevelBlack:  lipgloss.Color("245"),
	}

	titleStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// levelLabel renders a level name in its warning colour.
func levelLabel(l model.Level) string {
	color, ok := levelColors[l]
	if !ok {
		return l.Color()
	}
	return lipgloss.NewStyle().Foreground(color).Bold(true).Render(l.Color())
}
