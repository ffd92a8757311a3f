package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/reelstats/internal/tui/theme"
)

// RenderStatusBar renders the bottom status bar with key hints on the left
// and info right-aligned.
func RenderStatusBar(width int, hints, info string) string {
	t := theme.Active

	style := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.Background).
		Width(width)

	left := " " + hints
	right := info + " "
	padding := max(0, width-lipgloss.Width(left)-lipgloss.Width(right))

	return style.Render(left + strings.Repeat(" ", padding) + right)
}
