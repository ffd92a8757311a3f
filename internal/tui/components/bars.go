package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/theirongolddev/reelstats/internal/tui/theme"
)

// HoursBar renders a labeled bar of hours relative to maxHours, followed by
// the hour figure.
func HoursBar(label string, hours, maxHours float64, labelW, barWidth int) string {
	t := theme.Active

	pct := 0.0
	if maxHours > 0 {
		pct = max(0, min(hours/maxHours, 1))
	}

	bar := progress.New(
		progress.WithSolidFill(string(t.Green)),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.TextDim)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted).Background(t.Surface)
	valueStyle := lipgloss.NewStyle().Foreground(t.TextPrimary).Background(t.Surface).Bold(true)
	spaceStyle := lipgloss.NewStyle().Background(t.Surface)

	return labelStyle.Render(fmt.Sprintf("%-*s", labelW, label)) +
		spaceStyle.Render(" ") +
		bar.ViewAs(pct) +
		spaceStyle.Render(" ") +
		valueStyle.Render(fmt.Sprintf("%.1fh", hours))
}

// SplitBar renders a two-color bar of width cells where the first color
// covers a/(a+b) of the bar.
func SplitBar(a, b float64, width int) string {
	t := theme.Active
	aStyle := lipgloss.NewStyle().Foreground(t.Blue).Background(t.Surface)
	bStyle := lipgloss.NewStyle().Foreground(t.Orange).Background(t.Surface)
	emptyStyle := lipgloss.NewStyle().Foreground(t.TextDim).Background(t.Surface)

	if a+b <= 0 {
		return emptyStyle.Render(strings.Repeat("░", width))
	}
	left := int(a/(a+b)*float64(width) + 0.5)
	left = max(0, min(left, width))
	return aStyle.Render(strings.Repeat("█", left)) + bStyle.Render(strings.Repeat("█", width-left))
}

// Sparkline renders a unicode sparkline from values.
func Sparkline(values []float64, color lipgloss.Color) string {
	if len(values) == 0 {
		return ""
	}
	t := theme.Active

	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	peak := values[0]
	for _, v := range values[1:] {
		peak = max(peak, v)
	}
	if peak == 0 {
		peak = 1
	}

	var buf strings.Builder
	buf.Grow(len(values) * 3)
	for _, v := range values {
		idx := int(v / peak * float64(len(blocks)-1))
		buf.WriteRune(blocks[max(0, min(idx, len(blocks)-1))])
	}

	return lipgloss.NewStyle().Foreground(color).Background(t.Surface).Render(buf.String())
}
