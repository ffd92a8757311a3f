package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette for plain CLI output. The TUI uses the configurable themes instead.
var (
	ColorBorder    = lipgloss.Color("#282726")
	ColorTextDim   = lipgloss.Color("#575653")
	ColorTextMuted = lipgloss.Color("#6F6E69")
	ColorText      = lipgloss.Color("#FFFCF0")
	ColorAccent    = lipgloss.Color("#3AA99F")
	ColorGreen     = lipgloss.Color("#879A39")
	ColorOrange    = lipgloss.Color("#DA702C")
	ColorBlue      = lipgloss.Color("#4385BE")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorText).Align(lipgloss.Center)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	valueStyle  = lipgloss.NewStyle().Foreground(ColorText)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorTextMuted)
	hoursStyle  = lipgloss.NewStyle().Foreground(ColorGreen)
	labelStyle  = lipgloss.NewStyle().Foreground(ColorBlue)
	warnStyle   = lipgloss.NewStyle().Foreground(ColorOrange)
	dimStyle    = lipgloss.NewStyle().Foreground(ColorTextDim)
)

// Table represents a bordered text table for CLI output.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	// Align holds one byte per column, 'l' or 'r'. Missing columns use
	// left for the first and right for the rest.
	Align string
}

// RenderTitle renders a centered title bar in a bordered box.
func RenderTitle(title string) string {
	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(55).
		Align(lipgloss.Center).
		Padding(0, 1)

	return border.Render(titleStyle.Render(title))
}

func (t Table) columns() int {
	n := len(t.Headers)
	for _, row := range t.Rows {
		n = max(n, len(row))
	}
	return n
}

func (t Table) rightAligned(col int) bool {
	if col < len(t.Align) {
		return t.Align[col] == 'r'
	}
	return col > 0
}

// widths measures display width, so multi-byte cells such as star ratings
// line up.
func (t Table) widths(n int) []int {
	w := make([]int, n)
	for i, h := range t.Headers {
		w[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			w[i] = max(w[i], lipgloss.Width(cell))
		}
	}
	return w
}

func rule(widths []int, left, mid, right string) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("─", w+2)
	}
	return dimStyle.Render(left+strings.Join(parts, mid)+right) + "\n"
}

func pad(cell string, width int, right bool) string {
	gap := strings.Repeat(" ", max(0, width-lipgloss.Width(cell)))
	if right {
		return " " + gap + cell + " "
	}
	return " " + cell + gap + " "
}

// RenderTable renders a bordered table with headers and rows. A row holding
// the single cell "---" renders as a separator.
func RenderTable(t Table) string {
	n := t.columns()
	if n == 0 {
		return ""
	}
	widths := t.widths(n)
	sep := dimStyle.Render("│")

	line := func(cells []string, style lipgloss.Style) string {
		var b strings.Builder
		b.WriteString(sep)
		for i := range n {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			b.WriteString(style.Render(pad(cell, widths[i], t.rightAligned(i))))
			b.WriteString(sep)
		}
		b.WriteString("\n")
		return b.String()
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  " + headerStyle.Render(t.Title) + "\n")
	}
	b.WriteString(rule(widths, "╭", "┬", "╮"))
	if len(t.Headers) > 0 {
		b.WriteString(line(t.Headers, headerStyle))
		b.WriteString(rule(widths, "├", "┼", "┤"))
	}
	for _, row := range t.Rows {
		if len(row) == 1 && row[0] == "---" {
			b.WriteString(rule(widths, "├", "┼", "┤"))
			continue
		}
		b.WriteString(line(row, valueStyle))
	}
	b.WriteString(rule(widths, "╰", "┴", "╯"))
	return b.String()
}

// RenderProgressBar renders count as a share of total followed by
// "count/total".
func RenderProgressBar(count, total, width int) string {
	if total <= 0 {
		return ""
	}
	filled := max(0, min(count*width/total, width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("[%s] %s/%s", hoursStyle.Render(bar), FormatNumber(int64(count)), FormatNumber(int64(total)))
}

// RenderSparkline draws values as a row of block characters scaled to the
// largest value.
func RenderSparkline(values []float64) string {
	const blocks = "▁▂▃▄▅▆▇█"
	levels := []rune(blocks)

	var peak float64
	for _, v := range values {
		peak = max(peak, v)
	}
	if peak == 0 {
		peak = 1
	}

	out := make([]rune, len(values))
	for i, v := range values {
		idx := int(v / peak * float64(len(levels)-1))
		out[i] = levels[max(0, min(idx, len(levels)-1))]
	}
	return hoursStyle.Render(string(out))
}

// RenderHorizontalBar renders a labeled bar chart entry followed by its
// formatted value.
func RenderHorizontalBar(label string, value, maxValue float64, maxWidth int, shown string) string {
	barLen := 0
	if maxValue > 0 {
		barLen = int(value / maxValue * float64(maxWidth))
	}
	barLen = max(0, min(barLen, maxWidth))
	bar := strings.Repeat("█", barLen) + strings.Repeat(" ", maxWidth-barLen)
	return fmt.Sprintf("  %s %s %s", labelStyle.Render(label), hoursStyle.Render(bar), valueStyle.Render(shown))
}

// RenderKV renders an aligned "label  value" summary line.
func RenderKV(label, value string) string {
	return fmt.Sprintf("  %s %s", mutedStyle.Render(fmt.Sprintf("%-16s", label)), valueStyle.Render(value))
}

// Hours styles an hour figure.
func Hours(s string) string { return hoursStyle.Render(s) }

// Muted styles secondary text.
func Muted(s string) string { return mutedStyle.Render(s) }

// Warn styles a warning.
func Warn(s string) string { return warnStyle.Render(s) }
