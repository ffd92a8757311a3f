package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/theirongolddev/reelstats/internal/tui/theme"
)

func init() {
	// Force TrueColor output so ANSI codes are generated in tests
	lipgloss.SetColorProfile(termenv.TrueColor)
}

func TestLayoutRowSumsToWidth(t *testing.T) {
	widths := LayoutRow(80, 3)
	if len(widths) != 3 || widths[0] != 27 || widths[1] != 27 || widths[2] != 26 {
		t.Fatalf("LayoutRow(80, 3) = %v, want [27 27 26]", widths)
	}
	if LayoutRow(10, 0) != nil {
		t.Fatal("LayoutRow with n=0 should be nil")
	}
}

func TestCardRowBackgroundFill(t *testing.T) {
	theme.SetActive("flexoki-dark")

	shortCard := ContentCard("Mar 2024", "2.5h", 22, false)
	tallCard := ContentCard("Feb 2024", "Line 1\nLine 2\nLine 3\nLine 4\nLine 5", 22, true)

	shortLines := len(strings.Split(shortCard, "\n"))
	tallLines := len(strings.Split(tallCard, "\n"))
	if shortLines >= tallLines {
		t.Fatal("Test setup error: short card should be shorter than tall card")
	}

	joined := CardRow([]string{tallCard, shortCard})
	lines := strings.Split(joined, "\n")
	if len(lines) != tallLines {
		t.Errorf("Joined height should match tallest card: got %d, want %d", len(lines), tallLines)
	}

	// After the short card ends, the padding must still carry background codes.
	for i := shortLines; i < len(lines); i++ {
		if !strings.Contains(lines[i], "\x1b[") {
			t.Errorf("Line %d has no ANSI codes", i)
		}
	}
}

func TestSplitBarWidth(t *testing.T) {
	for _, tt := range []struct{ a, b float64 }{{3, 1}, {0, 0}, {0, 5}, {5, 0}} {
		if got := lipgloss.Width(SplitBar(tt.a, tt.b, 20)); got != 20 {
			t.Errorf("SplitBar(%v, %v) width = %d, want 20", tt.a, tt.b, got)
		}
	}
}

func TestHoursBarShowsHours(t *testing.T) {
	out := HoursBar("Total", 7.98, 10, 8, 20)
	if !strings.Contains(out, "8.0h") {
		t.Fatalf("HoursBar output %q missing hour figure", out)
	}
}
