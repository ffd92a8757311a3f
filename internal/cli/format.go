// Package cli provides formatting and rendering utilities for terminal output.
package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatHours formats a fractional hour count.
// e.g., 7.9833 -> "7.98h", 123.4 -> "123.4h", 12345.6 -> "12,346h"
func FormatHours(h float64) string {
	switch {
	case h >= 1000:
		return FormatNumber(int64(h+0.5)) + "h"
	case h >= 100:
		return fmt.Sprintf("%.1fh", h)
	default:
		return fmt.Sprintf("%.2fh", h)
	}
}

// FormatRuntime formats minutes into a human-readable runtime.
// e.g., 148 -> "2h 28m", 45 -> "45m"
func FormatRuntime(minutes int) string {
	if minutes <= 0 {
		return "-"
	}
	if minutes >= 60 {
		return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}

	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// FormatPercent formats a 0-100 value as a percentage string.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

// FormatYearMonth turns "2024-03" into "Mar 2024". Unparseable input is
// returned unchanged.
func FormatYearMonth(ym string) string {
	t, err := time.Parse("2006-01", ym)
	if err != nil {
		return ym
	}
	return t.Format("Jan 2006")
}

// FormatRating renders a 0-5 rating as stars.
func FormatRating(r int) string {
	r = max(0, min(r, 5))
	return strings.Repeat("★", r) + strings.Repeat("☆", 5-r)
}

// Deref returns *s, or fallback when s is nil or empty.
func Deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
