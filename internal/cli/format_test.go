package cli

import "testing"

func TestFormatHours(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00h"},
		{7.9833, "7.98h"},
		{123.44, "123.4h"},
		{12345.6, "12,346h"},
	}
	for _, tt := range tests {
		if got := FormatHours(tt.in); got != tt.want {
			t.Fatalf("FormatHours(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatRuntime(t *testing.T) {
	if got := FormatRuntime(148); got != "2h 28m" {
		t.Fatalf("FormatRuntime(148) = %q", got)
	}
	if got := FormatRuntime(45); got != "45m" {
		t.Fatalf("FormatRuntime(45) = %q", got)
	}
	if got := FormatRuntime(0); got != "-" {
		t.Fatalf("FormatRuntime(0) = %q", got)
	}
}

func TestFormatNumber(t *testing.T) {
	for in, want := range map[int64]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567", -4200: "-4,200"} {
		if got := FormatNumber(in); got != want {
			t.Fatalf("FormatNumber(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatYearMonthAndRating(t *testing.T) {
	if got := FormatYearMonth("2024-03"); got != "Mar 2024" {
		t.Fatalf("FormatYearMonth = %q", got)
	}
	if got := FormatYearMonth("soon"); got != "soon" {
		t.Fatalf("FormatYearMonth passthrough = %q", got)
	}
	if got := FormatRating(4); got != "★★★★☆" {
		t.Fatalf("FormatRating(4) = %q", got)
	}
}
