package model

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidPeriod is returned for period tokens outside the accepted vocabulary.
var ErrInvalidPeriod = errors.New("model: invalid period")

// Period selects the time window of a statistic.
type Period string

// Period tokens. Any "YYYY-MM" string is also accepted.
const (
	PeriodAll       Period = "all"
	PeriodMonth     Period = "month"
	PeriodLastMonth Period = "last_month"
	PeriodYear      Period = "year"
)

var yearMonthRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// YearMonthLayout is the time layout of a "YYYY-MM" token.
const YearMonthLayout = "2006-01"

// ParsePeriod validates s. The empty string means all time.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "":
		return PeriodAll, nil
	case PeriodAll, PeriodMonth, PeriodLastMonth, PeriodYear:
		return Period(s), nil
	}
	if yearMonthRe.MatchString(s) {
		return Period(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

// IsYearMonth reports whether p names a specific calendar month.
func (p Period) IsYearMonth() bool {
	return yearMonthRe.MatchString(string(p))
}

// DateRange bounds a query. A zero Start or End leaves that side open.
// Both bounds are inclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the range is unbounded on both sides.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Contains reports whether t lies within the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// Range resolves p against now. "month" and "year" are open-ended so that
// records stamped slightly in the future still count.
func (p Period) Range(now time.Time) DateRange {
	loc := now.Location()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)

	switch p {
	case PeriodMonth:
		return DateRange{Start: monthStart}
	case PeriodLastMonth:
		return DateRange{
			Start: monthStart.AddDate(0, -1, 0),
			End:   monthStart.Add(-time.Millisecond),
		}
	case PeriodYear:
		return DateRange{Start: time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)}
	}

	if p.IsYearMonth() {
		start, _ := time.ParseInLocation(YearMonthLayout, string(p), loc)
		return MonthRange(start)
	}
	return DateRange{}
}

// MonthRange spans the whole calendar month containing t.
func MonthRange(t time.Time) DateRange {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return DateRange{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Millisecond)}
}

// ParseYearMonth parses a "YYYY-MM" token into the first instant of that month.
func ParseYearMonth(s string, loc *time.Location) (time.Time, error) {
	if !yearMonthRe.MatchString(s) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return time.ParseInLocation(YearMonthLayout, s, loc)
}

// FormatYearMonth renders t as "YYYY-MM".
func FormatYearMonth(t time.Time) string {
	return t.Format(YearMonthLayout)
}

// PreviousYearMonth returns the month before a valid "YYYY-MM" token,
// rolling January back to December of the prior year.
func PreviousYearMonth(ym string) string {
	year, _ := strconv.Atoi(ym[:4])
	month, _ := strconv.Atoi(ym[5:])
	if month == 1 {
		return fmt.Sprintf("%04d-12", year-1)
	}
	return fmt.Sprintf("%04d-%02d", year, month-1)
}
