package stats

import (
	"math"
	"time"

	"github.com/theirongolddev/reelstats/internal/model"
)

const dayLayout = "2006-01-02"

// bucketMonths is the length of the trailing monthly series.
const bucketMonths = 12

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// monthOf returns the first instant of the calendar month a period covers
// when the period is a single month.
func monthOf(period model.Period, now time.Time) (time.Time, bool) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	switch {
	case period == model.PeriodMonth:
		return first, true
	case period == model.PeriodLastMonth:
		return first.AddDate(0, -1, 0), true
	case period.IsYearMonth():
		t, err := model.ParseYearMonth(string(period), now.Location())
		return t, err == nil
	}
	return time.Time{}, false
}

// days lists every day label from start to end inclusive.
func days(start, end time.Time) []string {
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, end.Location())
	var out []string
	for i := 0; ; i++ {
		d := time.Date(start.Year(), start.Month(), start.Day()+i, 0, 0, 0, 0, start.Location())
		if d.After(end) {
			return out
		}
		out = append(out, d.Format(dayLayout))
	}
}

func daysOfMonth(first time.Time) []string {
	return days(first, first.AddDate(0, 1, -1))
}

// fill sums record hours into the given zero-filled labels. label maps a
// record time onto its bucket label.
func fill(labels []string, recs []watchRecord, label func(time.Time) string) map[string]float64 {
	sums := make(map[string]float64, len(labels))
	for _, l := range labels {
		sums[l] = 0
	}
	for _, r := range recs {
		if r.at.IsZero() || r.minutes <= 0 {
			continue
		}
		l := label(r.at)
		if _, ok := sums[l]; ok {
			sums[l] += float64(r.minutes) / 60
		}
	}
	return sums
}

// monthlyHours buckets watch time for the period's chart: one bucket per
// day for single-month periods, the twelve months of this year for "year",
// and the trailing twelve months otherwise.
func monthlyHours(recs []watchRecord, period model.Period, now time.Time) []model.TimeBucket {
	loc := now.Location()
	var (
		labels []string
		layout string
	)
	if first, ok := monthOf(period, now); ok {
		labels, layout = daysOfMonth(first), dayLayout
	} else {
		layout = model.YearMonthLayout
		start := time.Date(now.Year(), now.Month()-bucketMonths+1, 1, 0, 0, 0, 0, loc)
		if period == model.PeriodYear {
			start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)
		}
		for i := range bucketMonths {
			labels = append(labels, start.AddDate(0, i, 0).Format(layout))
		}
	}

	sums := fill(labels, recs, func(t time.Time) string { return t.In(loc).Format(layout) })
	out := make([]model.TimeBucket, len(labels))
	for i, l := range labels {
		out[i] = model.TimeBucket{Month: l, Hours: round1(sums[l])}
	}
	return out
}

// dailyActivity is the zero-filled day series behind the activity heatmap.
// All-time activity starts at the earliest dated record and is empty when
// there is none.
func dailyActivity(recs []watchRecord, period model.Period, now time.Time) []model.DayHours {
	loc := now.Location()
	var labels []string
	if first, ok := monthOf(period, now); ok {
		labels = daysOfMonth(first)
	} else if period == model.PeriodYear {
		labels = days(time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc), now)
	} else {
		var earliest time.Time
		for _, r := range recs {
			if !r.at.IsZero() && (earliest.IsZero() || r.at.Before(earliest)) {
				earliest = r.at
			}
		}
		if earliest.IsZero() {
			return []model.DayHours{}
		}
		labels = days(earliest.In(loc), now)
	}

	sums := fill(labels, recs, func(t time.Time) string { return t.In(loc).Format(dayLayout) })
	out := make([]model.DayHours, len(labels))
	for i, l := range labels {
		out[i] = model.DayHours{Day: l, Hours: round1(sums[l])}
	}
	return out
}
