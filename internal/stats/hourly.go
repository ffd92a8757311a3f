package stats

import (
	"time"

	"github.com/theirongolddev/reelstats/internal/model"
)

// Day parts, six hours each starting at midnight.
var dayParts = [4]string{"night", "morning", "afternoon", "evening"}

// hourlyDistribution counts dated records per hour of day in loc.
// The result always has 24 entries, hour 0 first.
func hourlyDistribution(recs []watchRecord, loc *time.Location) []model.HourCount {
	out := make([]model.HourCount, 24)
	for h := range out {
		out[h].Hour = h
	}
	for _, r := range recs {
		if r.at.IsZero() {
			continue
		}
		out[r.at.In(loc).Hour()].Count++
	}
	return out
}

// peakTimeSlot returns the day part with the most records and its busiest
// hour. Earlier parts and hours win ties. Nil when there are no records.
func peakTimeSlot(hourly []model.HourCount) *model.PeakTimeSlot {
	best, bestSum := -1, 0
	for p := range dayParts {
		sum := 0
		for _, hc := range hourly[p*6 : p*6+6] {
			sum += hc.Count
		}
		if sum > bestSum {
			best, bestSum = p, sum
		}
	}
	if best < 0 {
		return nil
	}

	peak := best * 6
	for h := peak + 1; h < best*6+6; h++ {
		if hourly[h].Count > hourly[peak].Count {
			peak = h
		}
	}
	return &model.PeakTimeSlot{Slot: dayParts[best], Hour: peak, Count: bestSum}
}
