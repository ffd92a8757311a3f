package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/reelstats/internal/model"
)

func scenarioRepo() *fakeRepo {
	return &fakeRepo{
		items: []model.WatchedItem{
			watched(inception.ID, model.MediaMovie, day("2024-03-10", 20)),
			watched(chernobyl.ID, model.MediaTV, day("2024-03-12", 21)),
		},
		episodes: episodes(chernobyl.ID, day("2024-03-12", 21), 60, 65, 65, 67, 74),
		rank:     model.WatchedRank{UserCount: 2, FewerCount: 3, TotalUsers: 4},
	}
}

func TestTotalHoursMovieAndSeason(t *testing.T) {
	h := newHarness(t, scenarioRepo())

	got, err := h.engine.TotalHours(context.Background(), "u1", model.PeriodAll, model.DateRange{})
	require.NoError(t, err)

	assert.InDelta(t, 7.9833, got.TotalHours, 0.0001)
	assert.InDelta(t, 148.0/60, got.MovieHours, 1e-9)
	assert.InDelta(t, 331.0/60, got.SeriesHours, 1e-9)
	assert.InDelta(t, got.MovieHours+got.SeriesHours, got.TotalHours, 1e-9)

	require.Len(t, got.MonthlyHours, 12)
	assert.Equal(t, "2023-04", got.MonthlyHours[0].Month)
	assert.Equal(t, model.TimeBucket{Month: "2024-03", Hours: 8}, got.MonthlyHours[11])

	require.Len(t, got.HourlyDistribution, 24)
	total := 0
	for i, hc := range got.HourlyDistribution {
		assert.Equal(t, i, hc.Hour)
		total += hc.Count
	}
	assert.Equal(t, 6, total)
	assert.Equal(t, 5, got.HourlyDistribution[21].Count)
	require.NotNil(t, got.PeakTimeSlot)
	assert.Equal(t, model.PeakTimeSlot{Slot: "evening", Hour: 21, Count: 6}, *got.PeakTimeSlot)

	require.Len(t, got.DailyActivity, 6)
	assert.Equal(t, model.DayHours{Day: "2024-03-10", Hours: 2.5}, got.DailyActivity[0])
	assert.Equal(t, model.DayHours{Day: "2024-03-12", Hours: 5.5}, got.DailyActivity[2])
	assert.Equal(t, "2024-03-15", got.DailyActivity[5].Day)

	require.NotNil(t, got.PercentileRank)
	assert.Equal(t, 75, *got.PercentileRank)
}

func TestTotalHoursEmptyMonthIsZeroFilled(t *testing.T) {
	h := newHarness(t, &fakeRepo{rank: model.WatchedRank{UserCount: 3, FewerCount: 1, TotalUsers: 5}})

	got, err := h.engine.TotalHours(context.Background(), "u1", model.PeriodMonth, h.engine.Range(model.PeriodMonth))
	require.NoError(t, err)

	assert.Zero(t, got.TotalHours)
	require.Len(t, got.MonthlyHours, 31)
	assert.Equal(t, "2024-03-01", got.MonthlyHours[0].Month)
	assert.Equal(t, "2024-03-31", got.MonthlyHours[30].Month)
	for _, b := range got.MonthlyHours {
		assert.Zero(t, b.Hours)
	}
	assert.Len(t, got.HourlyDistribution, 24)
	assert.Nil(t, got.PeakTimeSlot)
	assert.Len(t, got.DailyActivity, 31)
	assert.Nil(t, got.PercentileRank, "percentile is only computed for all time")
}

func TestTotalHoursAllTimeWithoutRecords(t *testing.T) {
	h := newHarness(t, &fakeRepo{})

	got, err := h.engine.TotalHours(context.Background(), "u1", model.PeriodAll, model.DateRange{})
	require.NoError(t, err)
	assert.NotNil(t, got.DailyActivity)
	assert.Empty(t, got.DailyActivity)
	assert.Len(t, got.MonthlyHours, 12)
	assert.Nil(t, got.PercentileRank)
}

func TestTotalHoursBucketLayouts(t *testing.T) {
	tests := []struct {
		period      model.Period
		buckets     int
		first, last string
		daily       int
	}{
		{model.PeriodYear, 12, "2024-01", "2024-12", 75},
		{model.PeriodLastMonth, 29, "2024-02-01", "2024-02-29", 29},
		{model.Period("2023-12"), 31, "2023-12-01", "2023-12-31", 31},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			h := newHarness(t, &fakeRepo{})
			got, err := h.engine.TotalHours(context.Background(), "u1", tt.period, h.engine.Range(tt.period))
			require.NoError(t, err)
			require.Len(t, got.MonthlyHours, tt.buckets)
			assert.Equal(t, tt.first, got.MonthlyHours[0].Month)
			assert.Equal(t, tt.last, got.MonthlyHours[tt.buckets-1].Month)
			assert.Len(t, got.DailyActivity, tt.daily)
		})
	}
}

func TestTotalHoursIgnoresMissingRuntime(t *testing.T) {
	repo := &fakeRepo{
		items:    []model.WatchedItem{watched(999, model.MediaMovie, day("2024-03-01", 10))},
		episodes: episodes(chernobyl.ID, day("2024-03-02", 10), 0, 60),
	}
	h := newHarness(t, repo)

	got, err := h.engine.TotalHours(context.Background(), "u1", model.PeriodMonth, h.engine.Range(model.PeriodMonth))
	require.NoError(t, err)
	assert.Zero(t, got.MovieHours)
	assert.InDelta(t, 1.0, got.SeriesHours, 1e-9)

	count := 0
	for _, hc := range got.HourlyDistribution {
		count += hc.Count
	}
	assert.Equal(t, 3, count, "every dated record lands in the histogram")
}

func TestTotalHoursCachedUntilInvalidated(t *testing.T) {
	h := newHarness(t, scenarioRepo())
	ctx := context.Background()

	_, err := h.engine.TotalHours(ctx, "u1", model.PeriodAll, model.DateRange{})
	require.NoError(t, err)
	reads := h.repo.readCount()

	_, err = h.engine.TotalHours(ctx, "u1", model.PeriodAll, model.DateRange{})
	require.NoError(t, err)
	assert.Equal(t, reads, h.repo.readCount())

	require.NoError(t, h.engine.InvalidateUser(ctx, "u1"))
	_, err = h.engine.TotalHours(ctx, "u1", model.PeriodAll, model.DateRange{})
	require.NoError(t, err)
	assert.Greater(t, h.repo.readCount(), reads)
}

func TestTotalHoursUpstreamFailure(t *testing.T) {
	h := newHarness(t, scenarioRepo())
	h.provider.fail = true

	_, err := h.engine.TotalHours(context.Background(), "u1", model.PeriodAll, model.DateRange{})
	require.ErrorIs(t, err, errUpstream)
	assert.Equal(t, 0, h.mem.Len())
}

func TestPeakTimeSlotTies(t *testing.T) {
	hourly := func(counts map[int]int) []model.HourCount {
		recs := []watchRecord{}
		for hr, n := range counts {
			for range n {
				recs = append(recs, watchRecord{minutes: 1, at: time.Date(2024, 1, 1, hr, 0, 0, 0, time.UTC)})
			}
		}
		return hourlyDistribution(recs, time.UTC)
	}

	p := peakTimeSlot(hourly(map[int]int{3: 2, 8: 2}))
	require.NotNil(t, p)
	assert.Equal(t, model.PeakTimeSlot{Slot: "night", Hour: 3, Count: 2}, *p)

	p = peakTimeSlot(hourly(map[int]int{22: 2, 19: 2, 13: 3}))
	require.NotNil(t, p)
	assert.Equal(t, model.PeakTimeSlot{Slot: "evening", Hour: 19, Count: 4}, *p)

	assert.Nil(t, peakTimeSlot(hourly(nil)))
}

func TestPercentileRank(t *testing.T) {
	tests := []struct {
		name string
		rank model.WatchedRank
		want *int
	}{
		{"no items", model.WatchedRank{UserCount: 0, FewerCount: 0, TotalUsers: 10}, nil},
		{"single user", model.WatchedRank{UserCount: 4, FewerCount: 0, TotalUsers: 1}, nil},
		{"floored at one", model.WatchedRank{UserCount: 1, FewerCount: 0, TotalUsers: 10}, ptr(1)},
		{"rounded", model.WatchedRank{UserCount: 9, FewerCount: 2, TotalUsers: 3}, ptr(67)},
		{"top", model.WatchedRank{UserCount: 50, FewerCount: 99, TotalUsers: 100}, ptr(99)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, percentileRank(tt.rank))
		})
	}
}

func ptr[T any](v T) *T { return &v }
