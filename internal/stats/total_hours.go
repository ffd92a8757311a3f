package stats

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/theirongolddev/reelstats/internal/batch"
	"github.com/theirongolddev/reelstats/internal/cache"
	"github.com/theirongolddev/reelstats/internal/metadata"
	"github.com/theirongolddev/reelstats/internal/model"
)

// watchRecord is one unit of watch time. Movies use the item's last update
// as their watch time since no separate watch date is recorded.
type watchRecord struct {
	minutes int
	at      time.Time
}

// TotalHours returns the watch-time summary of userID over r. period picks
// the bucket layout and whether a percentile rank is computed.
func (e *Engine) TotalHours(ctx context.Context, userID string, period model.Period, r model.DateRange) (model.TotalHours, error) {
	key := cache.StatsKey(userID, StatTotalHours, "", string(period))
	return cached(ctx, e, key, func(ctx context.Context) (model.TotalHours, error) {
		return e.computeTotalHours(ctx, userID, period, r)
	})
}

func (e *Engine) computeTotalHours(ctx context.Context, userID string, period model.Period, r model.DateRange) (model.TotalHours, error) {
	var (
		items    []model.WatchedItem
		episodes []model.WatchedEpisode
		rank     model.WatchedRank
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = e.repo.ItemsByStatus(gctx, model.ItemQuery{
			UserID:    userID,
			Status:    model.StatusWatched,
			MediaType: model.MediaMovie,
			Range:     r,
		})
		return err
	})
	g.Go(func() error {
		var err error
		episodes, err = e.repo.Episodes(gctx, model.EpisodeQuery{UserID: userID, Range: r})
		return err
	})
	if period == model.PeriodAll {
		g.Go(func() error {
			var err error
			rank, err = e.repo.WatchedRank(gctx, userID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return model.TotalHours{}, fmt.Errorf("loading watch records: %w", err)
	}

	movies, err := batch.Process(ctx, items, func(ctx context.Context, it model.WatchedItem) (watchRecord, error) {
		rec, err := e.meta.Details(ctx, model.KindMovie, it.TmdbID, runtimeLanguage, metadata.Fields{Runtime: true})
		if err != nil {
			return watchRecord{}, err
		}
		var minutes int
		if rec.Runtime != nil {
			minutes = *rec.Runtime
		}
		return watchRecord{minutes: minutes, at: it.UpdatedAt}, nil
	}, e.batch)
	if err != nil {
		return model.TotalHours{}, fmt.Errorf("resolving movie runtimes: %w", err)
	}

	shows := make([]watchRecord, 0, len(episodes))
	for _, ep := range episodes {
		shows = append(shows, watchRecord{minutes: ep.RuntimeMinutes, at: ep.WatchedAt})
	}
	all := append(append(make([]watchRecord, 0, len(movies)+len(shows)), movies...), shows...)

	now := e.now()
	movieHours := sumHours(movies)
	seriesHours := sumHours(shows)
	hourly := hourlyDistribution(all, e.loc)

	out := model.TotalHours{
		TotalHours:         movieHours + seriesHours,
		MovieHours:         movieHours,
		SeriesHours:        seriesHours,
		MonthlyHours:       monthlyHours(all, period, now),
		HourlyDistribution: hourly,
		PeakTimeSlot:       peakTimeSlot(hourly),
		DailyActivity:      dailyActivity(all, period, now),
	}
	if period == model.PeriodAll {
		out.PercentileRank = percentileRank(rank)
	}
	return out, nil
}

// sumHours totals runtimes in hours. Records without a runtime add nothing.
func sumHours(recs []watchRecord) float64 {
	var minutes int
	for _, r := range recs {
		if r.minutes > 0 {
			minutes += r.minutes
		}
	}
	return float64(minutes) / 60
}
