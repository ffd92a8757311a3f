package stats

import (
	"context"
	"fmt"

	"github.com/theirongolddev/reelstats/internal/batch"
	"github.com/theirongolddev/reelstats/internal/cache"
	"github.com/theirongolddev/reelstats/internal/metadata"
	"github.com/theirongolddev/reelstats/internal/model"
)

// ReviewsInput selects the reviews for BestReviews.
type ReviewsInput struct {
	UserID   string
	Language string
	Limit    int // zero for the repository default
	Range    model.DateRange
}

// BestReviews returns the user's top title reviews with title, poster and
// release date attached. The result is not cached.
func (e *Engine) BestReviews(ctx context.Context, in ReviewsInput) ([]model.BestReview, error) {
	reviews, err := e.repo.BestReviews(ctx, model.ReviewQuery{UserID: in.UserID, Range: in.Range, Limit: in.Limit})
	if err != nil {
		return nil, fmt.Errorf("loading reviews: %w", err)
	}

	out, err := batch.Process(ctx, reviews, func(ctx context.Context, r model.Review) (model.BestReview, error) {
		rec, err := e.meta.Details(ctx, r.MediaType.Kind(), r.TmdbID, in.Language, metadata.Fields{Date: true})
		if err != nil {
			return model.BestReview{}, err
		}
		return model.BestReview{
			ID:         r.ID,
			TmdbID:     r.TmdbID,
			MediaType:  r.MediaType,
			Rating:     r.Rating,
			Text:       r.Text,
			CreatedAt:  r.CreatedAt,
			Title:      rec.Title,
			PosterPath: rec.PosterPath,
			Date:       rec.Date,
		}, nil
	}, e.batch)
	if err != nil {
		return nil, fmt.Errorf("enriching reviews: %w", err)
	}
	return orEmpty(out), nil
}

// mostWatchedLimit is how many shows MostWatchedSeries reports.
const mostWatchedLimit = 10

// MostWatchedSeries returns the shows with the most watched episodes.
func (e *Engine) MostWatchedSeries(ctx context.Context, userID, language string) ([]model.SeriesStat, error) {
	key := cache.StatsKey(userID, StatMostWatchedSeries, language, "")
	out, err := cached(ctx, e, key, func(ctx context.Context) ([]model.SeriesStat, error) {
		counts, err := e.repo.MostWatched(ctx, userID, mostWatchedLimit)
		if err != nil {
			return nil, fmt.Errorf("loading episode counts: %w", err)
		}
		series, err := batch.Process(ctx, counts, func(ctx context.Context, c model.SeriesEpisodeCount) (model.SeriesStat, error) {
			rec, err := e.meta.Details(ctx, model.KindTV, c.TmdbID, language, metadata.Fields{})
			if err != nil {
				return model.SeriesStat{}, err
			}
			return model.SeriesStat{
				ID:           c.TmdbID,
				Episodes:     c.Episodes,
				Title:        rec.Title,
				PosterPath:   rec.PosterPath,
				BackdropPath: rec.BackdropPath,
			}, nil
		}, e.batch)
		if err != nil {
			return nil, fmt.Errorf("enriching series: %w", err)
		}
		if len(series) == 0 {
			return nil, nil
		}
		return series, nil
	})
	return orEmpty(out), err
}

// ItemsStatus breaks the user's items down by status. Every status is
// listed, in display order.
func (e *Engine) ItemsStatus(ctx context.Context, userID string, r model.DateRange) ([]model.StatusStat, error) {
	counts, err := e.repo.StatusCounts(ctx, userID, r)
	if err != nil {
		return nil, fmt.Errorf("counting items: %w", err)
	}
	byStatus := make(map[model.ItemStatus]int, len(counts))
	total := 0
	for _, c := range counts {
		byStatus[c.Status] += c.Count
		total += c.Count
	}
	out := make([]model.StatusStat, 0, len(model.Statuses))
	for _, s := range model.Statuses {
		out = append(out, model.StatusStat{Status: s, Count: byStatus[s], Percentage: percentage(byStatus[s], total)})
	}
	return out, nil
}
