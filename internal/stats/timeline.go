package stats

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/theirongolddev/reelstats/internal/model"
)

// Timeline paging limits.
const (
	DefaultPageSize = 3
	MaxPageSize     = 10
	MaxScanMonths   = 24
)

// TimelineInput selects one page of the timeline.
type TimelineInput struct {
	UserID   string
	Language string
	Cursor   string // "YYYY-MM" to start from; empty for the current month
	PageSize int
}

// Timeline walks back one calendar month at a time from the cursor and
// collects the months that have any activity. A call stops once the page
// is full or MaxScanMonths months were scanned. NextCursor is set only
// when the page filled and names the month the next call should start at.
func (e *Engine) Timeline(ctx context.Context, in TimelineInput) (model.TimelinePage, error) {
	pageSize := in.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	pageSize = min(pageSize, MaxPageSize)

	ym := in.Cursor
	if ym == "" {
		ym = model.FormatYearMonth(e.now())
	} else if _, err := model.ParseYearMonth(ym, e.loc); err != nil {
		return model.TimelinePage{}, fmt.Errorf("%w: %q", ErrInvalidCursor, in.Cursor)
	}

	page := model.TimelinePage{Sections: []model.TimelineSection{}}
	for scanned := 0; scanned < MaxScanMonths; scanned++ {
		section, ok, err := e.timelineMonth(ctx, in.UserID, in.Language, ym)
		if err != nil {
			return model.TimelinePage{}, fmt.Errorf("timeline %s: %w", ym, err)
		}
		ym = model.PreviousYearMonth(ym)
		if !ok {
			continue
		}
		page.Sections = append(page.Sections, section)
		if len(page.Sections) == pageSize {
			next := ym
			page.NextCursor = &next
			page.HasMore = true
			break
		}
	}
	return page, nil
}

// timelineMonth summarizes one month. ok is false when the month has no
// watch time, no genre and no review.
func (e *Engine) timelineMonth(ctx context.Context, userID, language, ym string) (model.TimelineSection, bool, error) {
	period := model.Period(ym)
	r := e.Range(period)

	var (
		hours   model.TotalHours
		genres  []model.GenreStat
		reviews []model.BestReview
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		hours, err = e.TotalHours(gctx, userID, period, r)
		return err
	})
	g.Go(func() error {
		var err error
		genres, err = e.WatchedGenres(gctx, DistributionInput{UserID: userID, Language: language, Period: period, Range: r})
		return err
	})
	g.Go(func() error {
		var err error
		reviews, err = e.BestReviews(gctx, ReviewsInput{UserID: userID, Language: language, Limit: 1, Range: r})
		return err
	})
	if err := g.Wait(); err != nil {
		return model.TimelineSection{}, false, err
	}

	if hours.TotalHours <= 0 && len(genres) == 0 && len(reviews) == 0 {
		return model.TimelineSection{}, false, nil
	}
	s := model.TimelineSection{
		YearMonth:   ym,
		TotalHours:  hours.TotalHours,
		MovieHours:  hours.MovieHours,
		SeriesHours: hours.SeriesHours,
	}
	if len(genres) > 0 {
		s.TopGenre = &model.TopGenre{Name: genres[0].Name, PosterPath: genres[0].PosterPath}
	}
	if len(reviews) > 0 {
		s.TopReview = &model.TopReview{Title: reviews[0].Title, PosterPath: reviews[0].PosterPath, Rating: reviews[0].Rating}
	}
	return s, true, nil
}
