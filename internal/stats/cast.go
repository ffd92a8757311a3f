package stats

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/theirongolddev/reelstats/internal/batch"
	"github.com/theirongolddev/reelstats/internal/cache"
	"github.com/theirongolddev/reelstats/internal/model"
)

// topCast is how many performers WatchedCast reports.
const topCast = 5

// WatchedCast returns the performers appearing in most of the user's
// watched titles. Only acting credits count, and credits whose character
// carries a parenthesized note such as "(voice)" or "(uncredited)" are
// skipped.
func (e *Engine) WatchedCast(ctx context.Context, userID string, period model.Period, r model.DateRange) ([]model.CastStat, error) {
	key := cache.StatsKey(userID, StatWatchedCast, "", string(period))
	out, err := cached(ctx, e, key, func(ctx context.Context) ([]model.CastStat, error) {
		return e.computeCast(ctx, userID, r)
	})
	return orEmpty(out), err
}

func (e *Engine) computeCast(ctx context.Context, userID string, r model.DateRange) ([]model.CastStat, error) {
	items, err := e.repo.ItemsByStatus(ctx, model.ItemQuery{UserID: userID, Status: model.StatusWatched, Range: r})
	if err != nil {
		return nil, fmt.Errorf("loading watched items: %w", err)
	}
	credits, err := batch.Process(ctx, items, func(ctx context.Context, it model.WatchedItem) ([]model.CastMember, error) {
		return e.meta.Credits(ctx, it.MediaType.Kind(), it.TmdbID, runtimeLanguage)
	}, e.batch)
	if err != nil {
		return nil, fmt.Errorf("resolving credits: %w", err)
	}

	byID := make(map[int]*model.CastStat)
	for _, cast := range credits {
		for _, m := range cast {
			if m.KnownForDepartment != "Acting" || strings.ContainsAny(m.Character, "()") {
				continue
			}
			st, ok := byID[m.ID]
			if !ok {
				st = &model.CastStat{ID: m.ID, Name: m.Name}
				if m.ProfilePath != "" {
					p := m.ProfilePath
					st.ProfilePath = &p
				}
				byID[m.ID] = st
			}
			st.Count++
		}
	}

	var out []model.CastStat
	for _, st := range byID {
		st.Percentage = percentage(st.Count, len(items))
		out = append(out, *st)
	}
	slices.SortFunc(out, func(a, b model.CastStat) int {
		return byCountThenName(a.Count, b.Count, a.Name, b.Name)
	})
	if len(out) > topCast {
		out = out[:topCast]
	}
	return out, nil
}
