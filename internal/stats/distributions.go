package stats

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/theirongolddev/reelstats/internal/batch"
	"github.com/theirongolddev/reelstats/internal/cache"
	"github.com/theirongolddev/reelstats/internal/metadata"
	"github.com/theirongolddev/reelstats/internal/model"
)

// DistributionInput selects the items behind a genre or country breakdown.
type DistributionInput struct {
	UserID   string
	Language string
	Period   model.Period // cache scope; Range does the filtering
	Range    model.DateRange
}

type itemKey struct {
	id   int
	kind model.MediaType
}

// distributionItems returns the watched items in range. With a bounded
// range, shows that only have episodes in range are added as stubs.
func (e *Engine) distributionItems(ctx context.Context, in DistributionInput) ([]model.WatchedItem, error) {
	items, err := e.repo.ItemsByStatus(ctx, model.ItemQuery{
		UserID: in.UserID,
		Status: model.StatusWatched,
		Range:  in.Range,
	})
	if err != nil {
		return nil, fmt.Errorf("loading watched items: %w", err)
	}
	if in.Range.IsZero() {
		return items, nil
	}

	eps, err := e.repo.Episodes(ctx, model.EpisodeQuery{UserID: in.UserID, Range: in.Range})
	if err != nil {
		return nil, fmt.Errorf("loading episodes: %w", err)
	}
	seen := make(map[itemKey]bool, len(items))
	for _, it := range items {
		seen[itemKey{it.TmdbID, it.MediaType}] = true
	}
	for _, ep := range eps {
		k := itemKey{ep.TmdbID, model.MediaTV}
		if seen[k] {
			continue
		}
		seen[k] = true
		items = append(items, model.WatchedItem{
			ID:        fmt.Sprintf("ep-%d", ep.TmdbID),
			UserID:    in.UserID,
			TmdbID:    ep.TmdbID,
			MediaType: model.MediaTV,
			Status:    model.StatusWatched,
		})
	}
	return items, nil
}

// WatchedGenres counts watched titles per genre, most common first.
func (e *Engine) WatchedGenres(ctx context.Context, in DistributionInput) ([]model.GenreStat, error) {
	key := cache.StatsKey(in.UserID, StatWatchedGenres, in.Language, string(in.Period))
	out, err := cached(ctx, e, key, func(ctx context.Context) ([]model.GenreStat, error) {
		return e.computeGenres(ctx, in)
	})
	return orEmpty(out), err
}

func (e *Engine) computeGenres(ctx context.Context, in DistributionInput) ([]model.GenreStat, error) {
	items, err := e.distributionItems(ctx, in)
	if err != nil {
		return nil, err
	}
	recs, err := batch.Process(ctx, items, func(ctx context.Context, it model.WatchedItem) (metadata.Record, error) {
		return e.meta.Details(ctx, it.MediaType.Kind(), it.TmdbID, in.Language, metadata.Fields{Genres: true})
	}, e.batch)
	if err != nil {
		return nil, fmt.Errorf("resolving genres: %w", err)
	}

	byName := make(map[string]*model.GenreStat)
	listed := make(map[string]map[itemKey]bool)
	var order []string
	for i, rec := range recs {
		it := items[i]
		for _, g := range rec.Genres {
			st, ok := byName[g.Name]
			if !ok {
				st = &model.GenreStat{Name: g.Name}
				byName[g.Name] = st
				listed[g.Name] = make(map[itemKey]bool)
				order = append(order, g.Name)
			}
			st.Count++
			if st.PosterPath == nil && rec.PosterPath != nil {
				st.PosterPath = rec.PosterPath
			}
			k := itemKey{it.TmdbID, it.MediaType}
			if !listed[g.Name][k] {
				listed[g.Name][k] = true
				st.Items = append(st.Items, model.GenreItem{TmdbID: it.TmdbID, MediaType: it.MediaType, PosterPath: rec.PosterPath})
			}
		}
	}

	var out []model.GenreStat
	for _, name := range order {
		st := byName[name]
		st.Percentage = percentage(st.Count, len(items))
		out = append(out, *st)
	}
	slices.SortStableFunc(out, func(a, b model.GenreStat) int {
		return byCountThenName(a.Count, b.Count, a.Name, b.Name)
	})
	return out, nil
}

// WatchedCountries counts watched titles per production country, most
// common first.
func (e *Engine) WatchedCountries(ctx context.Context, in DistributionInput) ([]model.CountryStat, error) {
	key := cache.StatsKey(in.UserID, StatWatchedCountries, in.Language, string(in.Period))
	out, err := cached(ctx, e, key, func(ctx context.Context) ([]model.CountryStat, error) {
		return e.computeCountries(ctx, in)
	})
	return orEmpty(out), err
}

func (e *Engine) computeCountries(ctx context.Context, in DistributionInput) ([]model.CountryStat, error) {
	items, err := e.distributionItems(ctx, in)
	if err != nil {
		return nil, err
	}
	counts, err := batch.Aggregate(ctx, items, func(ctx context.Context, it model.WatchedItem) ([]string, error) {
		rec, err := e.meta.Details(ctx, it.MediaType.Kind(), it.TmdbID, in.Language, metadata.Fields{Countries: true})
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(rec.Countries))
		for _, c := range rec.Countries {
			names = append(names, c.Name)
		}
		return names, nil
	}, e.batch)
	if err != nil {
		return nil, fmt.Errorf("resolving countries: %w", err)
	}

	var out []model.CountryStat
	for name, n := range counts {
		out = append(out, model.CountryStat{Name: name, Count: n, Percentage: percentage(n, len(items))})
	}
	slices.SortFunc(out, func(a, b model.CountryStat) int {
		return byCountThenName(a.Count, b.Count, a.Name, b.Name)
	})
	return out, nil
}

func byCountThenName(ac, bc int, an, bn string) int {
	if c := cmp.Compare(bc, ac); c != 0 {
		return c
	}
	return cmp.Compare(an, bn)
}
