// Package stats derives watch analytics from a user's watch records,
// enriching them with provider metadata and caching the results per user.
package stats

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/theirongolddev/reelstats/internal/batch"
	"github.com/theirongolddev/reelstats/internal/cache"
	"github.com/theirongolddev/reelstats/internal/metadata"
	"github.com/theirongolddev/reelstats/internal/model"
)

// Stat types used in cache keys.
const (
	StatTotalHours        = "total-hours"
	StatWatchedGenres     = "watched-genres"
	StatWatchedCountries  = "watched-countries"
	StatWatchedCast       = "watched-cast"
	StatMostWatchedSeries = "most-watched-series"
)

// runtimeLanguage is used for lookups whose text is never shown.
const runtimeLanguage = "en-US"

// ErrInvalidCursor is returned by Timeline for a malformed cursor.
var ErrInvalidCursor = errors.New("stats: invalid cursor")

// Repository reads a user's watch records.
type Repository interface {
	ItemsByStatus(ctx context.Context, q model.ItemQuery) ([]model.WatchedItem, error)
	Episodes(ctx context.Context, q model.EpisodeQuery) ([]model.WatchedEpisode, error)
	MostWatched(ctx context.Context, userID string, limit int) ([]model.SeriesEpisodeCount, error)
	BestReviews(ctx context.Context, q model.ReviewQuery) ([]model.Review, error)
	WatchedRank(ctx context.Context, userID string) (model.WatchedRank, error)
	StatusCounts(ctx context.Context, userID string, r model.DateRange) ([]model.StatusCount, error)
}

// Metadata resolves title metadata.
type Metadata interface {
	Details(ctx context.Context, kind model.Kind, id int, language string, fields metadata.Fields) (metadata.Record, error)
	Credits(ctx context.Context, kind model.Kind, id int, language string) ([]model.CastMember, error)
}

// Config wires an Engine. Repo, Metadata and Cache are required.
type Config struct {
	Repo     Repository
	Metadata Metadata
	Cache    *cache.Store
	Batch    batch.Options
	Logger   *zap.Logger
	Now      func() time.Time
	Location *time.Location // calendar bucketing happens in this zone
}

// Engine computes statistics.
type Engine struct {
	repo  Repository
	meta  Metadata
	cache *cache.Store
	batch batch.Options
	log   *zap.Logger
	clock func() time.Time
	loc   *time.Location
}

// New returns an Engine for cfg.
func New(cfg Config) *Engine {
	e := &Engine{
		repo:  cfg.Repo,
		meta:  cfg.Metadata,
		cache: cfg.Cache,
		batch: cfg.Batch,
		log:   cfg.Logger,
		clock: cfg.Now,
		loc:   cfg.Location,
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.loc == nil {
		e.loc = time.Local
	}
	return e
}

func (e *Engine) now() time.Time {
	return e.clock().In(e.loc)
}

// Range resolves a period against the engine's clock.
func (e *Engine) Range(p model.Period) model.DateRange {
	return p.Range(e.now())
}

// InvalidateUser drops every cached statistic of userID.
func (e *Engine) InvalidateUser(ctx context.Context, userID string) error {
	return e.cache.InvalidateUser(ctx, userID)
}

func cached[T any](ctx context.Context, e *Engine, key string, compute func(context.Context) (T, error)) (T, error) {
	return cache.GetOrCompute(ctx, e.cache, key, cache.StatsTTL(key), compute)
}

// orEmpty keeps empty lists encoding as [] once they leave the engine.
// Computations return nil for "nothing found" so that empty results are
// never written to the cache.
func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// percentage returns part/whole*100, or 0 when whole is 0.
func percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
