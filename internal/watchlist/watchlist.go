// Package watchlist applies changes to a user's tracked titles and reviews,
// expanding watched shows into episodes and dropping the user's cached
// statistics after every change.
package watchlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/theirongolddev/reelstats/internal/batch"
	"github.com/theirongolddev/reelstats/internal/cache"
	"github.com/theirongolddev/reelstats/internal/metadata"
	"github.com/theirongolddev/reelstats/internal/model"
)

// ErrInvalid is returned for malformed mutations.
var ErrInvalid = errors.New("watchlist: invalid input")

// Store persists items, episodes and reviews.
type Store interface {
	Item(ctx context.Context, userID string, tmdbID int, mediaType model.MediaType) (model.WatchedItem, bool, error)
	ApplyItemChange(ctx context.Context, ch model.ItemChange) (int64, error)
	DeleteItem(ctx context.Context, userID string, tmdbID int, mediaType model.MediaType) (bool, error)
	DeleteEpisodes(ctx context.Context, userID string, tmdbID int) (int64, error)
	InsertReview(ctx context.Context, r *model.Review) error
}

// Lookup resolves the seasons and episodes of a show.
type Lookup interface {
	Details(ctx context.Context, kind model.Kind, id int, language string, fields metadata.Fields) (metadata.Record, error)
	SeasonEpisodes(ctx context.Context, tvID, season int, language string) ([]model.SeasonEpisode, error)
}

// Config wires a Service.
type Config struct {
	Store    Store
	Lookup   Lookup
	Cache    *cache.Store
	Batch    batch.Options
	Language string // language of episode lookups, default en-US
	Logger   *zap.Logger
	Now      func() time.Time
}

// Service mutates watch records.
type Service struct {
	store    Store
	lookup   Lookup
	cache    *cache.Store
	batch    batch.Options
	language string
	log      *zap.Logger
	now      func() time.Time
}

// NewService returns a Service for cfg.
func NewService(cfg Config) *Service {
	s := &Service{
		store:    cfg.Store,
		lookup:   cfg.Lookup,
		cache:    cfg.Cache,
		batch:    cfg.Batch,
		language: cfg.Language,
		log:      cfg.Logger,
		now:      cfg.Now,
	}
	if s.language == "" {
		s.language = "en-US"
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// SetStatus records status for a title. A show entering WATCHED gets every
// episode of its regular seasons recorded as watched now; a show leaving
// WATCHED loses its episodes.
func (s *Service) SetStatus(ctx context.Context, userID string, tmdbID int, mediaType model.MediaType, status model.ItemStatus) (model.WatchedItem, error) {
	if userID == "" || tmdbID <= 0 || !mediaType.Valid() || !status.Valid() {
		return model.WatchedItem{}, fmt.Errorf("%w: user %q, title %d, media type %q, status %q", ErrInvalid, userID, tmdbID, mediaType, status)
	}

	prev, existed, err := s.store.Item(ctx, userID, tmdbID, mediaType)
	if err != nil {
		return model.WatchedItem{}, err
	}
	wasWatched := existed && prev.Status == model.StatusWatched
	now := s.now()

	var eps []model.WatchedEpisode
	if mediaType == model.MediaTV && status == model.StatusWatched && !wasWatched {
		eps, err = s.expandEpisodes(ctx, userID, tmdbID, now)
		if err != nil {
			return model.WatchedItem{}, fmt.Errorf("expanding episodes of %d: %w", tmdbID, err)
		}
	}

	it := model.WatchedItem{UserID: userID, TmdbID: tmdbID, MediaType: mediaType, Status: status, UpdatedAt: now}
	if existed {
		it.ID, it.AddedAt = prev.ID, prev.AddedAt
	}
	ch := model.ItemChange{
		Item:         &it,
		Episodes:     eps,
		DropEpisodes: mediaType == model.MediaTV && wasWatched && status != model.StatusWatched,
	}
	dropped, err := s.store.ApplyItemChange(ctx, ch)
	if err != nil {
		return model.WatchedItem{}, err
	}

	switch {
	case len(eps) > 0:
		s.log.Info("episodes recorded", zap.String("user", userID), zap.Int("tmdb_id", tmdbID), zap.Int("episodes", len(eps)))
	case ch.DropEpisodes:
		s.log.Info("episodes removed", zap.String("user", userID), zap.Int("tmdb_id", tmdbID), zap.Int64("episodes", dropped))
	}

	return it, s.invalidate(ctx, userID)
}

// expandEpisodes lists every episode of a show's regular seasons.
// Season 0 holds specials and is skipped.
func (s *Service) expandEpisodes(ctx context.Context, userID string, tmdbID int, at time.Time) ([]model.WatchedEpisode, error) {
	rec, err := s.lookup.Details(ctx, model.KindTV, tmdbID, s.language, metadata.Fields{Seasons: true})
	if err != nil {
		return nil, err
	}
	var seasons []int
	for _, season := range rec.Seasons {
		if season.SeasonNumber > 0 {
			seasons = append(seasons, season.SeasonNumber)
		}
	}

	perSeason, err := batch.Process(ctx, seasons, func(ctx context.Context, n int) ([]model.SeasonEpisode, error) {
		return s.lookup.SeasonEpisodes(ctx, tmdbID, n, s.language)
	}, s.batch)
	if err != nil {
		return nil, err
	}

	var eps []model.WatchedEpisode
	for _, season := range perSeason {
		for _, ep := range season {
			eps = append(eps, model.WatchedEpisode{
				UserID:         userID,
				TmdbID:         tmdbID,
				SeasonNumber:   ep.SeasonNumber,
				EpisodeNumber:  ep.EpisodeNumber,
				RuntimeMinutes: ep.Runtime,
				WatchedAt:      at,
			})
		}
	}
	return eps, nil
}

// Remove stops tracking a title. It reports whether the title was tracked.
func (s *Service) Remove(ctx context.Context, userID string, tmdbID int, mediaType model.MediaType) (bool, error) {
	if userID == "" || !mediaType.Valid() {
		return false, fmt.Errorf("%w: user %q, media type %q", ErrInvalid, userID, mediaType)
	}
	found, err := s.store.DeleteItem(ctx, userID, tmdbID, mediaType)
	if err != nil {
		return false, err
	}
	if mediaType == model.MediaTV {
		if _, err := s.store.DeleteEpisodes(ctx, userID, tmdbID); err != nil {
			return found, err
		}
	}
	return found, s.invalidate(ctx, userID)
}

// AddReview stores a review. Ratings run from 0 to 5.
func (s *Service) AddReview(ctx context.Context, r *model.Review) error {
	if r.UserID == "" || r.TmdbID <= 0 || !r.MediaType.Valid() || r.Rating < 0 || r.Rating > 5 {
		return fmt.Errorf("%w: review of %d by %q rated %d", ErrInvalid, r.TmdbID, r.UserID, r.Rating)
	}
	if r.EpisodeNumber != nil && r.SeasonNumber == nil {
		return fmt.Errorf("%w: episode review without a season", ErrInvalid)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	if err := s.store.InsertReview(ctx, r); err != nil {
		return err
	}
	return s.invalidate(ctx, r.UserID)
}

func (s *Service) invalidate(ctx context.Context, userID string) error {
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		return fmt.Errorf("invalidating stats of %s: %w", userID, err)
	}
	return nil
}
