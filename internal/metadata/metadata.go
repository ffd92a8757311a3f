// Package metadata resolves title details, season episodes and credits
// through the cache, projecting provider payloads onto the fields a caller
// asked for.
package metadata

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/theirongolddev/reelstats/internal/cache"
	"github.com/theirongolddev/reelstats/internal/model"
)

// KeyPrefix is the first component of every cached metadata key.
const KeyPrefix = "tmdb"

// Provider fetches normalized metadata from upstream.
type Provider interface {
	Details(ctx context.Context, kind model.Kind, id int, language string) (model.TitleDetails, error)
	SeasonEpisodes(ctx context.Context, tvID, season int, language string) ([]model.SeasonEpisode, error)
	Credits(ctx context.Context, kind model.Kind, id int, language string) ([]model.CastMember, error)
}

// Fields selects the optional parts of a Record. Unselected fields are nil.
type Fields struct {
	Runtime   bool
	Genres    bool
	Countries bool
	Seasons   bool
	Date      bool
}

// Record is the fixed-shape result of Details. Title, poster and backdrop
// are always present; optional fields are nil unless selected, and nil
// when the provider had no value for them.
type Record struct {
	Kind         model.Kind      `json:"kind"`
	ID           int             `json:"id"`
	Title        string          `json:"title"`
	PosterPath   *string         `json:"posterPath"`
	BackdropPath *string         `json:"backdropPath"`
	Runtime      *int            `json:"runtime"`
	Genres       []model.Genre   `json:"genres"`
	Countries    []model.Country `json:"countries"`
	Seasons      []model.Season  `json:"seasons"`
	Date         *string         `json:"date"`
}

// Service is the cached metadata lookup.
type Service struct {
	provider Provider
	cache    *cache.Store
	log      *zap.Logger
}

// NewService returns a Service reading through store.
func NewService(p Provider, store *cache.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{provider: p, cache: store, log: log}
}

// DetailsKey is the cache key of a title's details.
func DetailsKey(kind model.Kind, id int, language string) string {
	return cache.Key(KeyPrefix, string(kind), strconv.Itoa(id), language)
}

// SeasonKey is the cache key of one season's episode list.
func SeasonKey(tvID, season int, language string) string {
	return cache.Key(KeyPrefix, string(model.KindTV), strconv.Itoa(tvID), "season", strconv.Itoa(season), language)
}

// CreditsKey is the cache key of a title's cast.
func CreditsKey(kind model.Kind, id int, language string) string {
	return cache.Key(KeyPrefix, string(kind), strconv.Itoa(id), "credits", language)
}

// Details returns the projection of a title selected by fields.
func (s *Service) Details(ctx context.Context, kind model.Kind, id int, language string, fields Fields) (Record, error) {
	if !kind.Valid() {
		return Record{}, fmt.Errorf("metadata: unknown kind %q", kind)
	}
	d, err := cache.GetOrCompute(ctx, s.cache, DetailsKey(kind, id, language), cache.MetadataTTL,
		func(ctx context.Context) (model.TitleDetails, error) {
			return s.provider.Details(ctx, kind, id, language)
		})
	if err != nil {
		return Record{}, fmt.Errorf("details of %s %d: %w", kind, id, err)
	}
	return project(kind, id, d, fields), nil
}

func project(kind model.Kind, id int, d model.TitleDetails, f Fields) Record {
	r := Record{
		Kind:         kind,
		ID:           id,
		Title:        d.Title,
		PosterPath:   optional(d.PosterPath),
		BackdropPath: optional(d.BackdropPath),
	}
	if f.Runtime && d.Runtime > 0 {
		r.Runtime = &d.Runtime
	}
	if f.Genres {
		r.Genres = nonNil(d.Genres)
	}
	if f.Countries {
		r.Countries = nonNil(d.Countries)
	}
	if f.Seasons {
		r.Seasons = nonNil(d.Seasons)
	}
	if f.Date {
		r.Date = optional(d.Date)
	}
	return r
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nonNil turns a missing list into an empty one so a selected field is
// never confused with an unselected one.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// SeasonEpisodes returns the episodes of one season of a show.
func (s *Service) SeasonEpisodes(ctx context.Context, tvID, season int, language string) ([]model.SeasonEpisode, error) {
	eps, err := cache.GetOrCompute(ctx, s.cache, SeasonKey(tvID, season, language), cache.MetadataTTL,
		func(ctx context.Context) ([]model.SeasonEpisode, error) {
			return s.provider.SeasonEpisodes(ctx, tvID, season, language)
		})
	if err != nil {
		return nil, fmt.Errorf("season %d of tv %d: %w", season, tvID, err)
	}
	return eps, nil
}

// Credits returns the cast of a title.
func (s *Service) Credits(ctx context.Context, kind model.Kind, id int, language string) ([]model.CastMember, error) {
	cast, err := cache.GetOrCompute(ctx, s.cache, CreditsKey(kind, id, language), cache.MetadataTTL,
		func(ctx context.Context) ([]model.CastMember, error) {
			return s.provider.Credits(ctx, kind, id, language)
		})
	if err != nil {
		return nil, fmt.Errorf("credits of %s %d: %w", kind, id, err)
	}
	return cast, nil
}
