package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/theirongolddev/reelstats/internal/batch"
	"github.com/theirongolddev/reelstats/internal/cache"
	"github.com/theirongolddev/reelstats/internal/config"
	"github.com/theirongolddev/reelstats/internal/logger"
	"github.com/theirongolddev/reelstats/internal/metadata"
	"github.com/theirongolddev/reelstats/internal/model"
	"github.com/theirongolddev/reelstats/internal/stats"
	"github.com/theirongolddev/reelstats/internal/store"
	"github.com/theirongolddev/reelstats/internal/store/postgres"
	"github.com/theirongolddev/reelstats/internal/tmdb"
	"github.com/theirongolddev/reelstats/internal/watchlist"
)

const postgresQueryTimeout = 5 * time.Second

// repository is what both watch stores provide.
type repository interface {
	stats.Repository
	watchlist.Store
	Users(ctx context.Context) ([]string, error)
	Close() error
}

// app is the wired runtime shared by every command.
type app struct {
	cfg       config.Config
	log       *zap.Logger
	repo      repository
	cache     *cache.Store
	provider  tmdb.RawFetcher
	engine    *stats.Engine
	watchlist *watchlist.Service
	closers   []io.Closer
}

func openApp(ctx context.Context, cfg config.Config, ephemeralCache bool) (*app, error) {
	a := &app{cfg: cfg, log: logger.L()}

	loc, err := cfg.General.Location()
	if err != nil {
		return nil, err
	}

	var sqlite *store.DB
	switch cfg.Store.Driver {
	case "postgres":
		pg, err := postgres.Connect(ctx, cfg.Store.PostgresURL, postgresQueryTimeout)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		a.repo = pg
	default:
		sqlite, err = store.Open(cfg.Store.DatabasePath())
		if err != nil {
			return nil, fmt.Errorf("opening watch store: %w", err)
		}
		a.repo = sqlite
	}
	a.closers = append(a.closers, a.repo)

	backend, err := a.openCache(ctx, sqlite, ephemeralCache)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.cache = cache.New(backend, a.log.Named("cache"))

	var provider metadata.Provider = missingToken{}
	a.provider = missingToken{}
	if client := tmdb.NewClient(tmdb.Config{
		AccessToken:       cfg.TMDB.AccessToken,
		BaseURL:           cfg.TMDB.BaseURL,
		RequestsPerSecond: cfg.TMDB.RequestsPerSecond,
		Logger:            a.log.Named("tmdb"),
	}); client != nil {
		provider, a.provider = client, client
	}
	meta := metadata.NewService(provider, a.cache, a.log.Named("metadata"))

	opts := batch.Options{Size: cfg.Batch.Size, Delay: cfg.Batch.Delay()}
	if cfg.Batch.DelayMS == 0 {
		opts = opts.NoDelay()
	}
	a.engine = stats.New(stats.Config{
		Repo:     a.repo,
		Metadata: meta,
		Cache:    a.cache,
		Batch:    opts,
		Logger:   a.log.Named("stats"),
		Location: loc,
	})
	a.watchlist = watchlist.NewService(watchlist.Config{
		Store:    a.repo,
		Lookup:   meta,
		Cache:    a.cache,
		Batch:    opts,
		Language: cfg.General.Language,
		Logger:   a.log.Named("watchlist"),
	})
	return a, nil
}

// openCache picks the configured backend. SQLite caching shares the watch
// database when it is SQLite and opens its own file otherwise.
func (a *app) openCache(ctx context.Context, sqlite *store.DB, ephemeral bool) (cache.Backend, error) {
	if ephemeral {
		mem := cache.NewMemory(time.Minute)
		a.closers = append(a.closers, mem)
		return mem, nil
	}

	switch a.cfg.Cache.Backend {
	case "memory":
		mem := cache.NewMemory(time.Minute)
		a.closers = append(a.closers, mem)
		return mem, nil
	case "redis":
		r, err := cache.DialRedis(ctx, a.cfg.Cache.RedisAddr, a.cfg.Cache.RedisPassword, a.cfg.Cache.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis at %s: %w", a.cfg.Cache.RedisAddr, err)
		}
		a.closers = append(a.closers, r)
		return r, nil
	}

	if sqlite == nil {
		db, err := store.Open(a.cfg.Store.DatabasePath())
		if err != nil {
			return nil, fmt.Errorf("opening cache database: %w", err)
		}
		a.closers = append(a.closers, db)
		sqlite = db
	}
	b := sqlite.CacheBackend()
	if n, err := b.Prune(ctx); err != nil {
		a.log.Warn("pruning expired cache entries", zap.Error(err))
	} else if n > 0 {
		a.log.Debug("pruned expired cache entries", zap.Int64("entries", n))
	}
	return b, nil
}

// Close releases everything openApp acquired, newest first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warn("closing resource", zap.Error(err))
		}
	}
	a.closers = nil
}

// missingToken stands in for the TMDB client when no token is configured.
type missingToken struct{}

func (missingToken) Details(context.Context, model.Kind, int, string) (model.TitleDetails, error) {
	return model.TitleDetails{}, tmdb.ErrNotConfigured
}

func (missingToken) SeasonEpisodes(context.Context, int, int, string) ([]model.SeasonEpisode, error) {
	return nil, tmdb.ErrNotConfigured
}

func (missingToken) Credits(context.Context, model.Kind, int, string) ([]model.CastMember, error) {
	return nil, tmdb.ErrNotConfigured
}

func (missingToken) GetRaw(context.Context, string, url.Values) ([]byte, error) {
	return nil, tmdb.ErrNotConfigured
}
