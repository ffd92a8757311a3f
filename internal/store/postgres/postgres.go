// Package postgres implements the watch record repository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/theirongolddev/reelstats/internal/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS user_items (
    id          TEXT PRIMARY KEY,
    user_id     TEXT NOT NULL,
    tmdb_id     INTEGER NOT NULL,
    media_type  TEXT NOT NULL,
    status      TEXT NOT NULL,
    added_at    TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL,
    UNIQUE (user_id, tmdb_id, media_type)
);

CREATE TABLE IF NOT EXISTS user_episodes (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    tmdb_id         INTEGER NOT NULL,
    season_number   INTEGER NOT NULL,
    episode_number  INTEGER NOT NULL,
    runtime         INTEGER NOT NULL DEFAULT 0,
    watched_at      TIMESTAMPTZ NOT NULL,
    UNIQUE (user_id, tmdb_id, season_number, episode_number)
);

CREATE TABLE IF NOT EXISTS reviews (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    tmdb_id         INTEGER NOT NULL,
    media_type      TEXT NOT NULL,
    rating          INTEGER NOT NULL,
    content         TEXT NOT NULL DEFAULT '',
    season_number   INTEGER,
    episode_number  INTEGER,
    created_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_user_status ON user_items(user_id, status, updated_at);
CREATE INDEX IF NOT EXISTS idx_episodes_user_watched ON user_episodes(user_id, watched_at);
CREATE INDEX IF NOT EXISTS idx_reviews_user_created ON reviews(user_id, created_at);
`

// Repository is the PostgreSQL watch store.
type Repository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	now     func() time.Time
}

// Connect opens a pool for url and creates the schema.
func Connect(ctx context.Context, url string, timeout time.Duration) (*Repository, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	r := New(pool, timeout)
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return r, nil
}

// New wraps an existing pool. A non-positive timeout defaults to 5s per query.
func New(pool *pgxpool.Pool, timeout time.Duration) *Repository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Repository{pool: pool, timeout: timeout, now: time.Now}
}

// Close releases the pool.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

// query accumulates WHERE conditions with numbered placeholders.
type query struct {
	where []string
	args  []any
}

func (q *query) add(cond string, arg any) {
	q.args = append(q.args, arg)
	q.where = append(q.where, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(q.args))))
}

func (q *query) dateRange(col string, dr model.DateRange) {
	if !dr.Start.IsZero() {
		q.add(col+" >= ?", dr.Start)
	}
	if !dr.End.IsZero() {
		q.add(col+" <= ?", dr.End)
	}
}

func (q *query) sql() string { return strings.Join(q.where, " AND ") }

// ItemsByStatus returns matching items, most recently updated first.
func (r *Repository) ItemsByStatus(ctx context.Context, iq model.ItemQuery) ([]model.WatchedItem, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var q query
	q.add("user_id = ?", iq.UserID)
	if iq.Status != "" {
		q.add("status = ?", string(iq.Status))
	}
	if iq.MediaType != "" {
		q.add("media_type = ?", string(iq.MediaType))
	}
	q.dateRange("updated_at", iq.Range)

	rows, err := r.pool.Query(ctx, `SELECT id, user_id, tmdb_id, media_type, status, added_at, updated_at
		FROM user_items WHERE `+q.sql()+` ORDER BY updated_at DESC`, q.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, fmt.Errorf("failed to scan items: %w", err)
	}
	return items, nil
}

func scanItem(row pgx.CollectableRow) (model.WatchedItem, error) {
	var it model.WatchedItem
	var mediaType, status string
	err := row.Scan(&it.ID, &it.UserID, &it.TmdbID, &mediaType, &status, &it.AddedAt, &it.UpdatedAt)
	it.MediaType = model.MediaType(mediaType)
	it.Status = model.ItemStatus(status)
	return it, err
}

// Item returns a single tracked title.
func (r *Repository) Item(ctx context.Context, userID string, tmdbID int, mediaType model.MediaType) (model.WatchedItem, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT id, user_id, tmdb_id, media_type, status, added_at, updated_at
		FROM user_items WHERE user_id = $1 AND tmdb_id = $2 AND media_type = $3`, userID, tmdbID, string(mediaType))
	if err != nil {
		return model.WatchedItem{}, false, fmt.Errorf("failed to query item: %w", err)
	}
	it, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.WatchedItem{}, false, nil
	}
	if err != nil {
		return model.WatchedItem{}, false, fmt.Errorf("failed to scan item: %w", err)
	}
	return it, true, nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// UpsertItem inserts the item or updates the status of the existing row.
func (r *Repository) UpsertItem(ctx context.Context, it *model.WatchedItem) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.upsertItem(ctx, r.pool, it)
}

func (r *Repository) upsertItem(ctx context.Context, q querier, it *model.WatchedItem) error {
	now := r.now()
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.AddedAt.IsZero() {
		it.AddedAt = now
	}
	if it.UpdatedAt.IsZero() {
		it.UpdatedAt = now
	}
	err := q.QueryRow(ctx, `INSERT INTO user_items
		(id, user_id, tmdb_id, media_type, status, added_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, tmdb_id, media_type)
		DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
		RETURNING id`,
		it.ID, it.UserID, it.TmdbID, string(it.MediaType), string(it.Status), it.AddedAt, it.UpdatedAt,
	).Scan(&it.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}
	return nil
}

// ApplyItemChange upserts the item and records or drops its episodes in a
// single transaction. It returns the number of episodes dropped.
func (r *Repository) ApplyItemChange(ctx context.Context, ch model.ItemChange) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var dropped int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := r.upsertItem(ctx, tx, ch.Item); err != nil {
			return err
		}
		if err := insertEpisodes(ctx, tx, ch.Episodes); err != nil {
			return err
		}
		if ch.DropEpisodes {
			var err error
			dropped, err = deleteEpisodes(ctx, tx, ch.Item.UserID, ch.Item.TmdbID)
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return dropped, nil
}

// DeleteItem removes a tracked title. It reports whether a row existed.
func (r *Repository) DeleteItem(ctx context.Context, userID string, tmdbID int, mediaType model.MediaType) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM user_items WHERE user_id = $1 AND tmdb_id = $2 AND media_type = $3`,
		userID, tmdbID, string(mediaType))
	if err != nil {
		return false, fmt.Errorf("failed to delete item: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Episodes returns matching episodes in watch order.
func (r *Repository) Episodes(ctx context.Context, eq model.EpisodeQuery) ([]model.WatchedEpisode, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var q query
	q.add("user_id = ?", eq.UserID)
	if eq.TmdbID != 0 {
		q.add("tmdb_id = ?", eq.TmdbID)
	}
	q.dateRange("watched_at", eq.Range)

	rows, err := r.pool.Query(ctx, `SELECT id, user_id, tmdb_id, season_number, episode_number, runtime, watched_at
		FROM user_episodes WHERE `+q.sql()+` ORDER BY watched_at, season_number, episode_number`, q.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	eps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.WatchedEpisode, error) {
		var ep model.WatchedEpisode
		err := row.Scan(&ep.ID, &ep.UserID, &ep.TmdbID, &ep.SeasonNumber, &ep.EpisodeNumber, &ep.RuntimeMinutes, &ep.WatchedAt)
		return ep, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan episodes: %w", err)
	}
	return eps, nil
}

// InsertEpisodes stores episodes in a single batch, skipping ones already recorded.
func (r *Repository) InsertEpisodes(ctx context.Context, eps []model.WatchedEpisode) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return insertEpisodes(ctx, r.pool, eps)
}

func insertEpisodes(ctx context.Context, q querier, eps []model.WatchedEpisode) error {
	if len(eps) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, ep := range eps {
		id := ep.ID
		if id == "" {
			id = uuid.NewString()
		}
		b.Queue(`INSERT INTO user_episodes
			(id, user_id, tmdb_id, season_number, episode_number, runtime, watched_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (user_id, tmdb_id, season_number, episode_number) DO NOTHING`,
			id, ep.UserID, ep.TmdbID, ep.SeasonNumber, ep.EpisodeNumber, ep.RuntimeMinutes, ep.WatchedAt)
	}
	if err := q.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("failed to insert episodes: %w", err)
	}
	return nil
}

// DeleteEpisodes removes every watched episode of one show.
func (r *Repository) DeleteEpisodes(ctx context.Context, userID string, tmdbID int) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return deleteEpisodes(ctx, r.pool, userID, tmdbID)
}

func deleteEpisodes(ctx context.Context, q querier, userID string, tmdbID int) (int64, error) {
	tag, err := q.Exec(ctx, `DELETE FROM user_episodes WHERE user_id = $1 AND tmdb_id = $2`, userID, tmdbID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete episodes: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MostWatched returns per-show episode counts, highest first.
func (r *Repository) MostWatched(ctx context.Context, userID string, limit int) ([]model.SeriesEpisodeCount, error) {
	if limit < 1 {
		limit = 10
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT tmdb_id, COUNT(*)::int AS episodes
		FROM user_episodes WHERE user_id = $1
		GROUP BY tmdb_id ORDER BY episodes DESC, tmdb_id LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query most watched: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.SeriesEpisodeCount, error) {
		var c model.SeriesEpisodeCount
		err := row.Scan(&c.TmdbID, &c.Episodes)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan most watched: %w", err)
	}
	return out, nil
}

// BestReviews returns five-star title reviews, newest first.
func (r *Repository) BestReviews(ctx context.Context, rq model.ReviewQuery) ([]model.Review, error) {
	limit := rq.Limit
	if limit < 1 {
		limit = 10
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var q query
	q.add("user_id = ?", rq.UserID)
	q.add("rating = ?", 5)
	q.where = append(q.where, "season_number IS NULL", "episode_number IS NULL")
	q.dateRange("created_at", rq.Range)
	q.args = append(q.args, limit)

	rows, err := r.pool.Query(ctx, `SELECT id, user_id, tmdb_id, media_type, rating, content,
		season_number, episode_number, created_at
		FROM reviews WHERE `+q.sql()+`
		ORDER BY rating DESC, created_at DESC LIMIT $`+strconv.Itoa(len(q.args)), q.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Review, error) {
		var rv model.Review
		var mediaType string
		err := row.Scan(&rv.ID, &rv.UserID, &rv.TmdbID, &mediaType, &rv.Rating, &rv.Text,
			&rv.SeasonNumber, &rv.EpisodeNumber, &rv.CreatedAt)
		rv.MediaType = model.MediaType(mediaType)
		return rv, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan reviews: %w", err)
	}
	return out, nil
}

// InsertReview stores a review, assigning ID and CreatedAt when unset.
func (r *Repository) InsertReview(ctx context.Context, rv *model.Review) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if rv.ID == "" {
		rv.ID = uuid.NewString()
	}
	if rv.CreatedAt.IsZero() {
		rv.CreatedAt = r.now()
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO reviews
		(id, user_id, tmdb_id, media_type, rating, content, season_number, episode_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rv.ID, rv.UserID, rv.TmdbID, string(rv.MediaType), rv.Rating, rv.Text,
		rv.SeasonNumber, rv.EpisodeNumber, rv.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

// WatchedRank counts the user's watched items against every user who
// tracks at least one title.
func (r *Repository) WatchedRank(ctx context.Context, userID string) (model.WatchedRank, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rank model.WatchedRank
	err := r.pool.QueryRow(ctx, `
		WITH counts AS (
			SELECT user_id, COUNT(*) FILTER (WHERE status = 'WATCHED') AS n
			FROM user_items GROUP BY user_id
		), me AS (
			SELECT COALESCE((SELECT n FROM counts WHERE user_id = $1), 0) AS n
		)
		SELECT
			(SELECT n FROM me)::int,
			(SELECT COUNT(*) FROM counts WHERE n < (SELECT n FROM me))::int,
			(SELECT COUNT(*) FROM counts)::int`, userID,
	).Scan(&rank.UserCount, &rank.FewerCount, &rank.TotalUsers)
	if err != nil {
		return rank, fmt.Errorf("failed to query watched rank: %w", err)
	}
	return rank, nil
}

// StatusCounts returns the number of items per status.
func (r *Repository) StatusCounts(ctx context.Context, userID string, dr model.DateRange) ([]model.StatusCount, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var q query
	q.add("user_id = ?", userID)
	q.dateRange("updated_at", dr)

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*)::int FROM user_items
		WHERE `+q.sql()+` GROUP BY status ORDER BY status`, q.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query status counts: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.StatusCount, error) {
		var c model.StatusCount
		var status string
		err := row.Scan(&status, &c.Count)
		c.Status = model.ItemStatus(status)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan status counts: %w", err)
	}
	return out, nil
}

// Users lists every user id present in the store.
func (r *Repository) Users(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `SELECT DISTINCT user_id FROM user_items ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	users, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}
	return users, nil
}
