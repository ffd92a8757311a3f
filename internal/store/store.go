// Package store provides the SQLite-backed watch record repository.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/theirongolddev/reelstats/internal/model"

	_ "modernc.org/sqlite" // register sqlite driver
)

// timeLayout is fixed width in UTC so stored timestamps compare as text.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// DB is the SQLite watch store.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *DB) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, v)
	}
	return t
}

// rangeWhere appends inclusive bounds on col.
func rangeWhere(col string, r model.DateRange, where []string, args []any) ([]string, []any) {
	if !r.Start.IsZero() {
		where = append(where, col+" >= ?")
		args = append(args, formatTime(r.Start))
	}
	if !r.End.IsZero() {
		where = append(where, col+" <= ?")
		args = append(args, formatTime(r.End))
	}
	return where, args
}

// ItemsByStatus returns matching items, most recently updated first.
func (s *DB) ItemsByStatus(ctx context.Context, q model.ItemQuery) ([]model.WatchedItem, error) {
	where := []string{"user_id = ?"}
	args := []any{q.UserID}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	if q.MediaType != "" {
		where = append(where, "media_type = ?")
		args = append(args, string(q.MediaType))
	}
	where, args = rangeWhere("updated_at", q.Range, where, args)

	return s.itemRows(ctx, `SELECT id, user_id, tmdb_id, media_type, status, added_at, updated_at
		FROM user_items WHERE `+strings.Join(where, " AND ")+` ORDER BY updated_at DESC`, args...)
}

// Item returns a single tracked title.
func (s *DB) Item(ctx context.Context, userID string, tmdbID int, mediaType model.MediaType) (model.WatchedItem, bool, error) {
	items, err := s.itemRows(ctx, `SELECT id, user_id, tmdb_id, media_type, status, added_at, updated_at
		FROM user_items WHERE user_id = ? AND tmdb_id = ? AND media_type = ?`, userID, tmdbID, string(mediaType))
	if err != nil || len(items) == 0 {
		return model.WatchedItem{}, false, err
	}
	return items[0], true, nil
}

func (s *DB) itemRows(ctx context.Context, query string, args ...any) ([]model.WatchedItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.WatchedItem
	for rows.Next() {
		var it model.WatchedItem
		var mediaType, status, addedAt, updatedAt string
		if err := rows.Scan(&it.ID, &it.UserID, &it.TmdbID, &mediaType, &status, &addedAt, &updatedAt); err != nil {
			return nil, err
		}
		it.MediaType = model.MediaType(mediaType)
		it.Status = model.ItemStatus(status)
		it.AddedAt = parseTime(addedAt)
		it.UpdatedAt = parseTime(updatedAt)
		items = append(items, it)
	}
	return items, rows.Err()
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// UpsertItem inserts the item or updates the status of the existing row.
// ID, AddedAt and UpdatedAt are filled in on the passed item.
func (s *DB) UpsertItem(ctx context.Context, it *model.WatchedItem) error {
	return s.upsertItem(ctx, s.db, it)
}

func (s *DB) upsertItem(ctx context.Context, q dbtx, it *model.WatchedItem) error {
	now := s.now()
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.AddedAt.IsZero() {
		it.AddedAt = now
	}
	if it.UpdatedAt.IsZero() {
		it.UpdatedAt = now
	}

	err := q.QueryRowContext(ctx, `INSERT INTO user_items
		(id, user_id, tmdb_id, media_type, status, added_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, tmdb_id, media_type)
		DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at
		RETURNING id`,
		it.ID, it.UserID, it.TmdbID, string(it.MediaType), string(it.Status),
		formatTime(it.AddedAt), formatTime(it.UpdatedAt),
	).Scan(&it.ID)
	if err != nil {
		return fmt.Errorf("upserting item: %w", err)
	}
	return nil
}

// ApplyItemChange upserts the item and records or drops its episodes in a
// single transaction. It returns the number of episodes dropped.
func (s *DB) ApplyItemChange(ctx context.Context, ch model.ItemChange) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.upsertItem(ctx, tx, ch.Item); err != nil {
		return 0, err
	}
	if err := insertEpisodes(ctx, tx, ch.Episodes); err != nil {
		return 0, err
	}
	var dropped int64
	if ch.DropEpisodes {
		if dropped, err = deleteEpisodes(ctx, tx, ch.Item.UserID, ch.Item.TmdbID); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing item change: %w", err)
	}
	return dropped, nil
}

// DeleteItem removes a tracked title. It reports whether a row existed.
func (s *DB) DeleteItem(ctx context.Context, userID string, tmdbID int, mediaType model.MediaType) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_items WHERE user_id = ? AND tmdb_id = ? AND media_type = ?`,
		userID, tmdbID, string(mediaType))
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Episodes returns matching episodes in watch order.
func (s *DB) Episodes(ctx context.Context, q model.EpisodeQuery) ([]model.WatchedEpisode, error) {
	where := []string{"user_id = ?"}
	args := []any{q.UserID}
	if q.TmdbID != 0 {
		where = append(where, "tmdb_id = ?")
		args = append(args, q.TmdbID)
	}
	where, args = rangeWhere("watched_at", q.Range, where, args)

	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, tmdb_id, season_number, episode_number, runtime, watched_at
		FROM user_episodes WHERE `+strings.Join(where, " AND ")+` ORDER BY watched_at, season_number, episode_number`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying episodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var eps []model.WatchedEpisode
	for rows.Next() {
		var ep model.WatchedEpisode
		var watchedAt string
		if err := rows.Scan(&ep.ID, &ep.UserID, &ep.TmdbID, &ep.SeasonNumber, &ep.EpisodeNumber, &ep.RuntimeMinutes, &watchedAt); err != nil {
			return nil, err
		}
		ep.WatchedAt = parseTime(watchedAt)
		eps = append(eps, ep)
	}
	return eps, rows.Err()
}

// InsertEpisodes stores episodes in one transaction. Episodes already
// recorded for the user are left untouched.
func (s *DB) InsertEpisodes(ctx context.Context, eps []model.WatchedEpisode) error {
	if len(eps) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertEpisodes(ctx, tx, eps); err != nil {
		return err
	}
	return tx.Commit()
}

func insertEpisodes(ctx context.Context, q dbtx, eps []model.WatchedEpisode) error {
	if len(eps) == 0 {
		return nil
	}
	stmt, err := q.PrepareContext(ctx, `INSERT INTO user_episodes
		(id, user_id, tmdb_id, season_number, episode_number, runtime, watched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, tmdb_id, season_number, episode_number) DO NOTHING`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, ep := range eps {
		id := ep.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx, id, ep.UserID, ep.TmdbID, ep.SeasonNumber, ep.EpisodeNumber,
			ep.RuntimeMinutes, formatTime(ep.WatchedAt)); err != nil {
			return fmt.Errorf("inserting episode S%02dE%02d: %w", ep.SeasonNumber, ep.EpisodeNumber, err)
		}
	}
	return nil
}

// DeleteEpisodes removes every watched episode of one show.
func (s *DB) DeleteEpisodes(ctx context.Context, userID string, tmdbID int) (int64, error) {
	return deleteEpisodes(ctx, s.db, userID, tmdbID)
}

func deleteEpisodes(ctx context.Context, q dbtx, userID string, tmdbID int) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM user_episodes WHERE user_id = ? AND tmdb_id = ?`, userID, tmdbID)
	if err != nil {
		return 0, fmt.Errorf("deleting episodes: %w", err)
	}
	return res.RowsAffected()
}

// MostWatched returns per-show episode counts, highest first.
func (s *DB) MostWatched(ctx context.Context, userID string, limit int) ([]model.SeriesEpisodeCount, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT tmdb_id, COUNT(*) AS episodes
		FROM user_episodes WHERE user_id = ?
		GROUP BY tmdb_id ORDER BY episodes DESC, tmdb_id LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying most watched: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.SeriesEpisodeCount
	for rows.Next() {
		var c model.SeriesEpisodeCount
		if err := rows.Scan(&c.TmdbID, &c.Episodes); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// BestReviews returns five-star title reviews, newest first.
// Season and episode reviews are excluded.
func (s *DB) BestReviews(ctx context.Context, q model.ReviewQuery) ([]model.Review, error) {
	limit := q.Limit
	if limit < 1 {
		limit = 10
	}
	where := []string{"user_id = ?", "rating = 5", "season_number IS NULL", "episode_number IS NULL"}
	args := []any{q.UserID}
	where, args = rangeWhere("created_at", q.Range, where, args)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, tmdb_id, media_type, rating, content,
		season_number, episode_number, created_at
		FROM reviews WHERE `+strings.Join(where, " AND ")+`
		ORDER BY rating DESC, created_at DESC LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying reviews: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Review
	for rows.Next() {
		var r model.Review
		var mediaType, createdAt string
		var season, episode sql.NullInt64
		if err := rows.Scan(&r.ID, &r.UserID, &r.TmdbID, &mediaType, &r.Rating, &r.Text,
			&season, &episode, &createdAt); err != nil {
			return nil, err
		}
		r.MediaType = model.MediaType(mediaType)
		r.CreatedAt = parseTime(createdAt)
		if season.Valid {
			v := int(season.Int64)
			r.SeasonNumber = &v
		}
		if episode.Valid {
			v := int(episode.Int64)
			r.EpisodeNumber = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertReview stores a review, assigning ID and CreatedAt when unset.
func (s *DB) InsertReview(ctx context.Context, r *model.Review) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO reviews
		(id, user_id, tmdb_id, media_type, rating, content, season_number, episode_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.TmdbID, string(r.MediaType), r.Rating, r.Text,
		nullInt(r.SeasonNumber), nullInt(r.EpisodeNumber), formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting review: %w", err)
	}
	return nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

// WatchedRank counts the user's watched items against every user who
// tracks at least one title.
func (s *DB) WatchedRank(ctx context.Context, userID string) (model.WatchedRank, error) {
	var r model.WatchedRank
	err := s.db.QueryRowContext(ctx, `
		WITH users AS (
			SELECT DISTINCT user_id FROM user_items
		), counts AS (
			SELECT u.user_id, COUNT(i.id) AS n
			FROM users u
			LEFT JOIN user_items i ON i.user_id = u.user_id AND i.status = 'WATCHED'
			GROUP BY u.user_id
		), me AS (
			SELECT COALESCE((SELECT n FROM counts WHERE user_id = ?), 0) AS n
		)
		SELECT
			(SELECT n FROM me),
			(SELECT COUNT(*) FROM counts WHERE n < (SELECT n FROM me)),
			(SELECT COUNT(*) FROM users)`, userID,
	).Scan(&r.UserCount, &r.FewerCount, &r.TotalUsers)
	if err != nil {
		return r, fmt.Errorf("querying watched rank: %w", err)
	}
	return r, nil
}

// StatusCounts returns the number of items per status.
func (s *DB) StatusCounts(ctx context.Context, userID string, dr model.DateRange) ([]model.StatusCount, error) {
	where := []string{"user_id = ?"}
	args := []any{userID}
	where, args = rangeWhere("updated_at", dr, where, args)

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM user_items
		WHERE `+strings.Join(where, " AND ")+` GROUP BY status ORDER BY status`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying status counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.StatusCount
	for rows.Next() {
		var c model.StatusCount
		var status string
		if err := rows.Scan(&status, &c.Count); err != nil {
			return nil, err
		}
		c.Status = model.ItemStatus(status)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Users lists every user id present in the store.
func (s *DB) Users(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM user_items ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
