package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// CacheBackend keeps cache entries in the cache_entries table so computed
// stats survive between CLI runs.
type CacheBackend struct {
	db  *sql.DB
	now func() time.Time
}

// CacheBackend returns a cache backend sharing this database.
func (s *DB) CacheBackend() *CacheBackend {
	return &CacheBackend{db: s.db, now: s.now}
}

// Get returns the entry under key unless it expired.
func (c *CacheBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := c.db.QueryRowContext(ctx, `SELECT value FROM cache_entries
		WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`, key, c.now().UnixNano()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores value under key. A non-positive ttl never expires.
func (c *CacheBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expires int64
	if ttl > 0 {
		expires = c.now().Add(ttl).UnixNano()
	}
	_, err := c.db.ExecContext(ctx, `INSERT OR REPLACE INTO cache_entries (key, value, expires_at)
		VALUES (?, ?, ?)`, key, value, expires)
	return err
}

// KeysMatching returns live keys matching a '*' glob.
func (c *CacheBackend) KeysMatching(ctx context.Context, pattern string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT key FROM cache_entries
		WHERE key GLOB ? AND (expires_at = 0 OR expires_at > ?)`,
		sqliteGlob(pattern), c.now().UnixNano())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Delete removes keys in one transaction.
func (c *CacheBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, "DELETE FROM cache_entries WHERE key = ?", k); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Prune drops expired entries and returns how many were removed.
func (c *CacheBackend) Prune(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE expires_at != 0 AND expires_at <= ?", c.now().UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// sqliteGlob keeps '*' as the only wildcard by bracketing GLOB's other
// metacharacters.
func sqliteGlob(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '?', '[':
			b.WriteByte('[')
			b.WriteRune(r)
			b.WriteByte(']')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
