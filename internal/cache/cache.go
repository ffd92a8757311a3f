// Package cache implements cache-aside storage of JSON payloads over a
// pluggable key/value backend with pattern-based invalidation.
package cache

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// TTLs for the two families of cached data.
const (
	ShortTTL    = 10 * time.Minute    // stats for the current or previous month
	LongTTL     = time.Hour           // every other stats entry
	MetadataTTL = 30 * 24 * time.Hour // provider metadata
)

// StatsPrefix is the first key component of every per-user stats entry.
const StatsPrefix = "user-stats"

// Backend is a key/value store with expiring entries.
// Patterns use glob syntax where '*' matches any run of characters.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	KeysMatching(ctx context.Context, pattern string) ([]string, error)
	Delete(ctx context.Context, keys ...string) error
}

// BackendError wraps a failure reported by the backend.
type BackendError struct {
	Op  string
	Key string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("cache: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Store is the cache-aside front for a Backend.
type Store struct {
	backend Backend
	log     *zap.Logger
}

// New returns a Store over b. A nil logger disables logging.
func New(b Backend, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{backend: b, log: log}
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend { return s.backend }

// GetOrCompute returns the cached value under key, or runs compute, stores
// its JSON encoding for ttl and returns it. Compute errors are returned
// untouched and nothing is written. A result that encodes to JSON null is
// returned but not stored.
func GetOrCompute[T any](ctx context.Context, s *Store, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	kind := keyKind(key)

	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return zero, &BackendError{Op: "get", Key: key, Err: err}
	}
	if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			cacheHits.WithLabelValues(kind).Inc()
			s.log.Debug("cache hit", zap.String("key", key))
			return v, nil
		}
		s.log.Warn("discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
	}
	cacheMisses.WithLabelValues(kind).Inc()

	start := time.Now()
	v, err := compute(ctx)
	if err != nil {
		return zero, err
	}
	computeDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	data, err := json.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("cache: encoding %q: %w", key, err)
	}
	if bytes.Equal(data, []byte("null")) {
		return v, nil
	}
	if err := s.backend.Set(ctx, key, data, ttl); err != nil {
		return zero, &BackendError{Op: "set", Key: key, Err: err}
	}
	cacheWrites.WithLabelValues(kind).Inc()
	s.log.Debug("cache fill", zap.String("key", key), zap.Duration("ttl", ttl), zap.Int("bytes", len(data)))
	return v, nil
}

// Invalidate deletes every key matching pattern.
func (s *Store) Invalidate(ctx context.Context, pattern string) error {
	keys, err := s.backend.KeysMatching(ctx, pattern)
	if err != nil {
		return &BackendError{Op: "scan", Key: pattern, Err: err}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.backend.Delete(ctx, keys...); err != nil {
		return &BackendError{Op: "delete", Key: pattern, Err: err}
	}
	invalidatedKeys.Add(float64(len(keys)))
	s.log.Debug("cache invalidated", zap.String("pattern", pattern), zap.Int("keys", len(keys)))
	return nil
}

// InvalidateUser drops every stats entry of userID.
func (s *Store) InvalidateUser(ctx context.Context, userID string) error {
	return s.Invalidate(ctx, Key(StatsPrefix, escapeKeyPart(userID))+":*")
}

// Key joins non-empty parts with ':'.
func Key(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ":")
}

// keyPartEscaper percent-encodes the separator and every glob metacharacter
// understood by a backend, so an escaped part only ever matches itself.
var keyPartEscaper = strings.NewReplacer(
	"%", "%25",
	":", "%3A",
	"*", "%2A",
	"?", "%3F",
	"[", "%5B",
	"]", "%5D",
	`\`, "%5C",
)

func escapeKeyPart(s string) string { return keyPartEscaper.Replace(s) }

// StatsKey is the key of a per-user statistic. The all-time period shares
// the key of the period-less form.
func StatsKey(userID, statType, language, period string) string {
	if period == "all" {
		period = ""
	}
	return Key(StatsPrefix, escapeKeyPart(userID), statType, language, period)
}

// StatsTTL picks the TTL of a stats key from its trailing period token.
func StatsTTL(key string) time.Duration {
	if strings.HasSuffix(key, "month") {
		return ShortTTL
	}
	return LongTTL
}

func keyKind(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// Match reports whether key matches a glob pattern in which '*' stands for
// any run of characters and every other byte matches itself.
func Match(pattern, key string) bool {
	star, next := -1, 0
	p, k := 0, 0
	for k < len(key) {
		switch {
		case p < len(pattern) && pattern[p] == '*':
			star, next = p, k
			p++
		case p < len(pattern) && pattern[p] == key[k]:
			p++
			k++
		case star >= 0:
			next++
			p, k = star+1, next
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
