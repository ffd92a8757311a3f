package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Hours float64 `json:"hours"`
}

func newTestStore(t *testing.T) (*Store, *Memory) {
	t.Helper()
	mem := NewMemory(0)
	t.Cleanup(func() { _ = mem.Close() })
	return New(mem, nil), mem
}

func TestGetOrComputeComputesOnce(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	calls := 0
	compute := func(context.Context) (payload, error) {
		calls++
		return payload{Hours: 7.5}, nil
	}

	for range 3 {
		v, err := GetOrCompute(ctx, s, "user-stats:u1:total-hours", LongTTL, compute)
		require.NoError(t, err)
		assert.Equal(t, 7.5, v.Hours)
	}
	assert.Equal(t, 1, calls)
}

func TestGetOrComputeRecomputesAfterInvalidate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	calls := 0
	compute := func(context.Context) (payload, error) {
		calls++
		return payload{Hours: float64(calls)}, nil
	}

	key := StatsKey("u1", "total-hours", "", "month")
	_, err := GetOrCompute(ctx, s, key, StatsTTL(key), compute)
	require.NoError(t, err)
	require.NoError(t, s.InvalidateUser(ctx, "u1"))

	v, err := GetOrCompute(ctx, s, key, StatsTTL(key), compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2.0, v.Hours)
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	s, mem := newTestStore(t)
	boom := errors.New("upstream down")

	_, err := GetOrCompute(context.Background(), s, "user-stats:u1:genres", LongTTL, func(context.Context) (payload, error) {
		return payload{}, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, mem.Len())
}

func TestGetOrComputeNullNotCached(t *testing.T) {
	s, mem := newTestStore(t)

	v, err := GetOrCompute(context.Background(), s, "user-stats:u1:cast", LongTTL, func(context.Context) (*payload, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, v)
	assert.Equal(t, 0, mem.Len())
}

func TestGetOrComputeEntryExpires(t *testing.T) {
	s, mem := newTestStore(t)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mem.now = func() time.Time { return now }
	calls := 0
	compute := func(context.Context) (payload, error) {
		calls++
		return payload{Hours: 1}, nil
	}

	_, err := GetOrCompute(context.Background(), s, "k", ShortTTL, compute)
	require.NoError(t, err)
	now = now.Add(ShortTTL + time.Second)
	_, err = GetOrCompute(context.Background(), s, "k", ShortTTL, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

type failingBackend struct{ err error }

func (f failingBackend) Get(context.Context, string) ([]byte, bool, error) { return nil, false, f.err }
func (f failingBackend) Set(context.Context, string, []byte, time.Duration) error {
	return f.err
}
func (f failingBackend) KeysMatching(context.Context, string) ([]string, error) { return nil, f.err }
func (f failingBackend) Delete(context.Context, ...string) error               { return f.err }

func TestBackendErrorPropagates(t *testing.T) {
	refused := errors.New("connection refused")
	s := New(failingBackend{err: refused}, nil)

	_, err := GetOrCompute(context.Background(), s, "k", LongTTL, func(context.Context) (payload, error) {
		t.Fatal("compute must not run when the backend read fails")
		return payload{}, nil
	})
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "get", be.Op)
	assert.ErrorIs(t, err, refused)

	err = s.Invalidate(context.Background(), "user-stats:u1:*")
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "scan", be.Op)
}

func TestInvalidateOnlyMatchingUser(t *testing.T) {
	s, mem := newTestStore(t)
	ctx := context.Background()
	for _, k := range []string{
		"user-stats:u1:total-hours",
		"user-stats:u1:watched-genres:en-US:month",
		"user-stats:u10:total-hours",
		"tmdb:movie:27205:en-US",
	} {
		require.NoError(t, mem.Set(ctx, k, []byte(`{}`), time.Hour))
	}

	require.NoError(t, s.InvalidateUser(ctx, "u1"))
	keys, err := mem.KeysMatching(ctx, "*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user-stats:u10:total-hours", "tmdb:movie:27205:en-US"}, keys)

	// Nothing left to match is not an error.
	require.NoError(t, s.InvalidateUser(ctx, "u1"))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "user-stats:u1:total-hours", StatsKey("u1", "total-hours", "", "all"))
	assert.Equal(t, "user-stats:u1:watched-genres:en-US:last_month", StatsKey("u1", "watched-genres", "en-US", "last_month"))
	assert.Equal(t, "user-stats:u1:most-watched-series:fr-FR", StatsKey("u1", "most-watched-series", "fr-FR", ""))
	assert.Equal(t, "tmdb:tv:1399:season:2:en-US", Key("tmdb", "tv", "1399", "season", "2", "en-US"))
}

func TestStatsTTL(t *testing.T) {
	cases := map[string]time.Duration{
		"user-stats:u1:total-hours:month":                 ShortTTL,
		"user-stats:u1:total-hours:last_month":            ShortTTL,
		"user-stats:u1:total-hours:year":                  LongTTL,
		"user-stats:u1:total-hours":                       LongTTL,
		"user-stats:u1:watched-genres:en-US:2024-01":      LongTTL,
		"user-stats:u1:watched-countries:de-DE:month":     ShortTTL,
		"user-stats:u1:most-watched-series:en-US":         LongTTL,
		"user-stats:u1:watched-genres:en-US:last_month":   ShortTTL,
		"user-stats:u1:watched-countries:en-US:last_year": LongTTL,
	}
	for key, want := range cases {
		assert.Equal(t, want, StatsTTL(key), key)
	}
}

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern, key string
		want         bool
	}{
		{"user-stats:u1:*", "user-stats:u1:total-hours", true},
		{"user-stats:u1:*", "user-stats:u10:total-hours", false},
		{"user-stats:u1:*", "user-stats:u1:", true},
		{"tmdb-proxy:*", "tmdb-proxy:movie/27205", true},
		{"*:en-US", "tmdb:movie:1:en-US", true},
		{"a*b*c", "aXXbYYc", true},
		{"a*b*c", "aXXbYY", false},
		{"exact", "exact", true},
		{"exact", "exactly", false},
		{"*", "", true},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Match(c.pattern, c.key), "%s ~ %s", c.pattern, c.key)
	}
}

func TestStatsKeyEscapesUserID(t *testing.T) {
	assert.Equal(t, "user-stats:all:total-hours", StatsKey("all", "total-hours", "", "all"))
	assert.Equal(t, "user-stats:a%2A%3Ab:total-hours:month", StatsKey("a*:b", "total-hours", "", "month"))
	assert.Equal(t, "user-stats:50%25:cast", StatsKey("50%", "cast", "", ""))
}

func TestInvalidateUserIsolatesAwkwardIDs(t *testing.T) {
	s, mem := newTestStore(t)
	ctx := context.Background()
	users := []string{"u1", "all", "a*", "ab", "a?", "[a]"}
	for _, u := range users {
		require.NoError(t, mem.Set(ctx, StatsKey(u, "total-hours", "", "all"), []byte(`{}`), time.Hour))
	}

	for i, u := range users {
		require.NoError(t, s.InvalidateUser(ctx, u))
		for j, other := range users {
			_, ok, err := mem.Get(ctx, StatsKey(other, "total-hours", "", "all"))
			require.NoError(t, err)
			assert.Equal(t, j > i, ok, "after invalidating %q, entry of %q", u, other)
		}
	}
}

func TestMemoryGetKeepsEntryReplacedDuringExpiry(t *testing.T) {
	mem := NewMemory(0)
	t.Cleanup(func() { _ = mem.Close() })
	ctx := context.Background()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	refill := false
	mem.now = func() time.Time {
		if refill {
			// Runs between the read-locked lookup and the expiry delete.
			refill = false
			require.NoError(t, mem.Set(ctx, "k", []byte("fresh"), time.Hour))
		}
		return now
	}

	require.NoError(t, mem.Set(ctx, "k", []byte("stale"), time.Second))
	now = now.Add(2 * time.Second)
	refill = true

	_, ok, err := mem.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err := mem.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok, "the replacement entry must survive")
	assert.Equal(t, "fresh", string(got))
}
