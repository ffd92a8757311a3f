package tmdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/reelstats/internal/cache"
)

func TestProxyTTL(t *testing.T) {
	tests := []struct {
		path string
		want time.Duration
	}{
		{"movie/27205", DetailsTTL},
		{"tv/1399", DetailsTTL},
		{"tv/1399/season/1", StaticTTL},
		{"movie/27205/images", StaticTTL},
		{"tv/1399/watch/providers", StaticTTL},
		{"collection/10", StaticTTL},
		{"movie/27205/recommendations", StaticTTL},
		{"tv/1399/similar", StaticTTL},
		{"search/multi", SearchTTL},
		{"watch/providers/regions", StaticTTL},
		{"movie/popular", ListTTL},
		{"trending/all/week", ListTTL},
		{"movie/27205/credits", ListTTL},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ProxyTTL(tt.path), tt.path)
	}
}

func TestProxyKey(t *testing.T) {
	assert.Equal(t, "tmdb-proxy:movie/popular", ProxyKey("movie/popular", nil))
	q := url.Values{"page": {"2"}, "language": {"en-US"}}
	assert.Equal(t, "tmdb-proxy:movie/popular:language=en-US&page=2", ProxyKey("movie/popular", q))
}

type fakeFetcher struct {
	calls atomic.Int32
	body  []byte
	err   error
}

func (f *fakeFetcher) GetRaw(_ context.Context, _ string, _ url.Values) ([]byte, error) {
	f.calls.Add(1)
	return f.body, f.err
}

func newProxy(t *testing.T, f RawFetcher) http.Handler {
	t.Helper()
	mem := cache.NewMemory(0)
	t.Cleanup(func() { _ = mem.Close() })
	return http.StripPrefix("/tmdb", NewProxy(f, cache.New(mem, nil), nil))
}

func TestProxyHitAndMiss(t *testing.T) {
	f := &fakeFetcher{body: []byte(`{"page":1,"results":[]}`)}
	h := newProxy(t, f)

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/tmdb/movie/popular?page=1", nil))
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"page":1,"results":[]}`, first.Body.String())

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/tmdb/movie/popular?page=1", nil))
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"page":1,"results":[]}`, second.Body.String())
	assert.Equal(t, int32(1), f.calls.Load())

	other := httptest.NewRecorder()
	h.ServeHTTP(other, httptest.NewRequest(http.MethodGet, "/tmdb/movie/popular?page=2", nil))
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestProxyUpstreamStatus(t *testing.T) {
	f := &fakeFetcher{err: &FetchError{Op: "/movie/0", Status: http.StatusNotFound, Err: ErrNotFound}}
	h := newProxy(t, f)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tmdb/movie/0", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body struct {
		Error      string `json:"error"`
		StatusCode int    `json:"statusCode"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "TMDB API error", body.Error)
	assert.Equal(t, http.StatusNotFound, body.StatusCode)

	// Failures are not cached.
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tmdb/movie/0", nil))
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestProxyMissingPath(t *testing.T) {
	h := newProxy(t, &fakeFetcher{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tmdb/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
