package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/theirongolddev/reelstats/internal/cache"
)

// Proxy cache lifetimes by endpoint family.
const (
	DetailsTTL = 30 * 24 * time.Hour
	StaticTTL  = 7 * 24 * time.Hour
	ListTTL    = 6 * time.Hour
	SearchTTL  = time.Hour
)

// ProxyPrefix is the first key component of proxied responses.
const ProxyPrefix = "tmdb-proxy"

var (
	detailsPath    = regexp.MustCompile(`^(movie|tv)/\d+$`)
	seasonPath     = regexp.MustCompile(`^tv/\d+/season/\d+$`)
	assetsPath     = regexp.MustCompile(`/(images|watch/providers)$`)
	collectionPath = regexp.MustCompile(`^collection/\d+$`)
	relatedPath    = regexp.MustCompile(`/(recommendations|similar)$`)
)

// ProxyTTL returns how long a proxied response for path may be cached.
// path has no leading slash, e.g. "movie/27205".
func ProxyTTL(path string) time.Duration {
	switch {
	case detailsPath.MatchString(path):
		return DetailsTTL
	case seasonPath.MatchString(path),
		assetsPath.MatchString(path),
		collectionPath.MatchString(path),
		relatedPath.MatchString(path):
		return StaticTTL
	case strings.HasPrefix(path, "search/"):
		return SearchTTL
	case strings.HasPrefix(path, "watch/providers"):
		return StaticTTL
	default:
		return ListTTL
	}
}

// ProxyKey builds a deterministic cache key from path and query, with
// parameters sorted by name.
func ProxyKey(path string, query url.Values) string {
	if len(query) == 0 {
		return ProxyPrefix + ":" + path
	}
	names := make([]string, 0, len(query))
	for k := range query {
		names = append(names, k)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, k := range names {
		for _, v := range query[k] {
			pairs = append(pairs, k+"="+v)
		}
	}
	return ProxyPrefix + ":" + path + ":" + strings.Join(pairs, "&")
}

// RawFetcher fetches an undecoded API response.
type RawFetcher interface {
	GetRaw(ctx context.Context, path string, query url.Values) ([]byte, error)
}

// Proxy serves GET requests for arbitrary API paths, caching successful
// responses. Mount it behind http.StripPrefix so the request path is the
// API path.
type Proxy struct {
	fetch RawFetcher
	cache *cache.Store
	log   *zap.Logger
}

// NewProxy returns a caching proxy over fetch.
func NewProxy(fetch RawFetcher, store *cache.Store, log *zap.Logger) *Proxy {
	if log == nil {
		log = zap.NewNop()
	}
	return &Proxy{fetch: fetch, cache: store, log: log}
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	path := strings.Trim(r.URL.Path, "/")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Missing TMDB path"})
		return
	}

	query := r.URL.Query()
	miss := false
	body, err := cache.GetOrCompute(r.Context(), p.cache, ProxyKey(path, query), ProxyTTL(path),
		func(ctx context.Context) (json.RawMessage, error) {
			miss = true
			return p.fetch.GetRaw(ctx, path, query)
		})
	if err != nil {
		p.writeError(w, path, err)
		return
	}

	if miss {
		w.Header().Set("X-Cache", "MISS")
	} else {
		w.Header().Set("X-Cache", "HIT")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (p *Proxy) writeError(w http.ResponseWriter, path string, err error) {
	var fe *FetchError
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "TMDB temporarily unavailable"})
	case errors.As(err, &fe) && fe.Status != 0:
		writeJSON(w, fe.Status, map[string]any{"error": "TMDB API error", "statusCode": fe.Status})
	case errors.As(err, &fe):
		p.log.Warn("tmdb proxy fetch failed", zap.String("path", path), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "TMDB unreachable"})
	default:
		p.log.Error("tmdb proxy failed", zap.String("path", path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
