// Package tmdb provides a client for The Movie Database API.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/theirongolddev/reelstats/internal/model"
)

const (
	// DefaultBaseURL is the public TMDB v3 endpoint.
	DefaultBaseURL    = "https://api.themoviedb.org/3"
	requestTimeout    = 10 * time.Second
	maxBodySize       = 4 << 20 // 4 MB, credits of long-running shows get large
	defaultRPS        = 40
	breakerName       = "tmdb"
	defaultLanguage   = "en-US"
	userAgent         = "reelstats/1.0"
	breakerMinSamples = 10
)

var (
	// ErrUnauthorized indicates the access token is missing or invalid.
	ErrUnauthorized = errors.New("tmdb: unauthorized (access token missing or invalid)")
	// ErrRateLimited indicates the API rate limit was hit.
	ErrRateLimited = errors.New("tmdb: rate limited")
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("tmdb: not found")
	// ErrNotConfigured is returned by callers that need a client but have no token.
	ErrNotConfigured = errors.New("tmdb: access token not configured")
)

// FetchError reports a failed upstream request.
type FetchError struct {
	Op     string // request path
	Status int    // HTTP status, zero when no response was received
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("tmdb: %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("tmdb: %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Config holds client settings. Zero values fall back to defaults.
type Config struct {
	AccessToken       string
	BaseURL           string
	RequestsPerSecond float64
	Logger            *zap.Logger
	Transport         http.RoundTripper
}

// Client fetches title metadata from TMDB. Requests are throttled and pass
// through a circuit breaker that opens when most recent calls fail.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
	log     *zap.Logger
}

// NewClient creates a client for the given config.
// Returns nil if the access token is empty.
func NewClient(cfg Config) *Client {
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRPS
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}

	burst := max(1, int(cfg.RequestsPerSecond/4))
	c := &Client{
		token:   token,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Transport: throttledTransport{
				Limiter:      rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
				RoundTripper: cfg.Transport,
			},
		},
		log: cfg.Logger,
	}
	c.cb = newBreaker(c.log)
	return c
}

func newBreaker(log *zap.Logger) *gobreaker.CircuitBreaker[[]byte] {
	breakerState.Set(0)
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < breakerMinSamples {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= 0.6
		},
		// Missing titles and caller cancellations say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			breakerState.Set(stateValue(to))
		},
	})
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Details returns normalized details of a movie or show.
func (c *Client) Details(ctx context.Context, kind model.Kind, id int, language string) (model.TitleDetails, error) {
	if !kind.Valid() {
		return model.TitleDetails{}, fmt.Errorf("tmdb: unknown kind %q", kind)
	}
	body, err := c.get(ctx, fmt.Sprintf("/%s/%d", kind, id), langQuery(language))
	if err != nil {
		return model.TitleDetails{}, err
	}

	var raw titleResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return model.TitleDetails{}, fmt.Errorf("tmdb: parsing %s %d: %w", kind, id, err)
	}
	return raw.normalize(kind), nil
}

// SeasonEpisodes returns the episodes of one season.
func (c *Client) SeasonEpisodes(ctx context.Context, tvID, season int, language string) ([]model.SeasonEpisode, error) {
	body, err := c.get(ctx, fmt.Sprintf("/tv/%d/season/%d", tvID, season), langQuery(language))
	if err != nil {
		return nil, err
	}

	var raw seasonResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("tmdb: parsing season %d of %d: %w", season, tvID, err)
	}
	eps := make([]model.SeasonEpisode, 0, len(raw.Episodes))
	for _, e := range raw.Episodes {
		eps = append(eps, model.SeasonEpisode{
			Name:          e.Name,
			ID:            e.ID,
			SeasonNumber:  e.SeasonNumber,
			EpisodeNumber: e.EpisodeNumber,
			Runtime:       deref(e.Runtime),
		})
	}
	return eps, nil
}

// Credits returns the cast of a movie or show.
func (c *Client) Credits(ctx context.Context, kind model.Kind, id int, language string) ([]model.CastMember, error) {
	body, err := c.get(ctx, fmt.Sprintf("/%s/%d/credits", kind, id), langQuery(language))
	if err != nil {
		return nil, err
	}

	var raw creditsResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("tmdb: parsing credits of %s %d: %w", kind, id, err)
	}
	cast := make([]model.CastMember, 0, len(raw.Cast))
	for _, m := range raw.Cast {
		cast = append(cast, model.CastMember{
			ID:                 m.ID,
			Name:               m.Name,
			Character:          m.Character,
			KnownForDepartment: m.KnownForDepartment,
			ProfilePath:        deref(m.ProfilePath),
		})
	}
	return cast, nil
}

// GetRaw fetches an arbitrary API path and returns the undecoded body.
func (c *Client) GetRaw(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.get(ctx, path, query)
}

func langQuery(language string) url.Values {
	if language == "" {
		language = defaultLanguage
	}
	return url.Values{"language": {language}}
}

// get performs an authenticated GET request through the breaker.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.do(ctx, path, query)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			requestsTotal.WithLabelValues(endpointLabel(path), "rejected").Inc()
			return nil, &FetchError{Op: path, Err: err}
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, path string, query url.Values) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{Op: path, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	endpoint := endpointLabel(path)
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, &FetchError{Op: path, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &FetchError{Op: path, Status: resp.StatusCode, Err: ErrUnauthorized}
	case http.StatusNotFound:
		return nil, &FetchError{Op: path, Status: resp.StatusCode, Err: ErrNotFound}
	case http.StatusTooManyRequests:
		return nil, &FetchError{Op: path, Status: resp.StatusCode, Err: ErrRateLimited}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Op: path, Status: resp.StatusCode, Err: errors.New("unexpected status")}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &FetchError{Op: path, Status: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}
	c.log.Debug("tmdb request", zap.String("path", path), zap.Duration("took", time.Since(start)))
	return body, nil
}

// endpointLabel collapses ids out of a path so metrics stay low-cardinality:
// "/tv/1399/season/2" becomes "tv/:id/season/:n".
func endpointLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if _, err := strconv.Atoi(p); err == nil {
			if i > 0 && parts[i-1] == "season" {
				parts[i] = ":n"
			} else {
				parts[i] = ":id"
			}
		}
	}
	return strings.Join(parts, "/")
}

// throttledTransport waits on a limiter before every request.
type throttledTransport struct {
	*rate.Limiter
	http.RoundTripper
}

func (t throttledTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.RoundTripper.RoundTrip(req)
}
