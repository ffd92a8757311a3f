package daemon

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/theirongolddev/reelstats/internal/model"
	"github.com/theirongolddev/reelstats/internal/stats"
	"github.com/theirongolddev/reelstats/internal/tmdb"
)

// errBadRequest marks errors caused by the request itself.
var errBadRequest = errors.New("bad request")

// statsQuery holds the query parameters accepted by the stats routes.
type statsQuery struct {
	Period   string `validate:"omitempty,period"`
	Language string `validate:"omitempty,bcp47_language_tag"`
	Limit    int    `validate:"gte=0,lte=100"`
	Cursor   string `validate:"omitempty,datetime=2006-01"`
	PageSize int    `validate:"gte=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		_, err := model.ParsePeriod(fl.Field().String())
		return err == nil
	})
	return v
}

// Handler returns the daemon's HTTP routes.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/events", s.handleEvents)
		r.Get("/stream", s.handleStream)

		r.Route("/users/{userID}/stats", func(r chi.Router) {
			r.Delete("/", s.handleInvalidate)
			r.Get("/total-hours", s.handleTotalHours)
			r.Get("/genres", s.handleGenres)
			r.Get("/countries", s.handleCountries)
			r.Get("/cast", s.handleCast)
			r.Get("/best-reviews", s.handleBestReviews)
			r.Get("/most-watched-series", s.handleMostWatchedSeries)
			r.Get("/items-status", s.handleItemsStatus)
			r.Get("/timeline", s.handleTimeline)
		})
	})

	if s.cfg.Proxy != nil {
		r.Handle("/tmdb/*", http.StripPrefix("/tmdb", s.cfg.Proxy))
	}
	return r
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, events)
}

// parseQuery reads and validates the stats query parameters.
func (s *Service) parseQuery(r *http.Request) (statsQuery, error) {
	v := r.URL.Query()
	q := statsQuery{
		Period:   v.Get("period"),
		Language: v.Get("language"),
		Cursor:   v.Get("cursor"),
	}
	var err error
	if q.Limit, err = intParam(v.Get("limit")); err != nil {
		return q, fmt.Errorf("%w: limit: %w", errBadRequest, err)
	}
	if q.PageSize, err = intParam(v.Get("pageSize")); err != nil {
		return q, fmt.Errorf("%w: pageSize: %w", errBadRequest, err)
	}
	if err := validate.Struct(q); err != nil {
		return q, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if q.Language == "" {
		q.Language = s.cfg.Language
	}
	return q, nil
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// period returns the parsed period and its date range.
func (s *Service) period(q statsQuery) (model.Period, model.DateRange) {
	p, _ := model.ParsePeriod(q.Period)
	return p, s.cfg.Engine.Range(p)
}

// serve runs fn with the validated query and writes its result as JSON.
func serve[T any](s *Service, w http.ResponseWriter, r *http.Request, fn func(userID string, q statsQuery) (T, error)) {
	q, err := s.parseQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := fn(chi.URLParam(r, "userID"), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Service) handleTotalHours(w http.ResponseWriter, r *http.Request) {
	serve(s, w, r, func(userID string, q statsQuery) (model.TotalHours, error) {
		p, dr := s.period(q)
		return s.cfg.Engine.TotalHours(r.Context(), userID, p, dr)
	})
}

func (s *Service) handleGenres(w http.ResponseWriter, r *http.Request) {
	serve(s, w, r, func(userID string, q statsQuery) ([]model.GenreStat, error) {
		p, dr := s.period(q)
		return s.cfg.Engine.WatchedGenres(r.Context(), stats.DistributionInput{UserID: userID, Language: q.Language, Period: p, Range: dr})
	})
}

func (s *Service) handleCountries(w http.ResponseWriter, r *http.Request) {
	serve(s, w, r, func(userID string, q statsQuery) ([]model.CountryStat, error) {
		p, dr := s.period(q)
		return s.cfg.Engine.WatchedCountries(r.Context(), stats.DistributionInput{UserID: userID, Language: q.Language, Period: p, Range: dr})
	})
}

func (s *Service) handleCast(w http.ResponseWriter, r *http.Request) {
	serve(s, w, r, func(userID string, q statsQuery) ([]model.CastStat, error) {
		p, dr := s.period(q)
		return s.cfg.Engine.WatchedCast(r.Context(), userID, p, dr)
	})
}

func (s *Service) handleBestReviews(w http.ResponseWriter, r *http.Request) {
	serve(s, w, r, func(userID string, q statsQuery) ([]model.BestReview, error) {
		_, dr := s.period(q)
		return s.cfg.Engine.BestReviews(r.Context(), stats.ReviewsInput{UserID: userID, Language: q.Language, Limit: q.Limit, Range: dr})
	})
}

func (s *Service) handleMostWatchedSeries(w http.ResponseWriter, r *http.Request) {
	serve(s, w, r, func(userID string, q statsQuery) ([]model.SeriesStat, error) {
		return s.cfg.Engine.MostWatchedSeries(r.Context(), userID, q.Language)
	})
}

func (s *Service) handleItemsStatus(w http.ResponseWriter, r *http.Request) {
	serve(s, w, r, func(userID string, q statsQuery) ([]model.StatusStat, error) {
		_, dr := s.period(q)
		return s.cfg.Engine.ItemsStatus(r.Context(), userID, dr)
	})
}

func (s *Service) handleTimeline(w http.ResponseWriter, r *http.Request) {
	serve(s, w, r, func(userID string, q statsQuery) (model.TimelinePage, error) {
		return s.cfg.Engine.Timeline(r.Context(), stats.TimelineInput{UserID: userID, Language: q.Language, Cursor: q.Cursor, PageSize: q.PageSize})
	})
}

func (s *Service) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := s.cfg.Engine.InvalidateUser(r.Context(), userID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.publishInvalidation(userID)
	w.WriteHeader(http.StatusNoContent)
}

// writeError maps err to a status: 400 for bad input, 502 when the
// metadata provider failed and 500 otherwise.
func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fe *tmdb.FetchError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, stats.ErrInvalidCursor), errors.Is(err, model.ErrInvalidPeriod):
		status = http.StatusBadRequest
	case errors.As(err, &fe), errors.Is(err, tmdb.ErrNotConfigured):
		status = http.StatusBadGateway
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
