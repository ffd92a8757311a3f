// Package daemon provides the long-running statistics server: an HTTP API over
// the stats engine, a TMDB caching proxy, and a loop that keeps the hot
// per-user entries warm.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/theirongolddev/reelstats/internal/model"
	"github.com/theirongolddev/reelstats/internal/stats"
)

// Engine is the statistics surface served over HTTP.
type Engine interface {
	Range(p model.Period) model.DateRange
	TotalHours(ctx context.Context, userID string, period model.Period, r model.DateRange) (model.TotalHours, error)
	WatchedGenres(ctx context.Context, in stats.DistributionInput) ([]model.GenreStat, error)
	WatchedCountries(ctx context.Context, in stats.DistributionInput) ([]model.CountryStat, error)
	WatchedCast(ctx context.Context, userID string, period model.Period, r model.DateRange) ([]model.CastStat, error)
	BestReviews(ctx context.Context, in stats.ReviewsInput) ([]model.BestReview, error)
	MostWatchedSeries(ctx context.Context, userID, language string) ([]model.SeriesStat, error)
	ItemsStatus(ctx context.Context, userID string, r model.DateRange) ([]model.StatusStat, error)
	Timeline(ctx context.Context, in stats.TimelineInput) (model.TimelinePage, error)
	InvalidateUser(ctx context.Context, userID string) error
}

// Config controls the daemon runtime behavior.
type Config struct {
	Addr         string
	Interval     time.Duration
	EventsBuffer int
	Language     string

	Engine Engine
	// Users lists the users whose stats are kept warm.
	Users func(ctx context.Context) ([]string, error)
	// Proxy serves /tmdb/*. Nil disables the route.
	Proxy  http.Handler
	Logger *zap.Logger
}

// UserSnapshot is the last warmed state of one user.
type UserSnapshot struct {
	UserID     string    `json:"user_id"`
	At         time.Time `json:"at"`
	TotalHours float64   `json:"total_hours"`
	MonthHours float64   `json:"month_hours"`
}

// Event is emitted when a user's warmed totals change or their cache is dropped.
type Event struct {
	ID        int64        `json:"id"`
	Type      string       `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Snapshot  UserSnapshot `json:"snapshot"`
	Delta     float64      `json:"delta_hours"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time      `json:"started_at"`
	LastWarmAt      time.Time      `json:"last_warm_at"`
	WarmIntervalSec int            `json:"warm_interval_sec"`
	WarmCount       int64          `json:"warm_count"`
	Users           []UserSnapshot `json:"users"`
	LastError       string         `json:"last_error,omitempty"`
	EventCount      int            `json:"event_count"`
	SubscriberCount int            `json:"subscriber_count"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg Config
	log *zap.Logger

	mu          sync.RWMutex
	startedAt   time.Time
	lastWarmAt  time.Time
	warmCount   int64
	lastError   string
	snapshots   map[string]UserSnapshot
	order       []string
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new daemon service with the provided config.
func New(cfg Config) *Service {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.Users == nil {
		cfg.Users = func(context.Context) ([]string, error) { return nil, nil }
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		cfg:       cfg,
		log:       log.Named("daemon"),
		startedAt: time.Now(),
		snapshots: make(map[string]UserSnapshot),
		subs:      make(map[int]chan Event),
	}
}

// Run starts HTTP endpoints and the warm loop until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.log.Info("listening", zap.String("addr", s.cfg.Addr), zap.Duration("warm_interval", s.cfg.Interval))

	s.warmOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.warmOnce(ctx)
		case err := <-errCh:
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

// warmOnce recomputes the month and all-time totals of every warm user.
// Values come from the cache when still fresh, so a warm pass after an
// invalidation is what repopulates it.
func (s *Service) warmOnce(ctx context.Context) {
	start := time.Now()
	users, err := s.cfg.Users(ctx)
	if err != nil {
		s.recordWarm(fmt.Errorf("listing users: %w", err))
		return
	}

	var firstErr error
	for _, userID := range users {
		snap, err := s.warmUser(ctx, userID)
		if err != nil {
			s.log.Warn("warm failed", zap.String("user", userID), zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("warming %s: %w", userID, err)
			}
			continue
		}
		s.storeSnapshot(snap)
	}
	s.recordWarm(firstErr)
	s.log.Debug("warm pass", zap.Int("users", len(users)), zap.Duration("took", time.Since(start)))
}

func (s *Service) warmUser(ctx context.Context, userID string) (UserSnapshot, error) {
	all, err := s.cfg.Engine.TotalHours(ctx, userID, model.PeriodAll, s.cfg.Engine.Range(model.PeriodAll))
	if err != nil {
		return UserSnapshot{}, err
	}
	month, err := s.cfg.Engine.TotalHours(ctx, userID, model.PeriodMonth, s.cfg.Engine.Range(model.PeriodMonth))
	if err != nil {
		return UserSnapshot{}, err
	}
	return UserSnapshot{UserID: userID, At: time.Now(), TotalHours: all.TotalHours, MonthHours: month.TotalHours}, nil
}

func (s *Service) recordWarm(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastWarmAt = time.Now()
	s.warmCount++
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
}

// storeSnapshot keeps snap and publishes an event when the user is new or
// their all-time total moved.
func (s *Service) storeSnapshot(snap UserSnapshot) {
	var (
		ev      Event
		publish bool
	)

	s.mu.Lock()
	prev, existed := s.snapshots[snap.UserID]
	if !existed {
		s.order = append(s.order, snap.UserID)
	}
	s.snapshots[snap.UserID] = snap

	switch {
	case !existed:
		s.nextEventID++
		ev = Event{ID: s.nextEventID, Type: "snapshot", Timestamp: snap.At, Snapshot: snap}
		publish = true
	case snap.TotalHours != prev.TotalHours || snap.MonthHours != prev.MonthHours:
		s.nextEventID++
		ev = Event{ID: s.nextEventID, Type: "hours_delta", Timestamp: snap.At, Snapshot: snap, Delta: snap.TotalHours - prev.TotalHours}
		publish = true
	}
	s.mu.Unlock()

	if publish {
		s.publishEvent(ev)
	}
}

func (s *Service) publishInvalidation(userID string) {
	s.mu.Lock()
	s.nextEventID++
	ev := Event{ID: s.nextEventID, Type: "invalidated", Timestamp: time.Now(), Snapshot: UserSnapshot{UserID: userID}}
	s.mu.Unlock()
	s.publishEvent(ev)
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]UserSnapshot, 0, len(s.order))
	for _, id := range s.order {
		users = append(users, s.snapshots[id])
	}
	return Status{
		StartedAt:       s.startedAt,
		LastWarmAt:      s.lastWarmAt,
		WarmIntervalSec: int(s.cfg.Interval.Seconds()),
		WarmCount:       s.warmCount,
		Users:           users,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	for _, snap := range s.snapshotStatus().Users {
		writeSSE(w, Event{Type: "snapshot", Timestamp: snap.At, Snapshot: snap})
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
