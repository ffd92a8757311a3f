package stats

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/theirongolddev/reelstats/internal/batch"
	"github.com/theirongolddev/reelstats/internal/cache"
	"github.com/theirongolddev/reelstats/internal/metadata"
	"github.com/theirongolddev/reelstats/internal/model"
)

var (
	inception    = model.TitleDetails{ID: 27205, Kind: model.KindMovie, Title: "Inception", PosterPath: "/inception.jpg", Runtime: 148, Date: "2010-07-15", Genres: []model.Genre{{ID: 28, Name: "Action"}, {ID: 878, Name: "Science Fiction"}}, Countries: []model.Country{{Code: "US", Name: "United States of America"}, {Code: "GB", Name: "United Kingdom"}}}
	interstellar = model.TitleDetails{ID: 157336, Kind: model.KindMovie, Title: "Interstellar", PosterPath: "/interstellar.jpg", Runtime: 169, Date: "2014-11-05", Genres: []model.Genre{{ID: 878, Name: "Science Fiction"}, {ID: 18, Name: "Drama"}}, Countries: []model.Country{{Code: "US", Name: "United States of America"}}}
	chernobyl    = model.TitleDetails{ID: 87108, Kind: model.KindTV, Title: "Chernobyl", PosterPath: "/chernobyl.jpg", BackdropPath: "/chernobyl-bd.jpg", Runtime: 65, Date: "2019-05-06", Genres: []model.Genre{{ID: 18, Name: "Drama"}}, Countries: []model.Country{{Code: "GB", Name: "United Kingdom"}}}
)

var errUpstream = errors.New("upstream down")

type fakeProvider struct {
	mu      sync.Mutex
	details map[model.Kind]map[int]model.TitleDetails
	cast    map[int][]model.CastMember
	fail    bool
	calls   int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		details: map[model.Kind]map[int]model.TitleDetails{
			model.KindMovie: {inception.ID: inception, interstellar.ID: interstellar},
			model.KindTV:    {chernobyl.ID: chernobyl},
		},
		cast: map[int][]model.CastMember{},
	}
}

func (p *fakeProvider) Details(_ context.Context, kind model.Kind, id int, _ string) (model.TitleDetails, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail {
		return model.TitleDetails{}, errUpstream
	}
	return p.details[kind][id], nil
}

func (p *fakeProvider) SeasonEpisodes(context.Context, int, int, string) ([]model.SeasonEpisode, error) {
	return nil, nil
}

func (p *fakeProvider) Credits(_ context.Context, _ model.Kind, id int, _ string) ([]model.CastMember, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail {
		return nil, errUpstream
	}
	return p.cast[id], nil
}

type fakeRepo struct {
	mu       sync.Mutex
	items    []model.WatchedItem
	episodes []model.WatchedEpisode
	reviews  []model.Review
	series   []model.SeriesEpisodeCount
	statuses []model.StatusCount
	rank     model.WatchedRank
	reads    int
}

func (r *fakeRepo) read() {
	r.mu.Lock()
	r.reads++
	r.mu.Unlock()
}

func (r *fakeRepo) readCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

func (r *fakeRepo) ItemsByStatus(_ context.Context, q model.ItemQuery) ([]model.WatchedItem, error) {
	r.read()
	var out []model.WatchedItem
	for _, it := range r.items {
		if it.UserID != q.UserID ||
			(q.Status != "" && it.Status != q.Status) ||
			(q.MediaType != "" && it.MediaType != q.MediaType) ||
			!q.Range.Contains(it.UpdatedAt) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (r *fakeRepo) Episodes(_ context.Context, q model.EpisodeQuery) ([]model.WatchedEpisode, error) {
	r.read()
	var out []model.WatchedEpisode
	for _, ep := range r.episodes {
		if ep.UserID != q.UserID || (q.TmdbID != 0 && ep.TmdbID != q.TmdbID) || !q.Range.Contains(ep.WatchedAt) {
			continue
		}
		out = append(out, ep)
	}
	return out, nil
}

func (r *fakeRepo) MostWatched(_ context.Context, _ string, limit int) ([]model.SeriesEpisodeCount, error) {
	r.read()
	if len(r.series) > limit {
		return r.series[:limit], nil
	}
	return r.series, nil
}

func (r *fakeRepo) BestReviews(_ context.Context, q model.ReviewQuery) ([]model.Review, error) {
	r.read()
	var out []model.Review
	for _, rv := range r.reviews {
		if rv.UserID == q.UserID && rv.SeasonNumber == nil && rv.EpisodeNumber == nil &&
			rv.Rating == 5 && q.Range.Contains(rv.CreatedAt) {
			out = append(out, rv)
		}
	}
	slices.SortFunc(out, func(a, b model.Review) int { return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano()) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *fakeRepo) WatchedRank(context.Context, string) (model.WatchedRank, error) {
	r.read()
	return r.rank, nil
}

func (r *fakeRepo) StatusCounts(context.Context, string, model.DateRange) ([]model.StatusCount, error) {
	r.read()
	return r.statuses, nil
}

// now is the fixed clock of every engine under test.
var now = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func day(d string, hour int) time.Time {
	t, err := time.Parse("2006-01-02", d)
	if err != nil {
		panic(err)
	}
	return t.Add(time.Duration(hour) * time.Hour)
}

func watched(id int, mt model.MediaType, at time.Time) model.WatchedItem {
	return model.WatchedItem{ID: "item", UserID: "u1", TmdbID: id, MediaType: mt, Status: model.StatusWatched, UpdatedAt: at}
}

func episodes(id int, at time.Time, runtimes ...int) []model.WatchedEpisode {
	out := make([]model.WatchedEpisode, len(runtimes))
	for i, rt := range runtimes {
		out[i] = model.WatchedEpisode{UserID: "u1", TmdbID: id, SeasonNumber: 1, EpisodeNumber: i + 1, RuntimeMinutes: rt, WatchedAt: at}
	}
	return out
}

type harness struct {
	engine   *Engine
	repo     *fakeRepo
	provider *fakeProvider
	mem      *cache.Memory
}

func newHarness(t *testing.T, repo *fakeRepo) *harness {
	t.Helper()
	mem := cache.NewMemory(0)
	t.Cleanup(func() { _ = mem.Close() })
	store := cache.New(mem, nil)
	p := newFakeProvider()
	e := New(Config{
		Repo:     repo,
		Metadata: metadata.NewService(p, store, nil),
		Cache:    store,
		Batch:    batch.Options{Size: 2}.NoDelay(),
		Now:      func() time.Time { return now },
		Location: time.UTC,
	})
	return &harness{engine: e, repo: repo, provider: p, mem: mem}
}
