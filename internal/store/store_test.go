package store

import (
	"context"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/theirongolddev/reelstats/internal/cache"
	"github.com/theirongolddev/reelstats/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "reelstats.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestUpsertItemUpdatesStatus(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	it := model.WatchedItem{UserID: "u1", TmdbID: 27205, MediaType: model.MediaMovie, Status: model.StatusWatchlist}
	if err := db.UpsertItem(ctx, &it); err != nil {
		t.Fatalf("UpsertItem() error = %v", err)
	}
	firstID := it.ID

	again := model.WatchedItem{UserID: "u1", TmdbID: 27205, MediaType: model.MediaMovie, Status: model.StatusWatched}
	if err := db.UpsertItem(ctx, &again); err != nil {
		t.Fatalf("UpsertItem() error = %v", err)
	}
	if again.ID != firstID {
		t.Fatalf("upsert ID = %q, want existing %q", again.ID, firstID)
	}

	got, ok, err := db.Item(ctx, "u1", 27205, model.MediaMovie)
	if err != nil || !ok {
		t.Fatalf("Item() = %v, %v", ok, err)
	}
	if got.Status != model.StatusWatched {
		t.Fatalf("Status = %s, want WATCHED", got.Status)
	}

	if _, ok, _ := db.Item(ctx, "u1", 27205, model.MediaTV); ok {
		t.Fatal("Item() found a TV row for a movie id")
	}
}

func TestItemsByStatusFiltersRange(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	seed := []model.WatchedItem{
		{UserID: "u1", TmdbID: 1, MediaType: model.MediaMovie, Status: model.StatusWatched, UpdatedAt: at("2024-01-10T20:00:00Z")},
		{UserID: "u1", TmdbID: 2, MediaType: model.MediaMovie, Status: model.StatusWatched, UpdatedAt: at("2024-02-10T20:00:00Z")},
		{UserID: "u1", TmdbID: 3, MediaType: model.MediaTV, Status: model.StatusWatched, UpdatedAt: at("2024-02-11T20:00:00Z")},
		{UserID: "u1", TmdbID: 4, MediaType: model.MediaMovie, Status: model.StatusWatchlist, UpdatedAt: at("2024-02-12T20:00:00Z")},
		{UserID: "u2", TmdbID: 1, MediaType: model.MediaMovie, Status: model.StatusWatched, UpdatedAt: at("2024-02-10T20:00:00Z")},
	}
	for i := range seed {
		if err := db.UpsertItem(ctx, &seed[i]); err != nil {
			t.Fatalf("UpsertItem() error = %v", err)
		}
	}

	items, err := db.ItemsByStatus(ctx, model.ItemQuery{
		UserID: "u1",
		Status: model.StatusWatched,
		Range:  model.MonthRange(at("2024-02-01T00:00:00Z")),
	})
	if err != nil {
		t.Fatalf("ItemsByStatus() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].TmdbID != 3 || items[1].TmdbID != 2 {
		t.Fatalf("order = [%d %d], want [3 2]", items[0].TmdbID, items[1].TmdbID)
	}
	if !items[1].UpdatedAt.Equal(at("2024-02-10T20:00:00Z")) {
		t.Fatalf("UpdatedAt = %v", items[1].UpdatedAt)
	}

	movies, err := db.ItemsByStatus(ctx, model.ItemQuery{UserID: "u1", Status: model.StatusWatched, MediaType: model.MediaMovie})
	if err != nil {
		t.Fatalf("ItemsByStatus() error = %v", err)
	}
	if len(movies) != 2 {
		t.Fatalf("movies = %d, want 2", len(movies))
	}
}

func TestEpisodesInsertDeleteAndMostWatched(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	var eps []model.WatchedEpisode
	for e := 1; e <= 5; e++ {
		eps = append(eps, model.WatchedEpisode{UserID: "u1", TmdbID: 87108, SeasonNumber: 1, EpisodeNumber: e, RuntimeMinutes: 66, WatchedAt: at("2024-01-15T21:00:00Z")})
	}
	eps = append(eps, model.WatchedEpisode{UserID: "u1", TmdbID: 1399, SeasonNumber: 1, EpisodeNumber: 1, RuntimeMinutes: 62, WatchedAt: at("2024-02-01T21:00:00Z")})

	if err := db.InsertEpisodes(ctx, eps); err != nil {
		t.Fatalf("InsertEpisodes() error = %v", err)
	}
	// Re-inserting the same episodes is a no-op.
	if err := db.InsertEpisodes(ctx, eps[:2]); err != nil {
		t.Fatalf("InsertEpisodes() duplicate error = %v", err)
	}

	all, err := db.Episodes(ctx, model.EpisodeQuery{UserID: "u1"})
	if err != nil {
		t.Fatalf("Episodes() error = %v", err)
	}
	if len(all) != 6 {
		t.Fatalf("episodes = %d, want 6", len(all))
	}

	jan, err := db.Episodes(ctx, model.EpisodeQuery{UserID: "u1", Range: model.MonthRange(at("2024-01-01T00:00:00Z"))})
	if err != nil {
		t.Fatalf("Episodes() error = %v", err)
	}
	if len(jan) != 5 {
		t.Fatalf("january episodes = %d, want 5", len(jan))
	}

	top, err := db.MostWatched(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("MostWatched() error = %v", err)
	}
	if len(top) != 2 || top[0].TmdbID != 87108 || top[0].Episodes != 5 {
		t.Fatalf("MostWatched() = %+v", top)
	}

	n, err := db.DeleteEpisodes(ctx, "u1", 87108)
	if err != nil {
		t.Fatalf("DeleteEpisodes() error = %v", err)
	}
	if n != 5 {
		t.Fatalf("deleted = %d, want 5", n)
	}
}

func TestBestReviewsSkipsEpisodeReviews(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	season := 1

	reviews := []model.Review{
		{UserID: "u1", TmdbID: 27205, MediaType: model.MediaMovie, Rating: 5, CreatedAt: at("2024-01-01T10:00:00Z")},
		{UserID: "u1", TmdbID: 603, MediaType: model.MediaMovie, Rating: 5, CreatedAt: at("2024-03-01T10:00:00Z")},
		{UserID: "u1", TmdbID: 550, MediaType: model.MediaMovie, Rating: 4, CreatedAt: at("2024-03-02T10:00:00Z")},
		{UserID: "u1", TmdbID: 1399, MediaType: model.MediaTV, Rating: 5, SeasonNumber: &season, CreatedAt: at("2024-03-03T10:00:00Z")},
	}
	for i := range reviews {
		if err := db.InsertReview(ctx, &reviews[i]); err != nil {
			t.Fatalf("InsertReview() error = %v", err)
		}
	}

	got, err := db.BestReviews(ctx, model.ReviewQuery{UserID: "u1", Limit: 10})
	if err != nil {
		t.Fatalf("BestReviews() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("reviews = %d, want 2", len(got))
	}
	if got[0].TmdbID != 603 {
		t.Fatalf("first review = %d, want newest 603", got[0].TmdbID)
	}

	limited, err := db.BestReviews(ctx, model.ReviewQuery{
		UserID: "u1",
		Limit:  1,
		Range:  model.MonthRange(at("2024-01-01T00:00:00Z")),
	})
	if err != nil {
		t.Fatalf("BestReviews() error = %v", err)
	}
	if len(limited) != 1 || limited[0].TmdbID != 27205 {
		t.Fatalf("january reviews = %+v", limited)
	}
}

func TestWatchedRankAndStatusCounts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	add := func(user string, id int, status model.ItemStatus) {
		it := model.WatchedItem{UserID: user, TmdbID: id, MediaType: model.MediaMovie, Status: status}
		if err := db.UpsertItem(ctx, &it); err != nil {
			t.Fatalf("UpsertItem() error = %v", err)
		}
	}
	add("u1", 1, model.StatusWatched)
	add("u1", 2, model.StatusWatched)
	add("u1", 3, model.StatusWatchlist)
	add("u2", 1, model.StatusWatched)
	add("u3", 1, model.StatusWatchlist)

	r, err := db.WatchedRank(ctx, "u1")
	if err != nil {
		t.Fatalf("WatchedRank() error = %v", err)
	}
	if r.UserCount != 2 || r.FewerCount != 2 || r.TotalUsers != 3 {
		t.Fatalf("WatchedRank() = %+v, want {2 2 3}", r)
	}

	counts, err := db.StatusCounts(ctx, "u1", model.DateRange{})
	if err != nil {
		t.Fatalf("StatusCounts() error = %v", err)
	}
	got := map[model.ItemStatus]int{}
	for _, c := range counts {
		got[c.Status] = c.Count
	}
	if got[model.StatusWatched] != 2 || got[model.StatusWatchlist] != 1 {
		t.Fatalf("StatusCounts() = %v", got)
	}

	users, err := db.Users(ctx)
	if err != nil {
		t.Fatalf("Users() error = %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("Users() = %v", users)
	}
}

func TestCacheBackend(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := at("2024-03-01T12:00:00Z")
	db.now = func() time.Time { return now }

	var b cache.Backend = db.CacheBackend()

	if err := b.Set(ctx, "user-stats:u1:total-hours", []byte(`{"totalHours":1}`), time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := b.Set(ctx, "user-stats:u1:total-hours:month", []byte(`{}`), 10*time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := b.Set(ctx, "user-stats:U1:total-hours", []byte(`{}`), time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	v, ok, err := b.Get(ctx, "user-stats:u1:total-hours")
	if err != nil || !ok || string(v) != `{"totalHours":1}` {
		t.Fatalf("Get() = %q, %v, %v", v, ok, err)
	}

	keys, err := b.KeysMatching(ctx, "user-stats:u1:*")
	if err != nil {
		t.Fatalf("KeysMatching() error = %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "user-stats:u1:total-hours" {
		t.Fatalf("KeysMatching() = %v", keys)
	}

	now = now.Add(11 * time.Minute)
	if _, ok, _ := b.Get(ctx, "user-stats:u1:total-hours:month"); ok {
		t.Fatal("expired entry still readable")
	}
	pruned, err := db.CacheBackend().Prune(ctx)
	if err != nil || pruned != 1 {
		t.Fatalf("Prune() = %d, %v, want 1", pruned, err)
	}

	if err := b.Delete(ctx, keys...); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := b.Get(ctx, "user-stats:u1:total-hours"); ok {
		t.Fatal("deleted entry still readable")
	}
	if _, ok, _ := b.Get(ctx, "user-stats:U1:total-hours"); !ok {
		t.Fatal("pattern must be case sensitive")
	}
}

func TestApplyItemChangeRollsBackOnEpisodeFailure(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// Fail part way through the episode batch.
	if _, err := db.db.ExecContext(ctx, `CREATE TRIGGER fail_third_episode BEFORE INSERT ON user_episodes
		WHEN NEW.episode_number = 3 BEGIN SELECT RAISE(ABORT, 'disk full'); END`); err != nil {
		t.Fatalf("creating trigger: %v", err)
	}

	var eps []model.WatchedEpisode
	for e := 1; e <= 4; e++ {
		eps = append(eps, model.WatchedEpisode{UserID: "u1", TmdbID: 87108, SeasonNumber: 1, EpisodeNumber: e, RuntimeMinutes: 60, WatchedAt: at("2024-03-15T21:00:00Z")})
	}
	it := model.WatchedItem{UserID: "u1", TmdbID: 87108, MediaType: model.MediaTV, Status: model.StatusWatched}
	if _, err := db.ApplyItemChange(ctx, model.ItemChange{Item: &it, Episodes: eps}); err == nil {
		t.Fatal("ApplyItemChange() should fail")
	}

	if _, ok, err := db.Item(ctx, "u1", 87108, model.MediaTV); err != nil || ok {
		t.Fatalf("item stored after failed change: ok=%v err=%v", ok, err)
	}
	if got, err := db.Episodes(ctx, model.EpisodeQuery{UserID: "u1"}); err != nil || len(got) != 0 {
		t.Fatalf("episodes after failed change = %d, err %v", len(got), err)
	}
}

func TestApplyItemChangeDropsEpisodes(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	eps := []model.WatchedEpisode{
		{UserID: "u1", TmdbID: 87108, SeasonNumber: 1, EpisodeNumber: 1, RuntimeMinutes: 60, WatchedAt: at("2024-03-15T21:00:00Z")},
		{UserID: "u1", TmdbID: 87108, SeasonNumber: 1, EpisodeNumber: 2, RuntimeMinutes: 60, WatchedAt: at("2024-03-15T21:00:00Z")},
	}
	it := model.WatchedItem{UserID: "u1", TmdbID: 87108, MediaType: model.MediaTV, Status: model.StatusWatched}
	if _, err := db.ApplyItemChange(ctx, model.ItemChange{Item: &it, Episodes: eps}); err != nil {
		t.Fatalf("ApplyItemChange() error = %v", err)
	}

	dropped := model.WatchedItem{ID: it.ID, UserID: "u1", TmdbID: 87108, MediaType: model.MediaTV, Status: model.StatusDropped}
	n, err := db.ApplyItemChange(ctx, model.ItemChange{Item: &dropped, DropEpisodes: true})
	if err != nil {
		t.Fatalf("ApplyItemChange() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("dropped = %d, want 2", n)
	}
	got, ok, err := db.Item(ctx, "u1", 87108, model.MediaTV)
	if err != nil || !ok || got.Status != model.StatusDropped {
		t.Fatalf("Item() = %+v, %v, %v", got, ok, err)
	}
}
