package stats

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/reelstats/internal/cache"
	"github.com/theirongolddev/reelstats/internal/model"
)

func distributionRepo() *fakeRepo {
	return &fakeRepo{
		items: []model.WatchedItem{
			watched(inception.ID, model.MediaMovie, day("2024-03-02", 20)),
			watched(interstellar.ID, model.MediaMovie, day("2024-03-05", 20)),
			// Marked watched long ago; only its episodes fall in March.
			watched(chernobyl.ID, model.MediaTV, day("2023-01-01", 20)),
		},
		episodes: episodes(chernobyl.ID, day("2024-03-07", 22), 60, 60),
	}
}

func TestWatchedGenresFoldsInEpisodesInRange(t *testing.T) {
	h := newHarness(t, distributionRepo())
	in := DistributionInput{UserID: "u1", Language: "en-US", Period: model.PeriodMonth, Range: h.engine.Range(model.PeriodMonth)}

	genres, err := h.engine.WatchedGenres(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, genres, 3)

	// Drama and Science Fiction tie on two titles; names break the tie.
	assert.Equal(t, "Drama", genres[0].Name)
	assert.Equal(t, 2, genres[0].Count)
	assert.InDelta(t, 200.0/3, genres[0].Percentage, 1e-9)
	require.NotNil(t, genres[0].PosterPath)
	assert.Equal(t, "/interstellar.jpg", *genres[0].PosterPath)
	assert.Equal(t, []model.GenreItem{
		{TmdbID: interstellar.ID, MediaType: model.MediaMovie, PosterPath: ptr("/interstellar.jpg")},
		{TmdbID: chernobyl.ID, MediaType: model.MediaTV, PosterPath: ptr("/chernobyl.jpg")},
	}, genres[0].Items)

	assert.Equal(t, "Science Fiction", genres[1].Name)
	assert.Equal(t, "/inception.jpg", *genres[1].PosterPath)
	assert.Equal(t, "Action", genres[2].Name)
	assert.Equal(t, 1, genres[2].Count)

	for _, g := range genres {
		assert.GreaterOrEqual(t, g.Percentage, 0.0)
		assert.LessOrEqual(t, g.Percentage, 100.0)
	}
}

func TestWatchedGenresAllTimeSkipsEpisodeFold(t *testing.T) {
	repo := distributionRepo()
	repo.items = repo.items[:2]
	h := newHarness(t, repo)

	genres, err := h.engine.WatchedGenres(context.Background(), DistributionInput{UserID: "u1", Language: "en-US"})
	require.NoError(t, err)
	names := make([]string, len(genres))
	for i, g := range genres {
		names[i] = g.Name
	}
	assert.Equal(t, []string{"Science Fiction", "Action", "Drama"}, names)
}

func TestWatchedGenresEmptyIsNotCached(t *testing.T) {
	h := newHarness(t, &fakeRepo{})
	ctx := context.Background()

	genres, err := h.engine.WatchedGenres(ctx, DistributionInput{UserID: "u1", Language: "en-US"})
	require.NoError(t, err)
	assert.NotNil(t, genres)
	assert.Empty(t, genres)

	_, ok, err := h.mem.Get(ctx, cache.StatsKey("u1", StatWatchedGenres, "en-US", ""))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWatchedCountries(t *testing.T) {
	h := newHarness(t, distributionRepo())
	in := DistributionInput{UserID: "u1", Language: "en-US", Period: model.PeriodMonth, Range: h.engine.Range(model.PeriodMonth)}

	countries, err := h.engine.WatchedCountries(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, countries, 2)
	assert.Equal(t, "United Kingdom", countries[0].Name)
	assert.Equal(t, 2, countries[0].Count)
	assert.InDelta(t, 200.0/3, countries[0].Percentage, 1e-9)
	assert.Equal(t, "United States of America", countries[1].Name)
	assert.Equal(t, 2, countries[1].Count)
}

func TestWatchedCast(t *testing.T) {
	repo := distributionRepo()
	h := newHarness(t, repo)
	h.provider.cast[inception.ID] = []model.CastMember{
		{ID: 6193, Name: "Leonardo DiCaprio", Character: "Cobb", KnownForDepartment: "Acting", ProfilePath: "/leo.jpg"},
		{ID: 24045, Name: "Joseph Gordon-Levitt", Character: "Arthur", KnownForDepartment: "Acting"},
		{ID: 525, Name: "Christopher Nolan", Character: "Director", KnownForDepartment: "Directing"},
	}
	h.provider.cast[interstellar.ID] = []model.CastMember{
		{ID: 10297, Name: "Matthew McConaughey", Character: "Cooper", KnownForDepartment: "Acting"},
		{ID: 6193, Name: "Leonardo DiCaprio", Character: "Himself (uncredited)", KnownForDepartment: "Acting"},
		{ID: 1892, Name: "Matt Damon", Character: "Mann", KnownForDepartment: "Acting"},
	}
	h.provider.cast[chernobyl.ID] = []model.CastMember{
		{ID: 1892, Name: "Matt Damon", Character: "Guest", KnownForDepartment: "Acting"},
		{ID: 1, Name: "A", Character: "a", KnownForDepartment: "Acting"},
		{ID: 2, Name: "B", Character: "b", KnownForDepartment: "Acting"},
	}

	cast, err := h.engine.WatchedCast(context.Background(), "u1", model.PeriodAll, model.DateRange{})
	require.NoError(t, err)
	require.Len(t, cast, 5)
	assert.Equal(t, "Matt Damon", cast[0].Name)
	assert.Equal(t, 2, cast[0].Count)
	assert.InDelta(t, 200.0/3, cast[0].Percentage, 1e-9)
	for _, c := range cast {
		assert.NotEqual(t, "Christopher Nolan", c.Name)
		if c.Name == "Leonardo DiCaprio" {
			assert.Equal(t, 1, c.Count)
			require.NotNil(t, c.ProfilePath)
		}
	}
}
