package tmdb

import "github.com/theirongolddev/reelstats/internal/model"

type genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type productionCountry struct {
	Code string `json:"iso_3166_1"`
	Name string `json:"name"`
}

type seasonSummary struct {
	SeasonNumber int    `json:"season_number"`
	EpisodeCount int    `json:"episode_count"`
	Name         string `json:"name"`
}

// titleResponse covers both /movie/{id} and /tv/{id}. Movies carry title,
// release_date and runtime; shows carry name, first_air_date,
// episode_run_time and seasons.
type titleResponse struct {
	ID                  int                 `json:"id"`
	Title               string              `json:"title"`
	Name                string              `json:"name"`
	PosterPath          *string             `json:"poster_path"`
	BackdropPath        *string             `json:"backdrop_path"`
	Runtime             *int                `json:"runtime"`
	EpisodeRunTime      []int               `json:"episode_run_time"`
	ReleaseDate         string              `json:"release_date"`
	FirstAirDate        string              `json:"first_air_date"`
	Genres              []genre             `json:"genres"`
	ProductionCountries []productionCountry `json:"production_countries"`
	Seasons             []seasonSummary     `json:"seasons"`
}

type episodeResponse struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	SeasonNumber  int     `json:"season_number"`
	EpisodeNumber int     `json:"episode_number"`
	Runtime       *int    `json:"runtime"`
	StillPath     *string `json:"still_path"`
}

type seasonResponse struct {
	ID           int               `json:"id"`
	SeasonNumber int               `json:"season_number"`
	Episodes     []episodeResponse `json:"episodes"`
}

type castResponse struct {
	ID                 int     `json:"id"`
	Name               string  `json:"name"`
	Character          string  `json:"character"`
	KnownForDepartment string  `json:"known_for_department"`
	ProfilePath        *string `json:"profile_path"`
}

type creditsResponse struct {
	ID   int            `json:"id"`
	Cast []castResponse `json:"cast"`
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (r titleResponse) normalize(kind model.Kind) model.TitleDetails {
	d := model.TitleDetails{
		ID:           r.ID,
		Kind:         kind,
		PosterPath:   deref(r.PosterPath),
		BackdropPath: deref(r.BackdropPath),
	}
	if kind == model.KindTV {
		d.Title = r.Name
		d.Date = r.FirstAirDate
		if len(r.EpisodeRunTime) > 0 {
			d.Runtime = r.EpisodeRunTime[0]
		}
	} else {
		d.Title = r.Title
		d.Date = r.ReleaseDate
		d.Runtime = deref(r.Runtime)
	}
	for _, g := range r.Genres {
		d.Genres = append(d.Genres, model.Genre{ID: g.ID, Name: g.Name})
	}
	for _, c := range r.ProductionCountries {
		d.Countries = append(d.Countries, model.Country{Code: c.Code, Name: c.Name})
	}
	for _, s := range r.Seasons {
		d.Seasons = append(d.Seasons, model.Season{SeasonNumber: s.SeasonNumber, EpisodeCount: s.EpisodeCount, Name: s.Name})
	}
	return d
}
