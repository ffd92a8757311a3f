package model

// Kind is the metadata provider's name for a title type.
type Kind string

// Provider title kinds.
const (
	KindMovie Kind = "movie"
	KindTV    Kind = "tv"
)

// Valid reports whether k is movie or tv.
func (k Kind) Valid() bool {
	return k == KindMovie || k == KindTV
}

// MediaType maps a provider kind back onto the stored media type.
func (k Kind) MediaType() MediaType {
	if k == KindTV {
		return MediaTV
	}
	return MediaMovie
}

// Genre is a provider genre.
type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Country is a production country.
type Country struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Season is a season summary as listed on a show.
type Season struct {
	SeasonNumber int    `json:"seasonNumber"`
	EpisodeCount int    `json:"episodeCount"`
	Name         string `json:"name"`
}

// TitleDetails is the normalized provider payload for a movie or show.
// Zero values mean the provider did not supply the field.
type TitleDetails struct {
	ID           int       `json:"id"`
	Kind         Kind      `json:"kind"`
	Title        string    `json:"title"`
	PosterPath   string    `json:"posterPath,omitempty"`
	BackdropPath string    `json:"backdropPath,omitempty"`
	Runtime      int       `json:"runtime,omitempty"`
	Date         string    `json:"date,omitempty"`
	Genres       []Genre   `json:"genres,omitempty"`
	Countries    []Country `json:"countries,omitempty"`
	Seasons      []Season  `json:"seasons,omitempty"`
}

// SeasonEpisode is the reduced episode projection cached per season.
type SeasonEpisode struct {
	Name          string `json:"name"`
	ID            int    `json:"id"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	Runtime       int    `json:"runtime"`
}

// CastMember is one credited performer.
type CastMember struct {
	ID                 int    `json:"id"`
	Name               string `json:"name"`
	Character          string `json:"character"`
	KnownForDepartment string `json:"knownForDepartment"`
	ProfilePath        string `json:"profilePath,omitempty"`
}
