package model

import "time"

// TimeBucket is one day or month of watch time. The label is "YYYY-MM-DD"
// for daily buckets and "YYYY-MM" for monthly ones.
type TimeBucket struct {
	Month string  `json:"month"`
	Hours float64 `json:"hours"`
}

// HourCount is one slot of the 24-hour histogram.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// PeakTimeSlot names the busiest part of the day.
type PeakTimeSlot struct {
	Slot  string `json:"slot"`
	Hour  int    `json:"hour"`
	Count int    `json:"count"`
}

// DayHours is one day of the activity heatmap.
type DayHours struct {
	Day   string  `json:"day"`
	Hours float64 `json:"hours"`
}

// TotalHours is the watch-time summary for a user and period.
type TotalHours struct {
	TotalHours         float64       `json:"totalHours"`
	MovieHours         float64       `json:"movieHours"`
	SeriesHours        float64       `json:"seriesHours"`
	MonthlyHours       []TimeBucket  `json:"monthlyHours"`
	PeakTimeSlot       *PeakTimeSlot `json:"peakTimeSlot"`
	HourlyDistribution []HourCount   `json:"hourlyDistribution"`
	DailyActivity      []DayHours    `json:"dailyActivity"`
	PercentileRank     *int          `json:"percentileRank"`
}

// GenreItem is a title that contributed to a genre count.
type GenreItem struct {
	TmdbID     int       `json:"tmdbId"`
	MediaType  MediaType `json:"mediaType"`
	PosterPath *string   `json:"posterPath"`
}

// GenreStat is one row of the genre distribution.
type GenreStat struct {
	Name       string      `json:"name"`
	Count      int         `json:"count"`
	Percentage float64     `json:"percentage"`
	PosterPath *string     `json:"posterPath"`
	Items      []GenreItem `json:"items"`
}

// CountryStat is one row of the production-country distribution.
type CountryStat struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// CastStat is one of the most-watched performers.
type CastStat struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Count       int     `json:"count"`
	Percentage  float64 `json:"percentage"`
	ProfilePath *string `json:"profilePath"`
}

// BestReview is a top-rated review with display metadata attached.
type BestReview struct {
	ID         string    `json:"id"`
	TmdbID     int       `json:"tmdbId"`
	MediaType  MediaType `json:"mediaType"`
	Rating     int       `json:"rating"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
	Title      string    `json:"title"`
	PosterPath *string   `json:"posterPath"`
	Date       *string   `json:"date"`
}

// SeriesStat is one of the shows with the most watched episodes.
type SeriesStat struct {
	ID           int     `json:"id"`
	Episodes     int     `json:"episodes"`
	Title        string  `json:"title"`
	PosterPath   *string `json:"posterPath"`
	BackdropPath *string `json:"backdropPath"`
}

// StatusStat is one row of the per-status item breakdown.
type StatusStat struct {
	Status     ItemStatus `json:"status"`
	Count      int        `json:"count"`
	Percentage float64    `json:"percentage"`
}

// TopGenre is the leading genre of a timeline month.
type TopGenre struct {
	Name       string  `json:"name"`
	PosterPath *string `json:"posterPath"`
}

// TopReview is the best review written in a timeline month.
type TopReview struct {
	Title      string  `json:"title"`
	PosterPath *string `json:"posterPath"`
	Rating     int     `json:"rating"`
}

// TimelineSection summarizes one month of activity.
type TimelineSection struct {
	YearMonth   string     `json:"yearMonth"`
	TotalHours  float64    `json:"totalHours"`
	MovieHours  float64    `json:"movieHours"`
	SeriesHours float64    `json:"seriesHours"`
	TopGenre    *TopGenre  `json:"topGenre"`
	TopReview   *TopReview `json:"topReview"`
}

// TimelinePage is one page of the reverse-chronological timeline.
type TimelinePage struct {
	Sections   []TimelineSection `json:"sections"`
	NextCursor *string           `json:"nextCursor"`
	HasMore    bool              `json:"hasMore"`
}
