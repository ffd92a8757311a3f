// Package model defines domain types for reelstats watch records and statistics.
package model

import "time"

// MediaType distinguishes movies from TV shows in the watch store.
type MediaType string

// Media types as stored by the watch store.
const (
	MediaMovie MediaType = "MOVIE"
	MediaTV    MediaType = "TV_SHOW"
)

// Kind maps a stored media type onto the metadata provider's vocabulary.
func (m MediaType) Kind() Kind {
	if m == MediaTV {
		return KindTV
	}
	return KindMovie
}

// Valid reports whether m is a known media type.
func (m MediaType) Valid() bool {
	return m == MediaMovie || m == MediaTV
}

// ItemStatus is the lifecycle state of a tracked title.
type ItemStatus string

// Item statuses.
const (
	StatusWatched   ItemStatus = "WATCHED"
	StatusWatching  ItemStatus = "WATCHING"
	StatusWatchlist ItemStatus = "WATCHLIST"
	StatusDropped   ItemStatus = "DROPPED"
)

// Statuses lists every status in display order.
var Statuses = []ItemStatus{StatusWatched, StatusWatching, StatusWatchlist, StatusDropped}

// Valid reports whether s is a known status.
func (s ItemStatus) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// WatchedItem is one title in a user's list.
type WatchedItem struct {
	ID        string
	UserID    string
	TmdbID    int
	MediaType MediaType
	Status    ItemStatus
	AddedAt   time.Time
	UpdatedAt time.Time
}

// WatchedEpisode is one episode a user has seen. Rows are created in bulk
// when a show is marked watched and removed when it leaves that state.
type WatchedEpisode struct {
	ID             string
	UserID         string
	TmdbID         int
	SeasonNumber   int
	EpisodeNumber  int
	RuntimeMinutes int
	WatchedAt      time.Time
}

// ItemChange is a status change stored together with its episode rows.
// Stores apply it in one transaction.
type ItemChange struct {
	Item         *WatchedItem
	Episodes     []WatchedEpisode // recorded alongside the item
	DropEpisodes bool             // remove every episode of the show
}

// Review is a user's rating of a title, season or episode.
type Review struct {
	ID            string
	UserID        string
	TmdbID        int
	MediaType     MediaType
	Rating        int
	Text          string
	SeasonNumber  *int
	EpisodeNumber *int
	CreatedAt     time.Time
}

// SeriesEpisodeCount is the number of watched episodes for one show.
type SeriesEpisodeCount struct {
	TmdbID   int
	Episodes int
}

// WatchedRank is the input to the percentile computation.
type WatchedRank struct {
	UserCount  int // watched items for the user being ranked
	FewerCount int // users with strictly fewer watched items
	TotalUsers int
}

// StatusCount is the number of items in one status.
type StatusCount struct {
	Status ItemStatus
	Count  int
}
