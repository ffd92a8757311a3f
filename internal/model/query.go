package model

// ItemQuery selects tracked titles. Range filters on the last update time.
type ItemQuery struct {
	UserID    string
	Status    ItemStatus // empty matches every status
	MediaType MediaType  // empty matches both
	Range     DateRange
}

// EpisodeQuery selects watched episodes. Range filters on the watch time.
type EpisodeQuery struct {
	UserID string
	TmdbID int // zero matches every show
	Range  DateRange
}

// ReviewQuery selects a user's best title-level reviews, newest first.
// Range filters on the creation time.
type ReviewQuery struct {
	UserID string
	Range  DateRange
	Limit  int
}
