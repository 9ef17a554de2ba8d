package domain

import "time"

// PlaylistItem is the public projection of a finished track: a subset of
// Track fields plus the derived display fields.
type PlaylistItem struct {
	FileRef            string  `json:"-"`
	StreamURL          string  `json:"stream_url"`
	Title              string  `json:"title"`
	Artist             string  `json:"artist"`
	Album              string  `json:"album,omitempty"`
	Year               int     `json:"year,omitempty"`
	Genre              string  `json:"genre,omitempty"`
	DurationSecs       int     `json:"duration"`
	Bitrate            int     `json:"bitrate"`
	Quality            string  `json:"quality,omitempty"`
	CoverURL           string  `json:"cover_url,omitempty"`
	RelativePopularity float64 `json:"relative_popularity"`
	PopularityDisplay  string  `json:"popularity_display"`
}

// Playlist is the persisted result of one successful assembly. Immutable
// after creation except for a name edit and deletion, which live outside the
// engine.
type Playlist struct {
	ID       string
	Name     string
	Query    string
	Filters  map[string]string
	Items    []PlaylistItem
	Owner    string
	ResultID string // referenced by regenerate requests to exclude items
	Kind     string // request type that produced it
	M3UPath  string
	Created  time.Time
}

// Feedback is one append-only user verdict on a playlist or track.
type Feedback struct {
	ID         string
	Owner      string
	PlaylistID string
	TrackRef   string
	Verdict    string
	Comment    string
	Created    time.Time
}
