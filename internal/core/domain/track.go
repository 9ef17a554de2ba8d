package domain

// Track is a catalog recording. The engine never mutates it; the catalog
// store owns the data and the engine reads it.
type Track struct {
	ID     string
	Title  string
	Artist string
	Album  string // optional
	Year   int    // 0 when unknown
	Decade string // derived, e.g. "1980s"
	Genres []string

	// Acoustic features, computed upstream.
	TempoBPM   float64
	EnergyRMS  float64
	LoudnessDB float64

	// Emotional tags assigned by the analysis pipeline.
	SoundTag   string
	LyricsTag  string
	ContextTag string

	// Raw engagement metrics.
	Playcount int64
	Listeners int64
	Views     int64

	Bitrate      int
	Quality      string
	DurationSecs int
	FileRef      string // opaque library path, unique per recording
	CoverRef     string

	// Country association: where the artist is from, and up to three
	// ranked countries where the track charts.
	ArtistArea string
	PopularIn  []string
}

// PrimaryGenre returns the first genre label, or "unknown" when the track
// carries none.
func (t Track) PrimaryGenre() string {
	if len(t.Genres) == 0 || t.Genres[0] == "" {
		return "unknown"
	}
	return t.Genres[0]
}

// Candidate is a Track plus the scores derived during one assembly run.
// Candidates are working state and are never persisted as-is.
type Candidate struct {
	Track

	RawPopularity      float64 // [0,1]
	RelativePopularity float64 // [0.2,1]
	Display            string
}

// EngagementMaxima holds the corpus-wide maxima used to normalize raw
// engagement metrics.
type EngagementMaxima struct {
	Playcount float64
	Listeners float64
	Views     float64
}

// ArtistProfile summarizes an artist's catalog footprint, used to find
// similar artists.
type ArtistProfile struct {
	Artist   string
	Genre    string
	AvgTempo float64
	SoundTag string
	Tracks   int
}
