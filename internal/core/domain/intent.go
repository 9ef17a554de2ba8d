package domain

// RequestType classifies what kind of playlist the user asked for.
type RequestType string

const (
	RequestArtist      RequestType = "artist"
	RequestSimilarTo   RequestType = "similar_to"
	RequestCountry     RequestType = "country"
	RequestGenreOrMood RequestType = "genre_or_mood"
	RequestRegion      RequestType = "region"
)

// QueryIntent is the structured reading of a free-text request. It is
// derived per request and never persisted. At most one temporal
// representation is active inside Filters (the setters enforce it), and
// Limit is always within [1,100].
type QueryIntent struct {
	// Query is the original request text, kept for keyword tokenization
	// in the late search tiers.
	Query  string
	Type   RequestType
	Artist string
	Album  string
	Track  string
	Genre  string
	Mood   string

	Region          string
	RegionCountries []string

	Filters Filters
	Limit   int

	// FromFallback marks an intent produced by the deterministic
	// classifier after the model failed.
	FromFallback bool
}

// IntentGuess carries the model's loose reading of a request before the
// deterministic detectors override the safety-critical dimensions. Missing
// fields stay zero; unknown fields are dropped at the boundary.
type IntentGuess struct {
	Type        string
	Artist      string
	Track       string
	Album       string
	Genre       string
	Mood        string
	Decades     []string
	Year        int
	YearFrom    int
	YearTo      int
	Country     string
	CountryKind string
	Limit       int
}

// Suggestion is a model-proposed recording used to steer catalog queries
// within a single request. Never persisted.
type Suggestion struct {
	Title  string
	Artist string
	Album  string
}

// ModelReply is the validated shape of a generative-model response: filter
// hints plus track suggestions. Collections are empty, never nil, when the
// model omits them.
type ModelReply struct {
	Filters     FilterHints
	Suggestions []Suggestion
}

// FilterHints are the model's proposed filters. Deterministic detection wins
// over these for country and temporal dimensions.
type FilterHints struct {
	Genre       string
	Decades     []string
	Year        int
	Country     string
	CountryKind string
	Mood        string
}
