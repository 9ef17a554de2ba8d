package ports

import (
	"context"
	"errors"
	"fmt"

	"github.com/cadenzalab/cadenza/internal/core/domain"
)

// ErrCatalog marks an infrastructure failure of the track store. Unlike a
// degraded model call this is surfaced to the caller as retryable: it means
// the data could not be read, not that no data matched.
var ErrCatalog = errors.New("catalog unavailable")

// CatalogError wraps a store failure with the operation that hit it.
type CatalogError struct {
	Op  string
	Err error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog: %s: %v", e.Op, e.Err)
}

func (e *CatalogError) Unwrap() error { return e.Err }

func (e *CatalogError) Is(target error) bool { return target == ErrCatalog }

// TrackCatalog is the read contract against the full track corpus: substring
// and predicate search plus popularity-sorted scans.
type TrackCatalog interface {
	// SearchSuggestion finds tracks matching the suggestion's
	// title/artist/album (case-insensitive substring, ORed) AND all
	// active filters.
	SearchSuggestion(ctx context.Context, s domain.Suggestion, f domain.Filters, limit int) ([]domain.Track, error)
	// SearchFiltered queries by filters alone, sorted by descending raw
	// engagement.
	SearchFiltered(ctx context.Context, f domain.Filters, limit int) ([]domain.Track, error)
	// SearchDecades queries by decade labels only, dropping every other
	// predicate.
	SearchDecades(ctx context.Context, decades []string, limit int) ([]domain.Track, error)
	// SearchKeywords matches tokens against genre, title and artist.
	SearchKeywords(ctx context.Context, words []string, limit int) ([]domain.Track, error)
	// SearchArtist finds an artist's tracks by case-insensitive substring.
	SearchArtist(ctx context.Context, artist string, limit int) ([]domain.Track, error)
	// SearchSimilar finds tracks near an artist profile, excluding the
	// artist itself.
	SearchSimilar(ctx context.Context, profile domain.ArtistProfile, limit int) ([]domain.Track, error)
	// SearchCountry selects by origin or popular-in association.
	SearchCountry(ctx context.Context, country string, kind domain.CountryKind, limit int) ([]domain.Track, error)
	// TopTracks returns the corpus sorted by descending raw engagement.
	TopTracks(ctx context.Context, limit int) ([]domain.Track, error)

	ArtistProfile(ctx context.Context, artist string) (domain.ArtistProfile, error)
	EngagementMaxima(ctx context.Context) (domain.EngagementMaxima, error)
}

// ArtistStat summarizes one artist for prompt grounding.
type ArtistStat struct {
	Name          string
	Tracks        int
	AvgPopularity float64
	Genres        []string
	Decades       []string
}

// GenreStat summarizes one genre for prompt grounding.
type GenreStat struct {
	Name          string
	Tracks        int
	SampleArtists []string
	AvgTempo      float64
	AvgEnergy     float64
}

// DecadeStat is a decade label with its corpus count.
type DecadeStat struct {
	Decade string
	Tracks int
}

// TagStat is an emotional-tag label with its in-genre count.
type TagStat struct {
	Tag   string
	Count int
}

// CatalogStats is the aggregation contract over the full corpus, used only
// by the context aggregator.
type CatalogStats interface {
	TopArtists(ctx context.Context, limit int) ([]ArtistStat, error)
	TopGenres(ctx context.Context, limit int) ([]GenreStat, error)
	DecadeCounts(ctx context.Context, limit int) ([]DecadeStat, error)
	// GenreTagDistribution returns the top sound tags per genre.
	GenreTagDistribution(ctx context.Context, genre string, limit int) ([]TagStat, error)
}
