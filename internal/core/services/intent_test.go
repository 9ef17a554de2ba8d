package services

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/cadenzalab/cadenza/internal/core/domain"
	"github.com/cadenzalab/cadenza/internal/core/ports"
)

func newTestAnalyzer(llm *stubLLM) *IntentAnalyzer {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewIntentAnalyzer(llm, log)
}

func TestIntentAnalyzer_CountryDetection(t *testing.T) {
	analyzer := newTestAnalyzer(&stubLLM{guessErr: ports.ErrModelUnavailable})

	tests := []struct {
		name     string
		query    string
		wantName string
		wantKind domain.CountryKind
	}{
		{"origin phrasing", "songs from Chile", "Chile", domain.CountryOrigin},
		{"popular-in phrasing", "music popular in Chile", "Chile", domain.CountryPopularIn},
		{"adjective stem", "french electronic music", "France", domain.CountryOrigin},
		{"trending phrasing", "what is trending in Argentina", "Argentina", domain.CountryPopularIn},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			intent := analyzer.Analyze(context.Background(), tc.query)
			if intent.Type != domain.RequestCountry {
				t.Fatalf("type = %s, want country", intent.Type)
			}
			if intent.Filters.Country != tc.wantName {
				t.Errorf("country = %q, want %q", intent.Filters.Country, tc.wantName)
			}
			if intent.Filters.CountryKind != tc.wantKind {
				t.Errorf("kind = %q, want %q", intent.Filters.CountryKind, tc.wantKind)
			}
		})
	}
}

// Deterministic country detection must override whatever the model said.
func TestIntentAnalyzer_CountryOverridesModel(t *testing.T) {
	analyzer := newTestAnalyzer(&stubLLM{
		guess: domain.IntentGuess{Type: "genre_or_mood_request", Country: "Japan"},
	})
	intent := analyzer.Analyze(context.Background(), "rock from Chile")
	if intent.Filters.Country != "Chile" {
		t.Fatalf("country = %q, want Chile (model said Japan)", intent.Filters.Country)
	}
}

func TestIntentAnalyzer_Temporal(t *testing.T) {
	analyzer := newTestAnalyzer(&stubLLM{guessErr: ports.ErrModelUnavailable})

	t.Run("decade shorthand normalizes", func(t *testing.T) {
		intent := analyzer.Analyze(context.Background(), "rock from the 80s")
		if len(intent.Filters.Decades) != 1 || intent.Filters.Decades[0] != "1980s" {
			t.Fatalf("decades = %v, want [1980s]", intent.Filters.Decades)
		}
	})

	t.Run("explicit year range", func(t *testing.T) {
		intent := analyzer.Analyze(context.Background(), "hits from 1990 to 1999")
		if intent.Filters.YearFrom != 1990 || intent.Filters.YearTo != 1999 {
			t.Fatalf("range = %d-%d, want 1990-1999", intent.Filters.YearFrom, intent.Filters.YearTo)
		}
		if len(intent.Filters.Decades) != 0 {
			t.Errorf("decades = %v, want empty alongside a range", intent.Filters.Decades)
		}
	})

	t.Run("single year", func(t *testing.T) {
		intent := analyzer.Analyze(context.Background(), "songs of 1985")
		if intent.Filters.Year != 1985 {
			t.Fatalf("year = %d, want 1985", intent.Filters.Year)
		}
	})
}

// A number is a track count only next to a quantity word; otherwise a value
// in the plausible-year range reads as a year.
func TestIntentAnalyzer_CountVersusYear(t *testing.T) {
	analyzer := newTestAnalyzer(&stubLLM{guessErr: ports.ErrModelUnavailable})

	t.Run("count next to quantity word", func(t *testing.T) {
		intent := analyzer.Analyze(context.Background(), "give me 20 songs of rock")
		if intent.Limit != 20 {
			t.Fatalf("limit = %d, want 20", intent.Limit)
		}
	})

	t.Run("plausible year is not a count", func(t *testing.T) {
		intent := analyzer.Analyze(context.Background(), "music from 2001")
		if intent.Filters.Year != 2001 {
			t.Fatalf("year = %d, want 2001", intent.Filters.Year)
		}
		if intent.Limit != defaultStandardLimit {
			t.Fatalf("limit = %d, want default (year must not read as a count)", intent.Limit)
		}
	})

	t.Run("count and decade coexist", func(t *testing.T) {
		intent := analyzer.Analyze(context.Background(), "top 20 tracks from the 90s")
		if intent.Limit != 20 {
			t.Errorf("limit = %d, want 20", intent.Limit)
		}
		if len(intent.Filters.Decades) != 1 || intent.Filters.Decades[0] != "1990s" {
			t.Errorf("decades = %v, want [1990s]", intent.Filters.Decades)
		}
	})
}

func TestIntentAnalyzer_Region(t *testing.T) {
	analyzer := newTestAnalyzer(&stubLLM{guessErr: ports.ErrModelUnavailable})
	intent := analyzer.Analyze(context.Background(), "latin american classics")
	if intent.Type != domain.RequestRegion {
		t.Fatalf("type = %s, want region", intent.Type)
	}
	if len(intent.Filters.Countries) != 6 {
		t.Fatalf("countries = %v, want six members", intent.Filters.Countries)
	}
}

func TestIntentAnalyzer_ArtistAndSimilar(t *testing.T) {
	analyzer := newTestAnalyzer(&stubLLM{guessErr: ports.ErrModelUnavailable})

	t.Run("best of phrasing", func(t *testing.T) {
		intent := analyzer.Analyze(context.Background(), "best of Artist A")
		if intent.Type != domain.RequestArtist || intent.Artist != "Artist A" {
			t.Fatalf("got type=%s artist=%q, want artist request for Artist A", intent.Type, intent.Artist)
		}
	})

	t.Run("similar phrasing", func(t *testing.T) {
		intent := analyzer.Analyze(context.Background(), "something similar to Artist B")
		if intent.Type != domain.RequestSimilarTo || intent.Artist != "Artist B" {
			t.Fatalf("got type=%s artist=%q, want similar request for Artist B", intent.Type, intent.Artist)
		}
	})
}

func TestIntentAnalyzer_FallbackOnModelFailure(t *testing.T) {
	analyzer := newTestAnalyzer(&stubLLM{guessErr: ports.ErrModelUnavailable})
	intent := analyzer.Analyze(context.Background(), "some jazz for the evening")
	if !intent.FromFallback {
		t.Error("expected fallback marker")
	}
	if intent.Genre != "jazz" {
		t.Errorf("genre = %q, want jazz", intent.Genre)
	}
	if intent.Limit != defaultStandardLimit {
		t.Errorf("limit = %d, want default %d", intent.Limit, defaultStandardLimit)
	}
}

// Each active dimension narrows the limit ceiling.
func TestIntentAnalyzer_ComplexityNarrowsLimit(t *testing.T) {
	analyzer := newTestAnalyzer(&stubLLM{guessErr: ports.ErrModelUnavailable})
	intent := analyzer.Analyze(context.Background(), "happy rock from Chile from the 80s")
	if intent.Limit > 20 {
		t.Fatalf("limit = %d, want at most 20 for a three-dimension request", intent.Limit)
	}
}

func TestEnrichFiltersWithMood(t *testing.T) {
	var f domain.Filters
	EnrichFiltersWithMood("some sad songs please", &f)
	if f.SoundTag != "Sad / Melancholic" {
		t.Errorf("sound tag = %q, want Sad / Melancholic", f.SoundTag)
	}
	if f.LyricsTag != "Sadness" {
		t.Errorf("lyrics tag = %q, want Sadness", f.LyricsTag)
	}
	if f.TempoMax == 0 {
		t.Error("expected a tempo ceiling for a sad request")
	}
}

func TestEnrichFiltersWithMood_KeepsExplicitRanges(t *testing.T) {
	var f domain.Filters
	f.SetTempoRange(0, 150)
	EnrichFiltersWithMood("sad songs", &f)
	if f.TempoMax != 150 {
		t.Fatalf("tempo max = %v, want explicit 150 kept", f.TempoMax)
	}
}
