package sqlite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cadenzalab/cadenza/internal/core/domain"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a, err := NewAdapter(":memory:")
	if err != nil {
		t.Fatalf("open adapter: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func seedTrack(t *testing.T, a *Adapter, tr domain.Track) {
	t.Helper()
	var pop [3]string
	for i, p := range tr.PopularIn {
		if i < 3 {
			pop[i] = p
		}
	}
	_, err := a.db.Exec(`
		INSERT INTO tracks (
			id, title, artist, album, year, decade, genre,
			tempo_bpm, energy_rms, loudness_db, sound_tag, lyrics_tag, context_tag,
			playcount, listeners, views, bitrate, quality, duration_secs,
			file_ref, cover_ref, artist_area, popular_in_1, popular_in_2, popular_in_3
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.Title, tr.Artist, tr.Album, tr.Year, tr.Decade, strings.Join(tr.Genres, genreSep),
		tr.TempoBPM, tr.EnergyRMS, tr.LoudnessDB, tr.SoundTag, tr.LyricsTag, tr.ContextTag,
		tr.Playcount, tr.Listeners, tr.Views, tr.Bitrate, tr.Quality, tr.DurationSecs,
		tr.FileRef, tr.CoverRef, tr.ArtistArea, pop[0], pop[1], pop[2],
	)
	if err != nil {
		t.Fatalf("seed track %s: %v", tr.ID, err)
	}
}

// Origin and popularity are different predicates over different columns: an
// artist from Chile is not the same as a song charting there.
func TestSearchCountry_PredicateShapes(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	seedTrack(t, a, domain.Track{
		ID: "1", Title: "Andes", Artist: "Local Band", FileRef: "f1",
		ArtistArea: "Chile", PopularIn: []string{"Argentina"},
	})
	seedTrack(t, a, domain.Track{
		ID: "2", Title: "Import", Artist: "Foreign Band", FileRef: "f2",
		ArtistArea: "Argentina", PopularIn: []string{"Peru", "Chile"},
	})

	origin, err := a.SearchCountry(ctx, "Chile", domain.CountryOrigin, 10)
	if err != nil {
		t.Fatalf("origin search: %v", err)
	}
	if len(origin) != 1 || origin[0].ID != "1" {
		t.Fatalf("origin results = %+v, want only the Chilean artist", origin)
	}

	popular, err := a.SearchCountry(ctx, "Chile", domain.CountryPopularIn, 10)
	if err != nil {
		t.Fatalf("popular-in search: %v", err)
	}
	if len(popular) != 1 || popular[0].ID != "2" {
		t.Fatalf("popular-in results = %+v, want only the charting track", popular)
	}
}

func TestSearchSuggestion_CombinesFilters(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	seedTrack(t, a, domain.Track{
		ID: "1", Title: "Morning Song", Artist: "Artist A", FileRef: "f1",
		Genres: []string{"rock"}, Decade: "1980s",
	})
	seedTrack(t, a, domain.Track{
		ID: "2", Title: "Morning Song", Artist: "Artist A", FileRef: "f2",
		Genres: []string{"rock"}, Decade: "2000s",
	})

	var f domain.Filters
	f.SetDecades("1980s")

	got, err := a.SearchSuggestion(ctx, domain.Suggestion{Title: "morning"}, f, 10)
	if err != nil {
		t.Fatalf("suggestion search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("results = %+v, want only the 1980s recording", got)
	}
}

func TestSearchFiltered_SortsByEngagement(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	seedTrack(t, a, domain.Track{ID: "1", Title: "Quiet", Artist: "A", FileRef: "f1", Genres: []string{"jazz"}, Playcount: 10})
	seedTrack(t, a, domain.Track{ID: "2", Title: "Loud", Artist: "B", FileRef: "f2", Genres: []string{"jazz"}, Playcount: 500})

	var f domain.Filters
	f.SetGenre("jazz")
	got, err := a.SearchFiltered(ctx, f, 10)
	if err != nil {
		t.Fatalf("filtered search: %v", err)
	}
	if len(got) != 2 || got[0].ID != "2" {
		t.Fatalf("results = %+v, want the played track first", got)
	}
}

func TestSearchSimilar_ExcludesReferenceArtist(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	seedTrack(t, a, domain.Track{ID: "1", Title: "Origin", Artist: "Ref", FileRef: "f1", Genres: []string{"rock"}, TempoBPM: 120})
	seedTrack(t, a, domain.Track{ID: "2", Title: "Near", Artist: "Other", FileRef: "f2", Genres: []string{"rock"}, TempoBPM: 125})
	seedTrack(t, a, domain.Track{ID: "3", Title: "Far", Artist: "Slowpoke", FileRef: "f3", Genres: []string{"rock"}, TempoBPM: 70})

	profile := domain.ArtistProfile{Artist: "Ref", Genre: "rock", AvgTempo: 120}
	got, err := a.SearchSimilar(ctx, profile, 10)
	if err != nil {
		t.Fatalf("similar search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("results = %+v, want only the tempo-near other artist", got)
	}
}

func TestArtistProfile_NotFound(t *testing.T) {
	a := newTestAdapter(t)
	_, err := a.ArtistProfile(context.Background(), "Nobody")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestEngagementMaxima(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	seedTrack(t, a, domain.Track{ID: "1", Title: "A", Artist: "X", FileRef: "f1", Playcount: 100, Listeners: 50, Views: 300})
	seedTrack(t, a, domain.Track{ID: "2", Title: "B", Artist: "Y", FileRef: "f2", Playcount: 900, Listeners: 20, Views: 10})

	m, err := a.EngagementMaxima(ctx)
	if err != nil {
		t.Fatalf("maxima: %v", err)
	}
	if m.Playcount != 900 || m.Listeners != 50 || m.Views != 300 {
		t.Fatalf("maxima = %+v, want column-wise maxima", m)
	}
}

func TestPlaylistRoundTrip(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	p := domain.Playlist{
		ID:       "p1",
		Name:     "evening rock",
		Query:    "some rock for the evening",
		Filters:  map[string]string{"genre": "rock"},
		Owner:    "alice",
		ResultID: "r1",
		Kind:     "genre_or_mood",
		Created:  time.Now().UTC(),
		Items: []domain.PlaylistItem{
			{FileRef: "f1", Title: "Song One", Artist: "Artist A", RelativePopularity: 0.8, PopularityDisplay: "8.0/10 ★★★★☆ (Star)"},
			{FileRef: "f2", Title: "Song Two", Artist: "Artist B", RelativePopularity: 0.5},
		},
	}
	if err := a.Save(ctx, p); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := a.GetByResultID(ctx, "r1", "alice")
	if err != nil {
		t.Fatalf("get by result id: %v", err)
	}
	if got.ID != "p1" || got.Filters["genre"] != "rock" {
		t.Fatalf("playlist = %+v, want saved metadata back", got)
	}
	if len(got.Items) != 2 || got.Items[0].Title != "Song One" {
		t.Fatalf("items = %+v, want both items in order", got.Items)
	}

	if _, err := a.GetByResultID(ctx, "r1", "bob"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign owner err = %v, want not found", err)
	}

	list, err := a.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list = %d playlists, want 1", len(list))
	}
}

func TestFeedbackStore(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()
	store := a.Feedback()

	f := domain.Feedback{
		ID: "fb1", Owner: "alice", PlaylistID: "p1",
		Verdict: "like", Comment: "good mix", Created: time.Now().UTC(),
	}
	if err := store.Save(ctx, f); err != nil {
		t.Fatalf("save feedback: %v", err)
	}

	got, err := store.ListByOwner(ctx, "alice")
	if err != nil {
		t.Fatalf("list feedback: %v", err)
	}
	if len(got) != 1 || got[0].Verdict != "like" {
		t.Fatalf("feedback = %+v, want the saved verdict", got)
	}
}

func TestTopGenres_MergesMultiGenreTracks(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	seedTrack(t, a, domain.Track{ID: "1", Title: "A", Artist: "X", FileRef: "f1", Genres: []string{"rock", "blues"}})
	seedTrack(t, a, domain.Track{ID: "2", Title: "B", Artist: "Y", FileRef: "f2", Genres: []string{"rock"}})

	got, err := a.TopGenres(ctx, 10)
	if err != nil {
		t.Fatalf("top genres: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("genres = %+v, want rock and blues", got)
	}
	if got[0].Name != "rock" || got[0].Tracks != 2 {
		t.Fatalf("first genre = %+v, want rock with both tracks", got[0])
	}
}
