package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/cadenzalab/cadenza/internal/core/domain"
	"github.com/cadenzalab/cadenza/internal/core/ports"
	"github.com/cadenzalab/cadenza/internal/core/services"
)

type fakeCatalog struct {
	tracks []domain.Track
	err    error
}

func (f *fakeCatalog) SearchSuggestion(ctx context.Context, s domain.Suggestion, fl domain.Filters, limit int) ([]domain.Track, error) {
	return f.tracks, f.err
}
func (f *fakeCatalog) SearchFiltered(ctx context.Context, fl domain.Filters, limit int) ([]domain.Track, error) {
	return f.tracks, f.err
}
func (f *fakeCatalog) SearchDecades(ctx context.Context, decades []string, limit int) ([]domain.Track, error) {
	return f.tracks, f.err
}
func (f *fakeCatalog) SearchKeywords(ctx context.Context, words []string, limit int) ([]domain.Track, error) {
	return f.tracks, f.err
}
func (f *fakeCatalog) SearchArtist(ctx context.Context, artist string, limit int) ([]domain.Track, error) {
	return f.tracks, f.err
}
func (f *fakeCatalog) SearchSimilar(ctx context.Context, p domain.ArtistProfile, limit int) ([]domain.Track, error) {
	return f.tracks, f.err
}
func (f *fakeCatalog) SearchCountry(ctx context.Context, c string, k domain.CountryKind, limit int) ([]domain.Track, error) {
	return f.tracks, f.err
}
func (f *fakeCatalog) TopTracks(ctx context.Context, limit int) ([]domain.Track, error) {
	return f.tracks, f.err
}
func (f *fakeCatalog) ArtistProfile(ctx context.Context, artist string) (domain.ArtistProfile, error) {
	return domain.ArtistProfile{}, domain.ErrNotFound
}
func (f *fakeCatalog) EngagementMaxima(ctx context.Context) (domain.EngagementMaxima, error) {
	if f.err != nil {
		return domain.EngagementMaxima{}, &ports.CatalogError{Op: "maxima", Err: f.err}
	}
	return domain.EngagementMaxima{Playcount: 1000, Listeners: 1, Views: 1}, nil
}

type fakeStats struct{}

func (fakeStats) TopArtists(ctx context.Context, limit int) ([]ports.ArtistStat, error) {
	return nil, nil
}
func (fakeStats) TopGenres(ctx context.Context, limit int) ([]ports.GenreStat, error) {
	return nil, nil
}
func (fakeStats) DecadeCounts(ctx context.Context, limit int) ([]ports.DecadeStat, error) {
	return nil, nil
}
func (fakeStats) GenreTagDistribution(ctx context.Context, genre string, limit int) ([]ports.TagStat, error) {
	return nil, nil
}

type fakeLLM struct{}

func (fakeLLM) AnalyzeIntent(ctx context.Context, q string) (domain.IntentGuess, error) {
	return domain.IntentGuess{}, ports.ErrModelUnavailable
}
func (fakeLLM) SuggestTracks(ctx context.Context, p string) (domain.ModelReply, error) {
	return domain.ModelReply{}, ports.ErrModelUnavailable
}

type fakePlaylists struct{}

func (fakePlaylists) Save(ctx context.Context, p domain.Playlist) error { return nil }
func (fakePlaylists) GetByID(ctx context.Context, id string) (domain.Playlist, error) {
	return domain.Playlist{}, domain.ErrNotFound
}
func (fakePlaylists) GetByResultID(ctx context.Context, rid, owner string) (domain.Playlist, error) {
	return domain.Playlist{}, domain.ErrNotFound
}
func (fakePlaylists) ListByOwner(ctx context.Context, owner string) ([]domain.Playlist, error) {
	return nil, nil
}

type fakeFeedback struct{}

func (fakeFeedback) Save(ctx context.Context, f domain.Feedback) error { return nil }
func (fakeFeedback) ListByOwner(ctx context.Context, owner string) ([]domain.Feedback, error) {
	return nil, nil
}

func newTestHandler(cat *fakeCatalog) *Handler {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	engine := services.NewEngine(
		cat, fakeLLM{}, fakePlaylists{}, fakeFeedback{},
		services.NewIntentAnalyzer(fakeLLM{}, log),
		services.NewContextAggregator(fakeStats{}, 0, log),
		services.NewTieredSearch(cat, log),
		services.NewDiversityEnforcer(cat, log),
		services.NewAssembler(fakePlaylists{}, nil, "http://media", "http://media", log),
		log,
	)
	return NewHandler(engine, log)
}

func TestHandler_Health(t *testing.T) {
	h := newTestHandler(&fakeCatalog{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandler_Query(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		catalogErr error
		wantStatus int
	}{
		{
			name:       "valid request",
			body:       `{"query": "rock music"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "garbage body",
			body:       `{{{{`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty query rejected",
			body:       `{"query": "   "}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "catalog failure maps to 503",
			body:       `{"query": "rock music"}`,
			catalogErr: context.DeadlineExceeded,
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cat := &fakeCatalog{
				tracks: []domain.Track{{ID: "1", Title: "Song", Artist: "A", FileRef: "f1", Playcount: 10}},
				err:    tc.catalogErr,
			}
			h := newTestHandler(cat)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(tc.body))
			h.ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body: %s)", rec.Code, tc.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestHandler_GetPlaylistNotFound(t *testing.T) {
	h := newTestHandler(&fakeCatalog{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/playlists/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandler_PostFeedback(t *testing.T) {
	h := newTestHandler(&fakeCatalog{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/feedback",
		strings.NewReader(`{"playlist_id": "p1", "verdict": "like"}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/feedback",
		strings.NewReader(`{"playlist_id": "p1", "verdict": "meh"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for unknown verdict", rec.Code)
	}
}
