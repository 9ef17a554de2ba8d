// Package sqlite backs the catalog and repository ports with a SQLite
// database. The track corpus is read-only for the engine; playlists and
// feedback are append-only write paths.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // driver registration

	"github.com/cadenzalab/cadenza/internal/core/domain"
	"github.com/cadenzalab/cadenza/internal/core/ports"
)

const genreSep = ";"

// maximaTTL bounds how stale the cached engagement ceilings may get. The
// corpus changes rarely; recomputing per request would scan three columns
// of the whole table.
const maximaTTL = 10 * time.Minute

// Adapter holds the shared connection for every port this package
// implements.
type Adapter struct {
	db *sql.DB

	maximaMu  sync.Mutex
	maxima    domain.EngagementMaxima
	maximaExp time.Time
}

// NewAdapter opens the database and runs the schema migration.
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	a := &Adapter{db: db}
	if err := a.migrate(); err != nil {
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return a, nil
}

func (a *Adapter) Close() error { return a.db.Close() }

const trackColumns = `id, title, artist, album, year, decade, genre,
	tempo_bpm, energy_rms, loudness_db, sound_tag, lyrics_tag, context_tag,
	playcount, listeners, views, bitrate, quality, duration_secs,
	file_ref, cover_ref, artist_area, popular_in_1, popular_in_2, popular_in_3`

func (a *Adapter) SearchSuggestion(ctx context.Context, s domain.Suggestion, f domain.Filters, limit int) ([]domain.Track, error) {
	where, args := buildWhere(f)

	var sug []string
	if s.Title != "" {
		sug = append(sug, "LOWER(title) LIKE ?")
		args = append(args, like(s.Title))
	}
	if s.Artist != "" {
		sug = append(sug, "LOWER(artist) LIKE ?")
		args = append(args, like(s.Artist))
	}
	if s.Album != "" {
		sug = append(sug, "LOWER(album) LIKE ?")
		args = append(args, like(s.Album))
	}
	if len(sug) == 0 {
		return nil, nil
	}
	where = append(where, "("+strings.Join(sug, " OR ")+")")

	return a.queryTracks(ctx, "suggestion",
		selectTracks(where, "playcount DESC"), append(args, limit)...)
}

func (a *Adapter) SearchFiltered(ctx context.Context, f domain.Filters, limit int) ([]domain.Track, error) {
	where, args := buildWhere(f)
	if len(where) == 0 {
		return nil, nil
	}
	return a.queryTracks(ctx, "filtered",
		selectTracks(where, "playcount DESC, listeners DESC"), append(args, limit)...)
}

func (a *Adapter) SearchDecades(ctx context.Context, decades []string, limit int) ([]domain.Track, error) {
	if len(decades) == 0 {
		return nil, nil
	}
	where := []string{"decade IN (" + placeholders(len(decades)) + ")"}
	args := make([]any, 0, len(decades)+1)
	for _, d := range decades {
		args = append(args, d)
	}
	return a.queryTracks(ctx, "decades",
		selectTracks(where, "playcount DESC"), append(args, limit)...)
}

func (a *Adapter) SearchKeywords(ctx context.Context, words []string, limit int) ([]domain.Track, error) {
	if len(words) == 0 {
		return nil, nil
	}
	var clauses []string
	var args []any
	for _, w := range words {
		clauses = append(clauses, "(LOWER(genre) LIKE ? OR LOWER(title) LIKE ? OR LOWER(artist) LIKE ?)")
		p := like(w)
		args = append(args, p, p, p)
	}
	where := []string{"(" + strings.Join(clauses, " OR ") + ")"}
	return a.queryTracks(ctx, "keywords",
		selectTracks(where, "playcount DESC"), append(args, limit)...)
}

func (a *Adapter) SearchArtist(ctx context.Context, artist string, limit int) ([]domain.Track, error) {
	where := []string{"LOWER(artist) LIKE ?"}
	return a.queryTracks(ctx, "artist",
		selectTracks(where, "playcount DESC"), like(artist), limit)
}

// SearchSimilar finds tracks acoustically near an artist profile: same
// dominant genre or sound tag, tempo within ten BPM of the artist average,
// excluding the artist itself.
func (a *Adapter) SearchSimilar(ctx context.Context, profile domain.ArtistProfile, limit int) ([]domain.Track, error) {
	where := []string{
		"LOWER(artist) != LOWER(?)",
		"(LOWER(genre) LIKE ? OR sound_tag = ?)",
		"tempo_bpm BETWEEN ? AND ?",
	}
	args := []any{
		profile.Artist,
		like(profile.Genre), profile.SoundTag,
		profile.AvgTempo - 10, profile.AvgTempo + 10,
		limit,
	}
	return a.queryTracks(ctx, "similar", selectTracks(where, "playcount DESC"), args...)
}

// SearchCountry selects by artist origin or chart popularity. The two kinds
// deliberately query different columns: origin is an equality on the
// artist's area, popularity an OR across the three ranked chart slots.
func (a *Adapter) SearchCountry(ctx context.Context, country string, kind domain.CountryKind, limit int) ([]domain.Track, error) {
	var where []string
	var args []any
	if kind == domain.CountryPopularIn {
		where = []string{"(LOWER(popular_in_1) = LOWER(?) OR LOWER(popular_in_2) = LOWER(?) OR LOWER(popular_in_3) = LOWER(?))"}
		args = []any{country, country, country}
	} else {
		where = []string{"LOWER(artist_area) = LOWER(?)"}
		args = []any{country}
	}
	return a.queryTracks(ctx, "country",
		selectTracks(where, "playcount DESC"), append(args, limit)...)
}

func (a *Adapter) TopTracks(ctx context.Context, limit int) ([]domain.Track, error) {
	return a.queryTracks(ctx, "top",
		"SELECT "+trackColumns+" FROM tracks ORDER BY playcount DESC, listeners DESC LIMIT ?", limit)
}

// ArtistProfile aggregates one artist's dominant genre, sound tag and
// average tempo. Unknown artists map to domain.ErrNotFound.
func (a *Adapter) ArtistProfile(ctx context.Context, artist string) (domain.ArtistProfile, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT artist, COUNT(*), COALESCE(AVG(tempo_bpm), 0)
		FROM tracks WHERE LOWER(artist) = LOWER(?) GROUP BY artist`, artist)

	var p domain.ArtistProfile
	if err := row.Scan(&p.Artist, &p.Tracks, &p.AvgTempo); err != nil {
		if err == sql.ErrNoRows {
			return domain.ArtistProfile{}, domain.ErrNotFound
		}
		return domain.ArtistProfile{}, &ports.CatalogError{Op: "artist profile", Err: err}
	}

	row = a.db.QueryRowContext(ctx, `
		SELECT genre, sound_tag FROM tracks WHERE LOWER(artist) = LOWER(?)
		GROUP BY genre, sound_tag ORDER BY COUNT(*) DESC LIMIT 1`, artist)
	var genres, sound sql.NullString
	if err := row.Scan(&genres, &sound); err != nil && err != sql.ErrNoRows {
		return domain.ArtistProfile{}, &ports.CatalogError{Op: "artist profile", Err: err}
	}
	if genres.Valid {
		if parts := splitGenres(genres.String); len(parts) > 0 {
			p.Genre = parts[0]
		}
	}
	p.SoundTag = sound.String
	return p, nil
}

// EngagementMaxima returns the corpus-wide engagement ceilings, cached for a
// short TTL.
func (a *Adapter) EngagementMaxima(ctx context.Context) (domain.EngagementMaxima, error) {
	a.maximaMu.Lock()
	defer a.maximaMu.Unlock()
	if time.Now().Before(a.maximaExp) {
		return a.maxima, nil
	}

	var m domain.EngagementMaxima
	err := a.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(playcount), 0), COALESCE(MAX(listeners), 0), COALESCE(MAX(views), 0)
		FROM tracks`).Scan(&m.Playcount, &m.Listeners, &m.Views)
	if err != nil {
		return domain.EngagementMaxima{}, &ports.CatalogError{Op: "engagement maxima", Err: err}
	}
	a.maxima = m
	a.maximaExp = time.Now().Add(maximaTTL)
	return m, nil
}

// buildWhere renders the filter set into SQL clauses. Genre and tags match
// by substring, temporal and country dimensions exactly.
func buildWhere(f domain.Filters) ([]string, []any) {
	var where []string
	var args []any

	if f.Genre != "" {
		where = append(where, "LOWER(genre) LIKE ?")
		args = append(args, like(f.Genre))
	}
	switch {
	case f.Year != 0:
		where = append(where, "year = ?")
		args = append(args, f.Year)
	case f.YearFrom != 0:
		where = append(where, "year BETWEEN ? AND ?")
		args = append(args, f.YearFrom, f.YearTo)
	case len(f.Decades) > 0:
		where = append(where, "decade IN ("+placeholders(len(f.Decades))+")")
		for _, d := range f.Decades {
			args = append(args, d)
		}
	}
	if f.Country != "" {
		if f.CountryKind == domain.CountryPopularIn {
			where = append(where, "(LOWER(popular_in_1) = LOWER(?) OR LOWER(popular_in_2) = LOWER(?) OR LOWER(popular_in_3) = LOWER(?))")
			args = append(args, f.Country, f.Country, f.Country)
		} else {
			where = append(where, "LOWER(artist_area) = LOWER(?)")
			args = append(args, f.Country)
		}
	}
	if len(f.Countries) > 0 {
		where = append(where, "LOWER(artist_area) IN ("+placeholders(len(f.Countries))+")")
		for _, c := range f.Countries {
			args = append(args, strings.ToLower(c))
		}
	}
	if f.TempoMin > 0 {
		where = append(where, "tempo_bpm >= ?")
		args = append(args, f.TempoMin)
	}
	if f.TempoMax > 0 {
		where = append(where, "tempo_bpm <= ?")
		args = append(args, f.TempoMax)
	}
	if f.EnergyMin > 0 {
		where = append(where, "energy_rms >= ?")
		args = append(args, f.EnergyMin)
	}
	if f.EnergyMax > 0 {
		where = append(where, "energy_rms <= ?")
		args = append(args, f.EnergyMax)
	}
	if f.SoundTag != "" {
		where = append(where, "sound_tag = ?")
		args = append(args, f.SoundTag)
	}
	if f.LyricsTag != "" {
		where = append(where, "lyrics_tag = ?")
		args = append(args, f.LyricsTag)
	}
	if f.ContextTag != "" {
		where = append(where, "context_tag = ?")
		args = append(args, f.ContextTag)
	}
	return where, args
}

func selectTracks(where []string, order string) string {
	q := "SELECT " + trackColumns + " FROM tracks"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	return q + " ORDER BY " + order + " LIMIT ?"
}

func (a *Adapter) queryTracks(ctx context.Context, op, query string, args ...any) ([]domain.Track, error) {
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ports.CatalogError{Op: op, Err: err}
	}
	defer rows.Close()

	var out []domain.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, &ports.CatalogError{Op: op, Err: err}
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, &ports.CatalogError{Op: op, Err: err}
	}
	return out, nil
}

func scanTrack(rows *sql.Rows) (domain.Track, error) {
	var t domain.Track
	var album, decade, genre, sound, lyrics, contextTag sql.NullString
	var quality, fileRef, coverRef, area, pop1, pop2, pop3 sql.NullString
	var year, bitrate, duration sql.NullInt64
	var playcount, listeners, views sql.NullInt64
	var tempo, energy, loudness sql.NullFloat64

	if err := rows.Scan(
		&t.ID, &t.Title, &t.Artist, &album, &year, &decade, &genre,
		&tempo, &energy, &loudness, &sound, &lyrics, &contextTag,
		&playcount, &listeners, &views, &bitrate, &quality, &duration,
		&fileRef, &coverRef, &area, &pop1, &pop2, &pop3,
	); err != nil {
		return domain.Track{}, err
	}

	t.Album = album.String
	t.Year = int(year.Int64)
	t.Decade = decade.String
	t.Genres = splitGenres(genre.String)
	t.TempoBPM = tempo.Float64
	t.EnergyRMS = energy.Float64
	t.LoudnessDB = loudness.Float64
	t.SoundTag = sound.String
	t.LyricsTag = lyrics.String
	t.ContextTag = contextTag.String
	t.Playcount = playcount.Int64
	t.Listeners = listeners.Int64
	t.Views = views.Int64
	t.Bitrate = int(bitrate.Int64)
	t.Quality = quality.String
	t.DurationSecs = int(duration.Int64)
	t.FileRef = fileRef.String
	t.CoverRef = coverRef.String
	t.ArtistArea = area.String
	for _, p := range []sql.NullString{pop1, pop2, pop3} {
		if p.String != "" {
			t.PopularIn = append(t.PopularIn, p.String)
		}
	}
	return t, nil
}

func splitGenres(s string) []string {
	var out []string
	for _, g := range strings.Split(s, genreSep) {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}

func like(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

func placeholders(n int) string {
	return strings.TrimRight(strings.Repeat("?,", n), ",")
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS tracks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		artist TEXT NOT NULL,
		album TEXT,
		year INTEGER,
		decade TEXT,
		genre TEXT,
		tempo_bpm REAL,
		energy_rms REAL,
		loudness_db REAL,
		sound_tag TEXT,
		lyrics_tag TEXT,
		context_tag TEXT,
		playcount INTEGER DEFAULT 0,
		listeners INTEGER DEFAULT 0,
		views INTEGER DEFAULT 0,
		bitrate INTEGER DEFAULT 0,
		quality TEXT,
		duration_secs INTEGER DEFAULT 0,
		file_ref TEXT,
		cover_ref TEXT,
		artist_area TEXT,
		popular_in_1 TEXT,
		popular_in_2 TEXT,
		popular_in_3 TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist);
	CREATE INDEX IF NOT EXISTS idx_tracks_decade ON tracks(decade);
	CREATE INDEX IF NOT EXISTS idx_tracks_playcount ON tracks(playcount DESC);

	CREATE TABLE IF NOT EXISTS playlists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		query TEXT,
		filters TEXT,
		owner TEXT,
		result_id TEXT,
		kind TEXT,
		m3u_path TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_playlists_owner ON playlists(owner);
	CREATE INDEX IF NOT EXISTS idx_playlists_result ON playlists(result_id);

	CREATE TABLE IF NOT EXISTS playlist_items (
		playlist_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		file_ref TEXT,
		title TEXT,
		artist TEXT,
		album TEXT,
		year INTEGER,
		genre TEXT,
		duration_secs INTEGER,
		bitrate INTEGER,
		quality TEXT,
		cover_ref TEXT,
		relative_popularity REAL,
		popularity_display TEXT,
		PRIMARY KEY (playlist_id, position),
		FOREIGN KEY(playlist_id) REFERENCES playlists(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		playlist_id TEXT,
		track_ref TEXT,
		verdict TEXT NOT NULL,
		comment TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_owner ON feedback(owner);
	`
	_, err := a.db.Exec(query)
	return err
}
