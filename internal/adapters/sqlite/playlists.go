package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/cadenzalab/cadenza/internal/core/domain"
)

// Save stores one playlist and its items in a single transaction.
func (a *Adapter) Save(ctx context.Context, p domain.Playlist) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	filters, err := json.Marshal(p.Filters)
	if err != nil {
		return fmt.Errorf("sqlite: marshal filters: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO playlists (id, name, query, filters, owner, result_id, kind, m3u_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Query, string(filters), p.Owner, p.ResultID, p.Kind, p.M3UPath, p.Created,
	); err != nil {
		return fmt.Errorf("sqlite: save playlist: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO playlist_items (
			playlist_id, position, file_ref, title, artist, album, year, genre,
			duration_secs, bitrate, quality, cover_ref, relative_popularity, popularity_display
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare items: %w", err)
	}
	defer stmt.Close()

	for i, item := range p.Items {
		if _, err := stmt.ExecContext(ctx,
			p.ID, i, item.FileRef, item.Title, item.Artist, item.Album, item.Year, item.Genre,
			item.DurationSecs, item.Bitrate, item.Quality, item.CoverURL,
			item.RelativePopularity, item.PopularityDisplay,
		); err != nil {
			return fmt.Errorf("sqlite: save item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

func (a *Adapter) GetByID(ctx context.Context, id string) (domain.Playlist, error) {
	return a.loadPlaylist(ctx, "WHERE id = ?", id)
}

func (a *Adapter) GetByResultID(ctx context.Context, resultID, owner string) (domain.Playlist, error) {
	return a.loadPlaylist(ctx, "WHERE result_id = ? AND owner = ?", resultID, owner)
}

func (a *Adapter) loadPlaylist(ctx context.Context, where string, args ...any) (domain.Playlist, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT id, name, query, filters, owner, result_id, kind, m3u_path, created_at
		FROM playlists `+where, args...)

	p, err := scanPlaylist(row)
	if err != nil {
		return domain.Playlist{}, err
	}

	items, err := a.loadItems(ctx, p.ID)
	if err != nil {
		return domain.Playlist{}, err
	}
	p.Items = items
	return p, nil
}

// ListByOwner returns the owner's playlists newest first, items included.
func (a *Adapter) ListByOwner(ctx context.Context, owner string) ([]domain.Playlist, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, name, query, filters, owner, result_id, kind, m3u_path, created_at
		FROM playlists WHERE owner = ? ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list playlists: %w", err)
	}
	defer rows.Close()

	var out []domain.Playlist
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate playlists: %w", err)
	}

	for i := range out {
		items, err := a.loadItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlaylist(row rowScanner) (domain.Playlist, error) {
	var p domain.Playlist
	var filters sql.NullString
	var query, owner, resultID, kind, m3uPath sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &query, &filters, &owner, &resultID, &kind, &m3uPath, &p.Created); err != nil {
		if err == sql.ErrNoRows {
			return domain.Playlist{}, domain.ErrNotFound
		}
		return domain.Playlist{}, fmt.Errorf("sqlite: scan playlist: %w", err)
	}
	p.Query = query.String
	p.Owner = owner.String
	p.ResultID = resultID.String
	p.Kind = kind.String
	p.M3UPath = m3uPath.String
	if filters.Valid && filters.String != "" {
		if err := json.Unmarshal([]byte(filters.String), &p.Filters); err != nil {
			return domain.Playlist{}, fmt.Errorf("sqlite: decode filters: %w", err)
		}
	}
	return p, nil
}

func (a *Adapter) loadItems(ctx context.Context, playlistID string) ([]domain.PlaylistItem, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT file_ref, title, artist, album, year, genre, duration_secs,
			bitrate, quality, cover_ref, relative_popularity, popularity_display
		FROM playlist_items WHERE playlist_id = ? ORDER BY position ASC`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load items: %w", err)
	}
	defer rows.Close()

	items := []domain.PlaylistItem{}
	for rows.Next() {
		var it domain.PlaylistItem
		var fileRef, album, genre, quality, cover sql.NullString
		var year, duration, bitrate sql.NullInt64
		if err := rows.Scan(&fileRef, &it.Title, &it.Artist, &album, &year, &genre,
			&duration, &bitrate, &quality, &cover, &it.RelativePopularity, &it.PopularityDisplay,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan item: %w", err)
		}
		it.FileRef = fileRef.String
		it.Album = album.String
		it.Year = int(year.Int64)
		it.Genre = genre.String
		it.DurationSecs = int(duration.Int64)
		it.Bitrate = int(bitrate.Int64)
		it.Quality = quality.String
		it.CoverURL = cover.String
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate items: %w", err)
	}
	return items, nil
}

// FeedbackStore implements the feedback repository over the shared
// connection. Separate from Adapter because the method names collide with
// the playlist repository.
type FeedbackStore struct {
	db *sql.DB
}

func (a *Adapter) Feedback() *FeedbackStore { return &FeedbackStore{db: a.db} }

// Save records one verdict, append-only.
func (s *FeedbackStore) Save(ctx context.Context, f domain.Feedback) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, owner, playlist_id, track_ref, verdict, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Owner, f.PlaylistID, f.TrackRef, f.Verdict, f.Comment, f.Created,
	); err != nil {
		return fmt.Errorf("sqlite: save feedback: %w", err)
	}
	return nil
}

// ListByOwner returns the owner's verdicts, newest first.
func (s *FeedbackStore) ListByOwner(ctx context.Context, owner string) ([]domain.Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, playlist_id, track_ref, verdict, comment, created_at
		FROM feedback WHERE owner = ? ORDER BY created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list feedback: %w", err)
	}
	defer rows.Close()

	var out []domain.Feedback
	for rows.Next() {
		var f domain.Feedback
		var playlistID, trackRef, comment sql.NullString
		if err := rows.Scan(&f.ID, &f.Owner, &playlistID, &trackRef, &f.Verdict, &comment, &f.Created); err != nil {
			return nil, fmt.Errorf("sqlite: scan feedback: %w", err)
		}
		f.PlaylistID = playlistID.String
		f.TrackRef = trackRef.String
		f.Comment = comment.String
		out = append(out, f)
	}
	return out, rows.Err()
}
