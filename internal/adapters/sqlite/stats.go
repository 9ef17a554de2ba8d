package sqlite

import (
	"context"
	"sort"
	"strings"

	"github.com/cadenzalab/cadenza/internal/core/ports"
)

// TopArtists returns the most represented artists with their dominant
// genres and decades.
func (a *Adapter) TopArtists(ctx context.Context, limit int) ([]ports.ArtistStat, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT artist, COUNT(*), COALESCE(AVG(playcount), 0),
			GROUP_CONCAT(DISTINCT genre), GROUP_CONCAT(DISTINCT decade)
		FROM tracks GROUP BY artist ORDER BY COUNT(*) DESC, AVG(playcount) DESC LIMIT ?`, limit)
	if err != nil {
		return nil, &ports.CatalogError{Op: "top artists", Err: err}
	}
	defer rows.Close()

	var out []ports.ArtistStat
	for rows.Next() {
		var s ports.ArtistStat
		var genreRaw, decadeRaw *string
		if err := rows.Scan(&s.Name, &s.Tracks, &s.AvgPopularity, &genreRaw, &decadeRaw); err != nil {
			return nil, &ports.CatalogError{Op: "top artists", Err: err}
		}
		if genreRaw != nil {
			s.Genres = uniqueLabels(*genreRaw)
		}
		if decadeRaw != nil {
			s.Decades = uniqueLabels(*decadeRaw)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// TopGenres aggregates track counts per genre label. Multi-genre tracks
// count once per label, so the rows are merged client-side.
func (a *Adapter) TopGenres(ctx context.Context, limit int) ([]ports.GenreStat, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT genre, COUNT(*), COALESCE(AVG(tempo_bpm), 0), COALESCE(AVG(energy_rms), 0),
			GROUP_CONCAT(DISTINCT artist)
		FROM tracks WHERE genre IS NOT NULL AND genre != '' GROUP BY genre`)
	if err != nil {
		return nil, &ports.CatalogError{Op: "top genres", Err: err}
	}
	defer rows.Close()

	type acc struct {
		tracks  int
		tempo   float64
		energy  float64
		artists map[string]struct{}
	}
	merged := map[string]*acc{}
	for rows.Next() {
		var raw, artists string
		var count int
		var tempo, energy float64
		if err := rows.Scan(&raw, &count, &tempo, &energy, &artists); err != nil {
			return nil, &ports.CatalogError{Op: "top genres", Err: err}
		}
		for _, label := range splitGenres(raw) {
			label = strings.ToLower(label)
			g, ok := merged[label]
			if !ok {
				g = &acc{artists: map[string]struct{}{}}
				merged[label] = g
			}
			g.tracks += count
			g.tempo += tempo * float64(count)
			g.energy += energy * float64(count)
			for _, artist := range strings.Split(artists, ",") {
				if artist = strings.TrimSpace(artist); artist != "" {
					g.artists[artist] = struct{}{}
				}
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &ports.CatalogError{Op: "top genres", Err: err}
	}

	out := make([]ports.GenreStat, 0, len(merged))
	for label, g := range merged {
		stat := ports.GenreStat{
			Name:      label,
			Tracks:    g.tracks,
			AvgTempo:  g.tempo / float64(g.tracks),
			AvgEnergy: g.energy / float64(g.tracks),
		}
		for artist := range g.artists {
			stat.SampleArtists = append(stat.SampleArtists, artist)
			if len(stat.SampleArtists) >= 5 {
				break
			}
		}
		sort.Strings(stat.SampleArtists)
		out = append(out, stat)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tracks != out[j].Tracks {
			return out[i].Tracks > out[j].Tracks
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (a *Adapter) DecadeCounts(ctx context.Context, limit int) ([]ports.DecadeStat, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT decade, COUNT(*) FROM tracks
		WHERE decade IS NOT NULL AND decade != ''
		GROUP BY decade ORDER BY COUNT(*) DESC LIMIT ?`, limit)
	if err != nil {
		return nil, &ports.CatalogError{Op: "decade counts", Err: err}
	}
	defer rows.Close()

	var out []ports.DecadeStat
	for rows.Next() {
		var s ports.DecadeStat
		if err := rows.Scan(&s.Decade, &s.Tracks); err != nil {
			return nil, &ports.CatalogError{Op: "decade counts", Err: err}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (a *Adapter) GenreTagDistribution(ctx context.Context, genre string, limit int) ([]ports.TagStat, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT sound_tag, COUNT(*) FROM tracks
		WHERE LOWER(genre) LIKE ? AND sound_tag IS NOT NULL AND sound_tag != ''
		GROUP BY sound_tag ORDER BY COUNT(*) DESC LIMIT ?`, like(genre), limit)
	if err != nil {
		return nil, &ports.CatalogError{Op: "tag distribution", Err: err}
	}
	defer rows.Close()

	var out []ports.TagStat
	for rows.Next() {
		var s ports.TagStat
		if err := rows.Scan(&s.Tag, &s.Count); err != nil {
			return nil, &ports.CatalogError{Op: "tag distribution", Err: err}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func uniqueLabels(raw string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		for _, label := range splitGenres(part) {
			key := strings.ToLower(label)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, label)
		}
	}
	return out
}
