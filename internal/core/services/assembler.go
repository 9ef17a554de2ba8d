package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cadenzalab/cadenza/internal/core/domain"
	"github.com/cadenzalab/cadenza/internal/core/ports"
)

// PlaylistExporter writes a playlist to an external format and returns the
// created path.
type PlaylistExporter interface {
	Write(p domain.Playlist) (string, error)
}

// Response is the engine's public result for one request.
type Response struct {
	QueryOriginal  string                `json:"query_original"`
	AppliedFilters map[string]string     `json:"applied_filters"`
	SortKey        string                `json:"sort_key"`
	Total          int                   `json:"total"`
	Items          []domain.PlaylistItem `json:"items"`
	ResultID       string                `json:"result_id"`
	Metadata       GenerationMetadata    `json:"generation_metadata"`
}

// GenerationMetadata records how the list was produced, for diagnostics and
// client display.
type GenerationMetadata struct {
	PhaseReached      int     `json:"phase_reached"`
	ElapsedSeconds    float64 `json:"elapsed_seconds"`
	ItemsPerSecond    float64 `json:"items_per_second"`
	ModelDegraded     bool    `json:"model_degraded"`
	EmergencyFallback bool    `json:"emergency_fallback,omitempty"`
	// PopularInRanks counts, for popular-in requests, how many selected
	// tracks carried the country at each chart rank.
	PopularInRanks map[string]int `json:"popular_in_ranks,omitempty"`
}

// Assembler turns ranked candidates into the persisted playlist and the wire
// response: URL rewriting, identity, storage, export.
type Assembler struct {
	playlists ports.PlaylistRepository
	exporter  PlaylistExporter
	mediaBase string
	coverBase string
	log       *logrus.Entry
}

func NewAssembler(playlists ports.PlaylistRepository, exporter PlaylistExporter, mediaBase, coverBase string, log *logrus.Logger) *Assembler {
	return &Assembler{
		playlists: playlists,
		exporter:  exporter,
		mediaBase: strings.TrimRight(mediaBase, "/"),
		coverBase: strings.TrimRight(coverBase, "/"),
		log:       log.WithField("component", "assembler"),
	}
}

// Assemble persists and exports the final list. Persistence failures are
// logged but do not fail the request: the caller already has a usable list.
func (a *Assembler) Assemble(ctx context.Context, query, owner string, intent domain.QueryIntent, cands []domain.Candidate, meta GenerationMetadata, elapsed time.Duration) (Response, error) {
	items := make([]domain.PlaylistItem, 0, len(cands))
	for _, c := range cands {
		items = append(items, a.project(c))
	}

	resultID := uuid.NewString()
	meta.ElapsedSeconds = round2(elapsed.Seconds())
	if meta.ElapsedSeconds > 0 {
		meta.ItemsPerSecond = round2(float64(len(items)) / meta.ElapsedSeconds)
	}
	if intent.Filters.CountryKind == domain.CountryPopularIn {
		meta.PopularInRanks = popularInRanks(cands, intent.Filters.Country)
	}

	playlist := domain.Playlist{
		ID:       uuid.NewString(),
		Name:     playlistName(query),
		Query:    query,
		Filters:  intent.Filters.Describe(),
		Items:    items,
		Owner:    owner,
		ResultID: resultID,
		Kind:     string(intent.Type),
		Created:  time.Now().UTC(),
	}

	if a.exporter != nil {
		path, err := a.exporter.Write(playlist)
		if err != nil {
			a.log.WithError(err).Warn("playlist export failed")
		} else {
			playlist.M3UPath = path
		}
	}

	if err := a.playlists.Save(ctx, playlist); err != nil {
		a.log.WithError(err).Warn("playlist persistence failed")
	}

	return Response{
		QueryOriginal:  query,
		AppliedFilters: playlist.Filters,
		SortKey:        "relative_popularity",
		Total:          len(items),
		Items:          items,
		ResultID:       resultID,
		Metadata:       meta,
	}, nil
}

func (a *Assembler) project(c domain.Candidate) domain.PlaylistItem {
	item := domain.PlaylistItem{
		FileRef:            c.FileRef,
		StreamURL:          a.mediaBase + "/stream/" + escapePath(c.FileRef),
		Title:              c.Title,
		Artist:             c.Artist,
		Album:              c.Album,
		Year:               c.Year,
		Genre:              c.PrimaryGenre(),
		DurationSecs:       c.DurationSecs,
		Bitrate:            c.Bitrate,
		Quality:            c.Quality,
		RelativePopularity: c.RelativePopularity,
		PopularityDisplay:  c.Display,
	}
	if c.CoverRef != "" {
		item.CoverURL = a.coverBase + "/cover/" + escapePath(c.CoverRef)
	}
	return item
}

// escapePath escapes each segment of a file reference while keeping the
// separators, so nested library paths survive the URL round trip.
func escapePath(ref string) string {
	parts := strings.Split(strings.TrimLeft(ref, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// popularInRanks tallies at which chart position the country appears across
// the selected tracks.
func popularInRanks(cands []domain.Candidate, country string) map[string]int {
	out := map[string]int{}
	for _, c := range cands {
		for i, pc := range c.PopularIn {
			if strings.EqualFold(pc, country) {
				out[fmt.Sprintf("rank_%d", i+1)]++
				break
			}
		}
	}
	return out
}

// playlistName derives a short stable name from the query text.
func playlistName(query string) string {
	name := strings.TrimSpace(query)
	if len(name) > 80 {
		name = name[:80]
	}
	if name == "" {
		name = "untitled"
	}
	return name
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
