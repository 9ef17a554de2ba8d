package services

import (
	"fmt"
	"strings"

	"github.com/cadenzalab/cadenza/internal/core/domain"
)

const (
	promptContextArtists = 25
	promptContextGenres  = 20
)

// PromptBuilder renders the three generation-phase prompts. Every prompt
// grounds the model in real catalog names and demands strict JSON, the only
// reply shape the extraction layer accepts without repair.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder { return &PromptBuilder{} }

// Initial renders the phase-one prompt for a fresh request.
func (b *PromptBuilder) Initial(query string, intent domain.QueryIntent, cc CatalogContext) string {
	var sb strings.Builder
	sb.WriteString("You are a music curator working against a private library.\n")
	fmt.Fprintf(&sb, "User request: %q\n\n", query)

	b.writeCriteria(&sb, intent)
	b.writeContext(&sb, cc)

	fmt.Fprintf(&sb, "\nSuggest up to %d songs that match the request, preferring artists present in the library.\n", intent.Limit)
	b.writeReplyShape(&sb)
	return sb.String()
}

// Completion renders the phase-two prompt: the list is short and the model
// must fill the gap without repeating what is already selected.
func (b *PromptBuilder) Completion(query string, intent domain.QueryIntent, cc CatalogContext, have []domain.Candidate, missing int) string {
	var sb strings.Builder
	sb.WriteString("You are a music curator completing a partial playlist.\n")
	fmt.Fprintf(&sb, "User request: %q\n\n", query)

	b.writeCriteria(&sb, intent)
	b.writeContext(&sb, cc)

	sb.WriteString("\nAlready selected, do NOT repeat any of these:\n")
	for _, c := range have {
		fmt.Fprintf(&sb, "- %s - %s\n", c.Artist, c.Title)
	}

	fmt.Fprintf(&sb, "\nSuggest %d additional songs matching the same request.\n", missing)
	b.writeReplyShape(&sb)
	return sb.String()
}

// Validation renders the phase-three prompt: the model reviews the assembled
// list and replies with the subset worth keeping.
func (b *PromptBuilder) Validation(query string, intent domain.QueryIntent, have []domain.Candidate) string {
	var sb strings.Builder
	sb.WriteString("You are reviewing a finished playlist for coherence.\n")
	fmt.Fprintf(&sb, "User request: %q\n\n", query)

	b.writeCriteria(&sb, intent)

	sb.WriteString("\nCurrent playlist:\n")
	for i, c := range have {
		fmt.Fprintf(&sb, "%d. %s - %s (%s)\n", i+1, c.Artist, c.Title, c.PrimaryGenre())
	}

	sb.WriteString("\nReturn as suggestions the tracks from this list that fit the request, best fits first.\n")
	sb.WriteString("Leave out tracks that are a poor fit. Do not invent tracks that are not listed.\n")
	sb.WriteString("If the playlist is already good, return an empty suggestions list.\n")
	b.writeReplyShape(&sb)
	return sb.String()
}

func (b *PromptBuilder) writeCriteria(sb *strings.Builder, intent domain.QueryIntent) {
	sb.WriteString("Selection criteria:\n")
	if intent.Genre != "" {
		fmt.Fprintf(sb, "- genre: %s\n", intent.Genre)
	}
	if intent.Mood != "" {
		fmt.Fprintf(sb, "- mood: %s\n", intent.Mood)
	}
	if intent.Artist != "" {
		fmt.Fprintf(sb, "- artist focus: %s\n", intent.Artist)
	}
	f := intent.Filters
	switch {
	case f.Year != 0:
		fmt.Fprintf(sb, "- year: %d\n", f.Year)
	case f.YearFrom != 0:
		fmt.Fprintf(sb, "- years: %d to %d\n", f.YearFrom, f.YearTo)
	case len(f.Decades) > 0:
		fmt.Fprintf(sb, "- decades: %s\n", strings.Join(f.Decades, ", "))
	}
	if f.Country != "" {
		if f.CountryKind == domain.CountryPopularIn {
			fmt.Fprintf(sb, "- music popular in %s\n", f.Country)
		} else {
			fmt.Fprintf(sb, "- artists from %s\n", f.Country)
		}
	}
	if len(f.Countries) > 0 {
		fmt.Fprintf(sb, "- artists from: %s\n", strings.Join(f.Countries, ", "))
	}
}

func (b *PromptBuilder) writeContext(sb *strings.Builder, cc CatalogContext) {
	if names := cc.ArtistNames(promptContextArtists); len(names) > 0 {
		fmt.Fprintf(sb, "\nArtists available in the library include: %s\n", strings.Join(names, ", "))
	}
	if names := cc.GenreNames(promptContextGenres); len(names) > 0 {
		fmt.Fprintf(sb, "Genres available: %s\n", strings.Join(names, ", "))
	}
}

func (b *PromptBuilder) writeReplyShape(sb *strings.Builder) {
	sb.WriteString(`
Reply with ONLY a JSON object, no prose, exactly this shape:
{
  "filters": {"genre": "", "decades": [], "year": 0, "country": "", "mood": ""},
  "suggestions": [{"title": "Song Name", "artist": "Artist Name", "album": ""}]
}
`)
}
