package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cadenzalab/cadenza/internal/core/domain"
	"github.com/cadenzalab/cadenza/internal/core/ports"
)

const (
	perSuggestionLimit = 5
	minKeywordLen      = 4
)

// TieredSearch resolves model suggestions and filters into catalog tracks
// through four tiers of decreasing strictness. Each tier runs only while the
// result is still short, and a shared seen set keyed by file reference
// guarantees no track enters twice, within a phase or across phases.
type TieredSearch struct {
	catalog ports.TrackCatalog
	log     *logrus.Entry
}

func NewTieredSearch(catalog ports.TrackCatalog, log *logrus.Logger) *TieredSearch {
	return &TieredSearch{catalog: catalog, log: log.WithField("component", "search")}
}

// Run fills up to want tracks. seen is shared with the caller and mutated in
// place. Catalog errors abort: an unreadable store must not degrade into an
// empty playlist.
func (s *TieredSearch) Run(ctx context.Context, reply domain.ModelReply, intent domain.QueryIntent, seen map[string]bool, want int) ([]domain.Track, error) {
	var out []domain.Track

	// Tier 1: model suggestions constrained by the full filter set.
	for _, sug := range reply.Suggestions {
		if len(out) >= want {
			break
		}
		tracks, err := s.catalog.SearchSuggestion(ctx, sug, intent.Filters, perSuggestionLimit)
		if err != nil {
			return nil, err
		}
		out = admit(out, tracks, seen, want)
	}
	tier1 := len(out)

	// Tier 2: direct filter query, popularity-sorted.
	if len(out) < want && !intent.Filters.Empty() {
		tracks, err := s.catalog.SearchFiltered(ctx, intent.Filters, want*2)
		if err != nil {
			return nil, err
		}
		out = admit(out, tracks, seen, want)
	}
	tier2 := len(out)

	// Tier 3: relax everything except the decades.
	if len(out) < want && len(intent.Filters.Decades) > 0 {
		tracks, err := s.catalog.SearchDecades(ctx, intent.Filters.Decades, want*2)
		if err != nil {
			return nil, err
		}
		out = admit(out, tracks, seen, want)
	}
	tier3 := len(out)

	// Tier 4: keyword match over the raw request text, only when there is
	// nothing firmer to stand on.
	if len(out) < want && len(reply.Suggestions) == 0 && intent.Filters.Empty() {
		words := keywordTokens(intent.Query)
		if len(words) > 0 {
			tracks, err := s.catalog.SearchKeywords(ctx, words, want*2)
			if err != nil {
				return nil, err
			}
			out = admit(out, tracks, seen, want)
		}
	}

	s.log.WithFields(logrus.Fields{
		"tier1": tier1,
		"tier2": tier2 - tier1,
		"tier3": tier3 - tier2,
		"tier4": len(out) - tier3,
		"total": len(out),
	}).Debug("tiered search complete")
	return out, nil
}

// admit appends unseen tracks up to the cap, marking each file reference.
func admit(out []domain.Track, tracks []domain.Track, seen map[string]bool, want int) []domain.Track {
	for _, t := range tracks {
		if len(out) >= want {
			break
		}
		if t.FileRef == "" || seen[t.FileRef] {
			continue
		}
		seen[t.FileRef] = true
		out = append(out, t)
	}
	return out
}

// keywordTokens splits text into search tokens, keeping only words long
// enough to carry meaning.
func keywordTokens(text string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ",.!?\"'")
		if len(w) >= minKeywordLen {
			out = append(out, w)
		}
	}
	return out
}
