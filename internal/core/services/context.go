package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cadenzalab/cadenza/internal/core/ports"
)

const (
	contextMaxArtists = 80
	contextMaxGenres  = 50
	contextMaxDecades = 10
	// Emotional-tag distribution is only collected for the most common
	// genres; beyond that it adds prompt noise.
	contextTagGenres = 15
	contextTagsPer   = 3
)

// CatalogContext is the read-only statistical summary of the corpus used to
// ground model prompts and keep suggested names inside the catalog.
type CatalogContext struct {
	Artists   []ports.ArtistStat
	Genres    []ports.GenreStat
	Decades   []ports.DecadeStat
	GenreTags map[string][]ports.TagStat
}

// ArtistNames returns up to n artist names from the summary.
func (c CatalogContext) ArtistNames(n int) []string {
	if n > len(c.Artists) {
		n = len(c.Artists)
	}
	names := make([]string, 0, n)
	for _, a := range c.Artists[:n] {
		names = append(names, a.Name)
	}
	return names
}

// GenreNames returns up to n genre names from the summary.
func (c CatalogContext) GenreNames(n int) []string {
	if n > len(c.Genres) {
		n = len(c.Genres)
	}
	names := make([]string, 0, n)
	for _, g := range c.Genres[:n] {
		names = append(names, g.Name)
	}
	return names
}

// ContextAggregator collects the catalog summary and memoizes it for a short
// TTL: the aggregation scans the full corpus and would otherwise run on
// every request.
type ContextAggregator struct {
	stats ports.CatalogStats
	ttl   time.Duration
	log   *logrus.Entry

	mu      sync.Mutex
	cached  *CatalogContext
	expires time.Time
}

// NewContextAggregator wires the aggregator against a stats source. A zero
// ttl disables memoization.
func NewContextAggregator(stats ports.CatalogStats, ttl time.Duration, log *logrus.Logger) *ContextAggregator {
	return &ContextAggregator{
		stats: stats,
		ttl:   ttl,
		log:   log.WithField("component", "context"),
	}
}

// Collect returns the current catalog summary, from cache when fresh. A
// store failure is returned as-is so the caller can surface it.
func (a *ContextAggregator) Collect(ctx context.Context) (CatalogContext, error) {
	a.mu.Lock()
	if a.cached != nil && time.Now().Before(a.expires) {
		c := *a.cached
		a.mu.Unlock()
		return c, nil
	}
	a.mu.Unlock()

	artists, err := a.stats.TopArtists(ctx, contextMaxArtists)
	if err != nil {
		return CatalogContext{}, err
	}
	genres, err := a.stats.TopGenres(ctx, contextMaxGenres)
	if err != nil {
		return CatalogContext{}, err
	}
	decades, err := a.stats.DecadeCounts(ctx, contextMaxDecades)
	if err != nil {
		return CatalogContext{}, err
	}

	tags := make(map[string][]ports.TagStat)
	limit := contextTagGenres
	if limit > len(genres) {
		limit = len(genres)
	}
	for _, g := range genres[:limit] {
		dist, err := a.stats.GenreTagDistribution(ctx, g.Name, contextTagsPer)
		if err != nil {
			return CatalogContext{}, err
		}
		if len(dist) > 0 {
			tags[g.Name] = dist
		}
	}

	c := CatalogContext{Artists: artists, Genres: genres, Decades: decades, GenreTags: tags}
	a.log.WithFields(logrus.Fields{
		"artists": len(artists),
		"genres":  len(genres),
		"decades": len(decades),
	}).Debug("catalog context collected")

	if a.ttl > 0 {
		a.mu.Lock()
		a.cached = &c
		a.expires = time.Now().Add(a.ttl)
		a.mu.Unlock()
	}
	return c, nil
}
