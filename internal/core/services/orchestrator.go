package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cadenzalab/cadenza/internal/core/domain"
	"github.com/cadenzalab/cadenza/internal/core/ports"
)

// Request is one generation call into the engine.
type Request struct {
	Query string
	Owner string
	// Limit overrides the derived track count when positive.
	Limit int
	// Regenerate excludes the tracks of a previous result.
	Regenerate       bool
	PreviousResultID string
}

// Engine drives the whole pipeline: intent, phased model collaboration,
// tiered catalog search, scoring, diversity, assembly. Every collaborator is
// injected; the engine holds no I/O of its own.
type Engine struct {
	catalog    ports.TrackCatalog
	llm        ports.InferenceService
	playlists  ports.PlaylistRepository
	feedback   ports.FeedbackRepository
	analyzer   *IntentAnalyzer
	aggregator *ContextAggregator
	search     *TieredSearch
	diversity  *DiversityEnforcer
	prompts    *PromptBuilder
	assembler  *Assembler
	log        *logrus.Entry
}

func NewEngine(
	catalog ports.TrackCatalog,
	llm ports.InferenceService,
	playlists ports.PlaylistRepository,
	feedback ports.FeedbackRepository,
	analyzer *IntentAnalyzer,
	aggregator *ContextAggregator,
	search *TieredSearch,
	diversity *DiversityEnforcer,
	assembler *Assembler,
	log *logrus.Logger,
) *Engine {
	return &Engine{
		catalog:    catalog,
		llm:        llm,
		playlists:  playlists,
		feedback:   feedback,
		analyzer:   analyzer,
		aggregator: aggregator,
		search:     search,
		diversity:  diversity,
		prompts:    NewPromptBuilder(),
		assembler:  assembler,
		log:        log.WithField("component", "engine"),
	}
}

// Generate runs one request end to end. Model failures degrade silently;
// catalog failures propagate as retryable errors.
func (e *Engine) Generate(ctx context.Context, req Request) (Response, error) {
	started := time.Now()

	if strings.TrimSpace(req.Query) == "" {
		return Response{}, &domain.ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if req.Limit < 0 || req.Limit > 100 {
		return Response{}, &domain.ValidationError{Field: "limit", Reason: "must be between 1 and 100"}
	}

	intent := e.analyzer.Analyze(ctx, req.Query)
	if req.Limit > 0 {
		intent.Limit = req.Limit
	}

	seen := map[string]bool{}
	excludedCanon := map[string]bool{}
	if req.Regenerate && req.PreviousResultID != "" {
		e.loadExclusions(ctx, req, seen, excludedCanon)
	}

	maxima, err := e.catalog.EngagementMaxima(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("engine: engagement maxima: %w", err)
	}

	var (
		pool []domain.Candidate
		meta GenerationMetadata
	)

	switch intent.Type {
	case domain.RequestArtist:
		pool, err = e.artistPool(ctx, intent, maxima, seen)
	case domain.RequestSimilarTo:
		pool, err = e.similarPool(ctx, &intent, maxima, seen)
	case domain.RequestCountry:
		pool, err = e.countryPool(ctx, intent, maxima, seen)
	case domain.RequestRegion:
		pool, err = e.regionPool(ctx, intent, maxima, seen)
	}
	if err != nil {
		return Response{}, err
	}

	if pool == nil {
		pool, meta, err = e.hybridPool(ctx, req.Query, intent, maxima, seen, excludedCanon)
		if err != nil {
			return Response{}, err
		}
	} else {
		meta.PhaseReached = 1
	}

	pool = dropExcluded(pool, excludedCanon)
	pool = DedupeCandidates(pool)
	RelativePopularity(pool)
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].RelativePopularity > pool[j].RelativePopularity
	})

	final, emergency, err := e.diversity.Enforce(ctx, pool, intent, intent.Limit)
	if err != nil {
		return Response{}, err
	}
	meta.EmergencyFallback = emergency
	scoreUnscored(final, maxima)

	e.log.WithFields(logrus.Fields{
		"type":    intent.Type,
		"pool":    len(pool),
		"final":   len(final),
		"phase":   meta.PhaseReached,
		"elapsed": time.Since(started).Round(time.Millisecond),
	}).Info("playlist generated")

	return e.assembler.Assemble(ctx, req.Query, req.Owner, intent, final, meta, time.Since(started))
}

// loadExclusions seeds the seen set with tracks from a previous result so a
// regenerated list shares nothing with it. An unknown result id is not an
// error; the request just runs fresh.
func (e *Engine) loadExclusions(ctx context.Context, req Request, seen, excludedCanon map[string]bool) {
	prev, err := e.playlists.GetByResultID(ctx, req.PreviousResultID, req.Owner)
	if err != nil {
		e.log.WithError(err).WithField("result_id", req.PreviousResultID).
			Debug("previous result not found, regenerating without exclusions")
		return
	}
	for _, item := range prev.Items {
		if item.FileRef != "" {
			seen[item.FileRef] = true
		}
		excludedCanon[DedupeKey(domain.Track{
			Title:   item.Title,
			FileRef: item.FileRef,
		})] = true
	}
}

// hybridPool runs the three-phase model collaboration. Each phase makes
// its own bounded model call and degrades alone; duplicates and regenerate
// exclusions are collapsed after every phase, so the target checks between
// phases only ever count canonical recordings. A phase is skipped once the
// pool has reached the target.
func (e *Engine) hybridPool(ctx context.Context, query string, intent domain.QueryIntent, maxima domain.EngagementMaxima, seen, excludedCanon map[string]bool) ([]domain.Candidate, GenerationMetadata, error) {
	var meta GenerationMetadata

	cc, err := e.aggregator.Collect(ctx)
	if err != nil {
		return nil, meta, fmt.Errorf("engine: catalog context: %w", err)
	}

	// Phase 1: initial suggestion round.
	meta.PhaseReached = 1
	reply, ok := e.ask(ctx, e.prompts.Initial(query, intent, cc))
	if !ok {
		meta.ModelDegraded = true
	} else {
		applyFilterHints(reply.Filters, &intent)
	}

	tracks, err := e.search.Run(ctx, reply, intent, seen, intent.Limit)
	if err != nil {
		return nil, meta, fmt.Errorf("engine: phase 1 search: %w", err)
	}
	pool := consolidate(nil, tracks, maxima, excludedCanon)

	// Phase 2: completion round for a short list.
	if len(pool) < intent.Limit {
		meta.PhaseReached = 2
		missing := intent.Limit - len(pool)
		reply, ok = e.ask(ctx, e.prompts.Completion(query, intent, cc, pool, missing))
		if !ok {
			meta.ModelDegraded = true
			reply = domain.ModelReply{}
		}
		tracks, err = e.search.Run(ctx, reply, intent, seen, missing)
		if err != nil {
			return nil, meta, fmt.Errorf("engine: phase 2 search: %w", err)
		}
		pool = consolidate(pool, tracks, maxima, excludedCanon)
	}

	// Phase 3: validation round on a still-short list. The verdict is the
	// subset of the pool worth keeping; the rest pads back in pool order.
	if len(pool) > 0 && len(pool) < intent.Limit {
		meta.PhaseReached = 3
		reply, ok = e.ask(ctx, e.prompts.Validation(query, intent, pool))
		if !ok {
			meta.ModelDegraded = true
		} else {
			pool = applyValidation(pool, reply, intent.Limit)
		}
	}

	return pool, meta, nil
}

// consolidate folds freshly found tracks into the pool: score, drop
// regenerate exclusions, collapse duplicate recordings.
func consolidate(pool []domain.Candidate, tracks []domain.Track, maxima domain.EngagementMaxima, excludedCanon map[string]bool) []domain.Candidate {
	pool = append(pool, scoreTracks(tracks, maxima)...)
	pool = dropExcluded(pool, excludedCanon)
	return DedupeCandidates(pool)
}

// applyValidation keeps the candidates the model confirmed, then pads the
// list back from the pre-validation pool in its original order up to the
// limit. A verdict matching nothing is unusable and changes nothing.
func applyValidation(pool []domain.Candidate, reply domain.ModelReply, limit int) []domain.Candidate {
	if len(reply.Suggestions) == 0 {
		return pool
	}
	kept := make([]domain.Candidate, 0, len(pool))
	var dropped []domain.Candidate
	for _, c := range pool {
		if confirmedBy(c, reply.Suggestions) {
			kept = append(kept, c)
		} else {
			dropped = append(dropped, c)
		}
	}
	if len(kept) == 0 {
		return pool
	}
	for _, c := range dropped {
		if len(kept) >= limit {
			break
		}
		kept = append(kept, c)
	}
	return kept
}

func confirmedBy(c domain.Candidate, sugs []domain.Suggestion) bool {
	title := CanonicalTitle(c.Title)
	for _, s := range sugs {
		if s.Title == "" || CanonicalTitle(s.Title) != title {
			continue
		}
		if s.Artist != "" && !strings.EqualFold(strings.TrimSpace(s.Artist), c.Artist) {
			continue
		}
		return true
	}
	return false
}

// ask performs one bounded model call. Both sentinel failures collapse to an
// empty reply; anything else is unexpected and logged at warning level.
func (e *Engine) ask(ctx context.Context, prompt string) (domain.ModelReply, bool) {
	reply, err := e.llm.SuggestTracks(ctx, prompt)
	if err == nil {
		return reply, true
	}
	e.log.WithError(err).Warn("model call failed, continuing catalog-only")
	return domain.ModelReply{}, false
}

func (e *Engine) artistPool(ctx context.Context, intent domain.QueryIntent, maxima domain.EngagementMaxima, seen map[string]bool) ([]domain.Candidate, error) {
	tracks, err := e.catalog.SearchArtist(ctx, intent.Artist, intent.Limit*3)
	if err != nil {
		return nil, fmt.Errorf("engine: artist search: %w", err)
	}
	return scoreTracks(admit(nil, tracks, seen, intent.Limit*3), maxima), nil
}

// similarPool resolves the reference artist's acoustic profile and searches
// near it. An unknown artist falls back to the hybrid flow by returning a
// nil pool.
func (e *Engine) similarPool(ctx context.Context, intent *domain.QueryIntent, maxima domain.EngagementMaxima, seen map[string]bool) ([]domain.Candidate, error) {
	profile, err := e.catalog.ArtistProfile(ctx, intent.Artist)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			e.log.WithField("artist", intent.Artist).Debug("reference artist unknown, using hybrid flow")
			intent.Type = domain.RequestGenreOrMood
			return nil, nil
		}
		return nil, fmt.Errorf("engine: artist profile: %w", err)
	}
	tracks, err := e.catalog.SearchSimilar(ctx, profile, intent.Limit*3)
	if err != nil {
		return nil, fmt.Errorf("engine: similar search: %w", err)
	}
	return scoreTracks(admit(nil, tracks, seen, intent.Limit*3), maxima), nil
}

func (e *Engine) countryPool(ctx context.Context, intent domain.QueryIntent, maxima domain.EngagementMaxima, seen map[string]bool) ([]domain.Candidate, error) {
	tracks, err := e.catalog.SearchCountry(ctx, intent.Filters.Country, intent.Filters.CountryKind, intent.Limit*3)
	if err != nil {
		return nil, fmt.Errorf("engine: country search: %w", err)
	}
	return scoreTracks(admit(nil, tracks, seen, intent.Limit*3), maxima), nil
}

func (e *Engine) regionPool(ctx context.Context, intent domain.QueryIntent, maxima domain.EngagementMaxima, seen map[string]bool) ([]domain.Candidate, error) {
	var all []domain.Track
	per := intent.Limit * 3 / maxInt(len(intent.Filters.Countries), 1)
	for _, country := range intent.Filters.Countries {
		tracks, err := e.catalog.SearchCountry(ctx, country, domain.CountryOrigin, maxInt(per, perSuggestionLimit))
		if err != nil {
			return nil, fmt.Errorf("engine: region search: %w", err)
		}
		all = admit(all, tracks, seen, intent.Limit*3)
	}
	return scoreTracks(all, maxima), nil
}

// RecordFeedback validates and stores one user verdict.
func (e *Engine) RecordFeedback(ctx context.Context, f domain.Feedback) (domain.Feedback, error) {
	if f.Owner == "" {
		return domain.Feedback{}, &domain.ValidationError{Field: "owner", Reason: "must not be empty"}
	}
	if f.PlaylistID == "" && f.TrackRef == "" {
		return domain.Feedback{}, &domain.ValidationError{Field: "playlist_id", Reason: "feedback needs a playlist or track target"}
	}
	switch f.Verdict {
	case "like", "dislike", "skip":
	default:
		return domain.Feedback{}, &domain.ValidationError{Field: "verdict", Reason: "must be like, dislike or skip"}
	}
	f.ID = uuid.NewString()
	f.Created = time.Now().UTC()
	if err := e.feedback.Save(ctx, f); err != nil {
		return domain.Feedback{}, fmt.Errorf("engine: save feedback: %w", err)
	}
	return f, nil
}

// Playlists lists the owner's stored playlists, newest first.
func (e *Engine) Playlists(ctx context.Context, owner string) ([]domain.Playlist, error) {
	if owner == "" {
		return nil, &domain.ValidationError{Field: "owner", Reason: "must not be empty"}
	}
	return e.playlists.ListByOwner(ctx, owner)
}

// Playlist fetches one stored playlist by id.
func (e *Engine) Playlist(ctx context.Context, id string) (domain.Playlist, error) {
	if id == "" {
		return domain.Playlist{}, &domain.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	return e.playlists.GetByID(ctx, id)
}

// applyFilterHints merges model-proposed filters into the intent. Every
// setter keeps already-resolved values, so deterministic detection always
// wins over the model.
func applyFilterHints(h domain.FilterHints, intent *domain.QueryIntent) {
	if h.Genre != "" {
		intent.Filters.SetGenre(h.Genre)
		if intent.Genre == "" {
			intent.Genre = h.Genre
		}
	}
	if !intent.Filters.HasTemporal() {
		if h.Year != 0 {
			intent.Filters.SetYear(h.Year)
		} else if len(h.Decades) > 0 {
			intent.Filters.SetDecades(normalizeDecades(h.Decades)...)
		}
	}
	if !intent.Filters.HasCountry() && h.Country != "" {
		kind := domain.CountryOrigin
		if h.CountryKind == string(domain.CountryPopularIn) {
			kind = domain.CountryPopularIn
		}
		intent.Filters.SetCountry(h.Country, kind)
	}
	if intent.Mood == "" && h.Mood != "" {
		intent.Mood = h.Mood
	}
}

func scoreTracks(tracks []domain.Track, maxima domain.EngagementMaxima) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(tracks))
	for _, t := range tracks {
		c := domain.Candidate{Track: t}
		c.RawPopularity = RawPopularity(t, maxima)
		out = append(out, c)
	}
	return out
}

// scoreUnscored fills display fields for tracks admitted by the emergency
// fallback, which skips the ranking pass. The raw score runs through the
// same compression as ranked candidates, keeping the result within the
// displayed [0.2,1] band.
func scoreUnscored(cands []domain.Candidate, maxima domain.EngagementMaxima) {
	for i := range cands {
		if cands[i].Display != "" {
			continue
		}
		cands[i].RawPopularity = RawPopularity(cands[i].Track, maxima)
		cands[i].RelativePopularity = round4(0.2 + 0.8*math.Sqrt(cands[i].RawPopularity))
		cands[i].Display = PopularityDisplay(cands[i].RelativePopularity)
	}
}

func dropExcluded(pool []domain.Candidate, excludedCanon map[string]bool) []domain.Candidate {
	if len(excludedCanon) == 0 {
		return pool
	}
	out := pool[:0]
	for _, c := range pool {
		if excludedCanon[DedupeKey(c.Track)] {
			continue
		}
		out = append(out, c)
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
