package services

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/cadenzalab/cadenza/internal/core/domain"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestTieredSearch_SuggestionsFirst(t *testing.T) {
	cat := &stubCatalog{
		suggestion: []domain.Track{{ID: "s1", Title: "Hit", FileRef: "s1"}},
		filtered:   []domain.Track{{ID: "f1", Title: "Filler", FileRef: "f1"}},
	}
	search := NewTieredSearch(cat, testLogger())

	reply := domain.ModelReply{Suggestions: []domain.Suggestion{{Title: "Hit", Artist: "Someone"}}}
	var intent domain.QueryIntent
	intent.Filters.SetGenre("rock")

	out, err := search.Run(context.Background(), reply, intent, map[string]bool{}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d tracks, want 2", len(out))
	}
	if out[0].FileRef != "s1" {
		t.Errorf("first track = %s, want the suggestion match", out[0].FileRef)
	}
}

func TestTieredSearch_SeenSetBlocksDuplicates(t *testing.T) {
	cat := &stubCatalog{
		filtered: []domain.Track{
			{ID: "1", Title: "A", FileRef: "f1"},
			{ID: "2", Title: "B", FileRef: "f2"},
		},
	}
	search := NewTieredSearch(cat, testLogger())

	var intent domain.QueryIntent
	intent.Filters.SetGenre("rock")
	seen := map[string]bool{"f1": true}

	out, err := search.Run(context.Background(), domain.ModelReply{}, intent, seen, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].FileRef != "f2" {
		t.Fatalf("got %+v, want only f2", out)
	}
}

func TestTieredSearch_KeywordTierNeedsNothingFirmer(t *testing.T) {
	cat := &stubCatalog{
		keywords: []domain.Track{{ID: "k1", Title: "Keyword Hit", FileRef: "k1"}},
	}
	search := NewTieredSearch(cat, testLogger())

	// No suggestions and no filters: the keyword tier tokenizes the
	// original request text.
	intent := domain.QueryIntent{Query: "unforgettable evening melodies"}
	out, err := search.Run(context.Background(), domain.ModelReply{}, intent, map[string]bool{}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d tracks, want 1 from the keyword tier", len(out))
	}
	if got := cat.keywordQueries; len(got) != 1 || len(got[0]) != 3 {
		t.Fatalf("keyword tokens = %v, want the three request words", got)
	}

	// With a filter active the keyword tier must stay off.
	var filtered domain.QueryIntent
	filtered.Query = "unforgettable evening melodies"
	filtered.Filters.SetGenre("progressive")
	out, err = search.Run(context.Background(), domain.ModelReply{}, filtered, map[string]bool{}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("got %d tracks, want 0 (filtered tier empty, keyword tier gated)", len(out))
	}
}

func TestDiversityEnforcer_Caps(t *testing.T) {
	d := NewDiversityEnforcer(&stubCatalog{}, testLogger())

	pool := []domain.Candidate{
		{Track: domain.Track{Title: "1", Artist: "A", Album: "X", FileRef: "t1"}},
		{Track: domain.Track{Title: "2", Artist: "A", Album: "X", FileRef: "t2"}},
		{Track: domain.Track{Title: "3", Artist: "A", Album: "Y", FileRef: "t3"}},
		{Track: domain.Track{Title: "4", Artist: "A", Album: "Z", FileRef: "t4"}}, // over artist cap
		{Track: domain.Track{Title: "5", Artist: "B", Album: "W", FileRef: "t5"}},
	}

	out, emergency, err := d.Enforce(context.Background(), pool, domain.QueryIntent{}, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emergency {
		t.Error("emergency fallback should not run with enough pool")
	}
	if len(out) != 4 {
		t.Fatalf("got %d, want 4", len(out))
	}

	perArtist := map[string]int{}
	for _, c := range out[:3] {
		perArtist[c.Artist]++
	}
	if perArtist["A"] > maxPerArtist {
		t.Errorf("artist A appears %d times in the capped prefix", perArtist["A"])
	}
}

func TestDiversityEnforcer_EmergencyFallback(t *testing.T) {
	cat := &stubCatalog{
		top: []domain.Track{
			{ID: "e1", Title: "Rescue One", FileRef: "e1"},
			{ID: "e2", Title: "Rescue Two", FileRef: "e2"},
		},
	}
	d := NewDiversityEnforcer(cat, testLogger())

	pool := []domain.Candidate{
		{Track: domain.Track{Title: "Only", Artist: "A", FileRef: "t1"}},
	}
	out, emergency, err := d.Enforce(context.Background(), pool, domain.QueryIntent{}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !emergency {
		t.Fatal("expected emergency fallback")
	}
	if len(out) != 3 {
		t.Fatalf("got %d, want 3 after emergency top-up", len(out))
	}
}
