package services

import (
	"strings"

	"github.com/cadenzalab/cadenza/internal/core/domain"
)

// moodProfile maps a mood word onto acoustic envelopes and emotional tags.
// Zero bounds leave that side of the window open.
type moodProfile struct {
	tempoMin, tempoMax   float64
	energyMin, energyMax float64
	sound, lyrics, ctx   string
}

// Ordered so overlapping mood words resolve the same way on every run.
var moodProfiles = []struct {
	word    string
	profile moodProfile
}{
	{"happy", moodProfile{tempoMin: 100, energyMin: 0.05, sound: "Energetic / Uplifting", lyrics: "Joy / Happy", ctx: "Celebration"}},
	{"party", moodProfile{tempoMin: 110, energyMin: 0.07, sound: "Groovy / Positive", lyrics: "Joy / Happy", ctx: "Celebration"}},
	{"dance", moodProfile{tempoMin: 110, energyMin: 0.07, sound: "Groovy / Positive"}},
	{"energetic", moodProfile{tempoMin: 120, energyMin: 0.08, sound: "Energetic / Uplifting"}},
	{"intense", moodProfile{tempoMin: 120, energyMin: 0.09, sound: "Energetic / Uplifting", lyrics: "Anger"}},
	{"angry", moodProfile{tempoMin: 110, energyMin: 0.08, lyrics: "Anger"}},
	{"calm", moodProfile{tempoMax: 95, energyMax: 0.05, sound: "Calm / Neutral"}},
	{"chill", moodProfile{tempoMax: 100, energyMax: 0.06, sound: "Calm / Neutral"}},
	{"relax", moodProfile{tempoMax: 95, energyMax: 0.05, sound: "Calm / Neutral"}},
	{"soft", moodProfile{tempoMax: 90, energyMax: 0.04, sound: "Calm / Neutral"}},
	{"sad", moodProfile{tempoMax: 100, sound: "Sad / Melancholic", lyrics: "Sadness", ctx: "Loss and grief"}},
	{"melancholic", moodProfile{tempoMax: 100, sound: "Sad / Melancholic", lyrics: "Sadness"}},
	{"nostalgic", moodProfile{tempoMax: 110, sound: "Sad / Melancholic", ctx: "Loss and grief"}},
	{"romantic", moodProfile{tempoMax: 110, lyrics: "Love / Romantic", ctx: "Love and desire"}},
	{"motivational", moodProfile{tempoMin: 100, energyMin: 0.06, sound: "Energetic / Uplifting", ctx: "Overcoming and resilience"}},
	{"spiritual", moodProfile{tempoMax: 105, ctx: "Existential / spiritual"}},
}

// EnrichFiltersWithMood widens the filter set with acoustic predicates
// derived from mood words in the query. Setters keep existing values, so
// explicitly requested ranges always win over mood-derived ones.
func EnrichFiltersWithMood(query string, f *domain.Filters) {
	lower := strings.ToLower(query)
	for _, entry := range moodProfiles {
		if !strings.Contains(lower, entry.word) {
			continue
		}
		p := entry.profile
		f.SetTempoRange(p.tempoMin, p.tempoMax)
		f.SetEnergyRange(p.energyMin, p.energyMax)
		f.SetTags(p.sound, p.lyrics, p.ctx)
	}
}
