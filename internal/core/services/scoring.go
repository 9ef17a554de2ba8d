package services

import (
	"fmt"
	"math"
	"strings"

	"github.com/cadenzalab/cadenza/internal/core/domain"
)

// Weighted engagement mix: plays carry most of the signal, listener reach a
// third, video views the remainder.
const (
	playcountWeight = 0.5
	listenersWeight = 0.3
	viewsWeight     = 0.2
)

// RawPopularity computes the log-normalized weighted engagement score in
// [0,1], rounded to four decimals. A zero corpus maximum contributes zero
// rather than dividing by it.
func RawPopularity(t domain.Track, maxima domain.EngagementMaxima) float64 {
	score := playcountWeight*normLog(float64(t.Playcount), maxima.Playcount) +
		listenersWeight*normLog(float64(t.Listeners), maxima.Listeners) +
		viewsWeight*normLog(float64(t.Views), maxima.Views)
	return round4(score)
}

func normLog(value, max float64) float64 {
	denom := math.Log1p(max)
	if denom <= 0 {
		return 0
	}
	return math.Log1p(value) / denom
}

// RelativePopularity normalizes raw scores inside each primary-genre bucket,
// blends in a global log-scaled rank so small buckets do not dominate, and
// compresses the result onto [0.2,1] so no track displays as zero.
func RelativePopularity(cands []domain.Candidate) {
	if len(cands) == 0 {
		return
	}

	type bucket struct {
		min, max float64
		size     int
	}
	buckets := map[string]*bucket{}
	globalMin, globalMax := math.Inf(1), math.Inf(-1)

	for _, c := range cands {
		g := c.PrimaryGenre()
		b, ok := buckets[g]
		if !ok {
			b = &bucket{min: math.Inf(1), max: math.Inf(-1)}
			buckets[g] = b
		}
		b.size++
		b.min = math.Min(b.min, c.RawPopularity)
		b.max = math.Max(b.max, c.RawPopularity)

		lg := math.Log1p(c.RawPopularity)
		globalMin = math.Min(globalMin, lg)
		globalMax = math.Max(globalMax, lg)
	}

	for i := range cands {
		c := &cands[i]
		b := buckets[c.PrimaryGenre()]

		normGenre := 1.0
		if b.max > b.min {
			normGenre = (c.RawPopularity - b.min) / (b.max - b.min)
		}
		normGlobal := 1.0
		if globalMax > globalMin {
			normGlobal = (math.Log1p(c.RawPopularity) - globalMin) / (globalMax - globalMin)
		}

		// A globally strong track at the bottom of a small bucket
		// should not be punished for its neighbours.
		if normGenre < 0.1 && c.RawPopularity > 0.6 {
			normGenre = 0.25 + 0.5*normGlobal
		}

		// Larger buckets earn more trust in their local ranking.
		alpha := math.Min(0.95, 0.2+0.75*(float64(b.size)/(float64(b.size)+30)))
		combined := alpha*normGenre + (1-alpha)*normGlobal

		c.RelativePopularity = round4(0.2 + 0.8*math.Sqrt(combined))
		c.Display = PopularityDisplay(c.RelativePopularity)
	}
}

// PopularityDisplay renders a score as "7.5/10 ★★★★☆ (Star)".
func PopularityDisplay(score float64) string {
	score = math.Max(0, math.Min(1, score))

	value := math.Round(score*100) / 10
	stars := int(math.Round(score * 5))

	var label string
	switch {
	case score >= 0.9:
		label = "Icon"
	case score >= 0.7:
		label = "Star"
	case score >= 0.45:
		label = "Popular"
	case score >= 0.25:
		label = "Known"
	default:
		label = "Emerging"
	}

	return fmt.Sprintf("%.1f/10 %s%s (%s)",
		value,
		strings.Repeat("★", stars),
		strings.Repeat("☆", 5-stars),
		label,
	)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
