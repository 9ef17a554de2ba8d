package domain

import (
	"fmt"
	"strings"
)

// CountryKind selects how a country name constrains track selection.
type CountryKind string

const (
	// CountryOrigin filters on the artist's area of origin.
	CountryOrigin CountryKind = "origin"
	// CountryPopularIn filters on the ranked popular-in country fields.
	CountryPopularIn CountryKind = "popular_in"
)

// Filters is the resolved predicate set applied to catalog queries. Temporal
// dimensions are mutually exclusive with priority year > range > decades; the
// setters enforce that, so callers never juggle raw maps.
type Filters struct {
	Genre string // case-insensitive substring

	Year     int
	YearFrom int
	YearTo   int // inclusive
	Decades  []string

	Country     string
	CountryKind CountryKind
	// Countries is the expanded member set of a region request; selection
	// ORs them on the origin field.
	Countries []string

	TempoMin  float64
	TempoMax  float64
	EnergyMin float64
	EnergyMax float64

	SoundTag   string
	LyricsTag  string
	ContextTag string
}

// SetGenre records a genre predicate, ignoring blank input.
func (f *Filters) SetGenre(genre string) {
	genre = strings.TrimSpace(genre)
	if genre != "" {
		f.Genre = genre
	}
}

// SetYear pins selection to a single year. Wins over any range or decade
// already present.
func (f *Filters) SetYear(year int) {
	if year <= 0 {
		return
	}
	f.Year = year
	f.YearFrom, f.YearTo = 0, 0
	f.Decades = nil
}

// SetYearRange records an inclusive year range. Ignored when a single year is
// already active; clears decades.
func (f *Filters) SetYearRange(from, to int) {
	if f.Year != 0 || from <= 0 || to < from {
		return
	}
	f.YearFrom, f.YearTo = from, to
	f.Decades = nil
}

// SetDecades records one or more decade labels ("1980s"). Ignored when a year
// or range is already active.
func (f *Filters) SetDecades(decades ...string) {
	if f.Year != 0 || f.YearFrom != 0 {
		return
	}
	for _, d := range decades {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if !containsFold(f.Decades, d) {
			f.Decades = append(f.Decades, d)
		}
	}
}

// SetCountry records a country predicate of the given kind.
func (f *Filters) SetCountry(name string, kind CountryKind) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	if kind != CountryPopularIn {
		kind = CountryOrigin
	}
	f.Country = name
	f.CountryKind = kind
	f.Countries = nil
}

// SetRegion records a region's member countries, matched on artist origin.
// Replaces any single-country predicate.
func (f *Filters) SetRegion(countries []string) {
	if len(countries) == 0 {
		return
	}
	f.Countries = append([]string(nil), countries...)
	f.Country = ""
	f.CountryKind = ""
}

// SetTempoRange records a tempo window; zero bounds mean open-ended. Existing
// bounds are kept so explicit requests are never overridden.
func (f *Filters) SetTempoRange(min, max float64) {
	if f.TempoMin == 0 && min > 0 {
		f.TempoMin = min
	}
	if f.TempoMax == 0 && max > 0 {
		f.TempoMax = max
	}
}

// SetEnergyRange records an energy window; zero bounds mean open-ended.
func (f *Filters) SetEnergyRange(min, max float64) {
	if f.EnergyMin == 0 && min > 0 {
		f.EnergyMin = min
	}
	if f.EnergyMax == 0 && max > 0 {
		f.EnergyMax = max
	}
}

// SetTags records emotional-tag predicates, keeping any already present.
func (f *Filters) SetTags(sound, lyrics, context string) {
	if f.SoundTag == "" {
		f.SoundTag = strings.TrimSpace(sound)
	}
	if f.LyricsTag == "" {
		f.LyricsTag = strings.TrimSpace(lyrics)
	}
	if f.ContextTag == "" {
		f.ContextTag = strings.TrimSpace(context)
	}
}

// HasTemporal reports whether any temporal predicate is active.
func (f Filters) HasTemporal() bool {
	return f.Year != 0 || f.YearFrom != 0 || len(f.Decades) > 0
}

// HasCountry reports whether a country or region predicate is active.
func (f Filters) HasCountry() bool {
	return f.Country != "" || len(f.Countries) > 0
}

// Empty reports whether no predicate is active at all.
func (f Filters) Empty() bool {
	return f.Genre == "" && !f.HasTemporal() && !f.HasCountry() &&
		f.TempoMin == 0 && f.TempoMax == 0 && f.EnergyMin == 0 && f.EnergyMax == 0 &&
		f.SoundTag == "" && f.LyricsTag == "" && f.ContextTag == ""
}

// Describe renders the active predicates as a flat map for responses and
// playlist records.
func (f Filters) Describe() map[string]string {
	out := map[string]string{}
	if f.Genre != "" {
		out["genre"] = f.Genre
	}
	switch {
	case f.Year != 0:
		out["year"] = fmt.Sprintf("%d", f.Year)
	case f.YearFrom != 0:
		out["year_range"] = fmt.Sprintf("%d-%d", f.YearFrom, f.YearTo)
	case len(f.Decades) > 0:
		out["decades"] = strings.Join(f.Decades, ",")
	}
	if f.Country != "" {
		out["country"] = f.Country
		out["country_kind"] = string(f.CountryKind)
	}
	if len(f.Countries) > 0 {
		out["region_countries"] = strings.Join(f.Countries, ",")
	}
	if f.TempoMin != 0 || f.TempoMax != 0 {
		out["tempo_bpm"] = rangeLabel(f.TempoMin, f.TempoMax)
	}
	if f.EnergyMin != 0 || f.EnergyMax != 0 {
		out["energy_rms"] = rangeLabel(f.EnergyMin, f.EnergyMax)
	}
	if f.SoundTag != "" {
		out["sound_tag"] = f.SoundTag
	}
	if f.LyricsTag != "" {
		out["lyrics_tag"] = f.LyricsTag
	}
	if f.ContextTag != "" {
		out["context_tag"] = f.ContextTag
	}
	return out
}

func rangeLabel(min, max float64) string {
	switch {
	case min != 0 && max != 0:
		return fmt.Sprintf("%g-%g", min, max)
	case min != 0:
		return fmt.Sprintf(">=%g", min)
	default:
		return fmt.Sprintf("<=%g", max)
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
