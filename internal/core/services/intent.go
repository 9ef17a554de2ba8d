package services

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cadenzalab/cadenza/internal/core/domain"
	"github.com/cadenzalab/cadenza/internal/core/ports"
)

// Limit bounds. Explicit "top N" phrases get the tighter conservative range;
// everything else clamps into the general one.
const (
	generalLimitMin = 10
	generalLimitMax = 100
	topLimitMin     = 5
	topLimitMax     = 50

	defaultStandardLimit = 40
	defaultArtistLimit   = 30
)

// countryKeywords maps lowercase stems in the query to canonical country
// names. Detection here is deterministic and always beats the model's
// country field: selection filters must not be hallucinated.
var countryKeywords = []struct {
	stem    string
	country string
}{
	{"chile", "Chile"},
	{"argentin", "Argentina"},
	{"mexic", "Mexico"},
	{"colombia", "Colombia"},
	{"peru", "Peru"},
	{"brazil", "Brazil"},
	{"spain", "Spain"},
	{"spanish", "Spain"},
	{"france", "France"},
	{"french", "France"},
	{"german", "Germany"},
	{"italian", "Italy"},
	{"italy", "Italy"},
	{"british", "United Kingdom"},
	{"england", "United Kingdom"},
	{"united states", "United States"},
	{"american", "United States"},
	{"usa", "United States"},
	{"canad", "Canada"},
	{"japan", "Japan"},
}

// Phrases that flip a country match from artist origin to chart popularity.
var popularInPhrases = []string{
	"popular in", "most played in", "top in", "trending in", "charting in", "hits in",
}

var regionDefinitions = map[string]struct {
	name      string
	countries []string
}{
	"latam":         {"Latin America", []string{"Chile", "Argentina", "Mexico", "Colombia", "Peru", "Brazil"}},
	"europe":        {"Europe", []string{"Spain", "France", "Germany", "Italy", "United Kingdom"}},
	"north_america": {"North America", []string{"United States", "Canada", "Mexico"}},
}

var regionTriggers = []struct {
	stem   string
	region string
}{
	{"latin", "latam"},
	{"latam", "latam"},
	{"iberoamerican", "latam"},
	{"european", "europe"},
	{"north american", "north_america"},
}

var fallbackGenres = []string{
	"rock", "pop", "metal", "jazz", "blues", "punk", "reggae", "folk",
	"electronic", "hip hop", "rap", "classical", "salsa", "cumbia", "funk", "soul",
}

var fallbackMoods = []string{
	"happy", "sad", "party", "chill", "relax", "romantic", "energetic",
	"angry", "melancholic", "nostalgic", "motivational", "calm",
}

var (
	yearRangeRe = regexp.MustCompile(`\b(19\d{2}|20\d{2})\s*(?:-|–|to|through|until)\s*(19\d{2}|20\d{2})\b`)
	yearRe      = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	decadeRe    = regexp.MustCompile(`\b(?:(19|20)(\d)0s|(\d)0s)\b`)
	numberRe    = regexp.MustCompile(`\b\d{1,4}\b`)
	bestOfRe    = regexp.MustCompile(`(?i)\b(?:best of|top (?:songs|tracks|hits) (?:of|by)|greatest hits of|songs by)\s+(.+?)(?:,|$|\d)`)
	similarRe   = regexp.MustCompile(`(?i)\b(?:similar to|like|sounds like|in the style of)\s+(.+?)(?:,|$)`)
)

var quantityWords = map[string]struct{}{
	"songs": {}, "song": {}, "tracks": {}, "track": {}, "tunes": {}, "titles": {},
	"top": {}, "best": {}, "first": {}, "playlist": {},
}

var temporalWords = map[string]struct{}{
	"year": {}, "years": {}, "decade": {}, "from": {}, "since": {}, "until": {},
	"era": {}, "in": {}, "of": {},
}

// IntentAnalyzer turns free text into a QueryIntent. The model proposes a
// reading; deterministic detection overrides the country and temporal
// dimensions and supplies the whole intent when the model fails. Analyze
// never returns an error.
type IntentAnalyzer struct {
	llm ports.InferenceService
	log *logrus.Entry
}

func NewIntentAnalyzer(llm ports.InferenceService, log *logrus.Logger) *IntentAnalyzer {
	return &IntentAnalyzer{llm: llm, log: log.WithField("component", "intent")}
}

// Analyze classifies the query. Best-effort by contract: on total model
// failure it falls back to keyword classification and minimally returns a
// genre-or-mood intent with the default limit.
func (a *IntentAnalyzer) Analyze(ctx context.Context, query string) domain.QueryIntent {
	lower := strings.ToLower(query)

	intent := domain.QueryIntent{Query: strings.TrimSpace(query), Type: domain.RequestGenreOrMood}

	guess, err := a.llm.AnalyzeIntent(ctx, query)
	if err != nil {
		a.log.WithError(err).Debug("model intent unavailable, using keyword classification")
		intent.FromFallback = true
		a.classifyKeywords(lower, &intent)
	} else {
		a.applyGuess(guess, &intent)
	}

	// Safety-critical dimensions: deterministic detection wins.
	if country, kind, ok := detectCountry(lower); ok {
		intent.Type = domain.RequestCountry
		intent.Filters.SetCountry(country, kind)
	}
	if region, ok := detectRegion(lower); ok {
		def := regionDefinitions[region]
		intent.Type = domain.RequestRegion
		intent.Region = def.name
		intent.RegionCountries = def.countries
		intent.Filters.SetRegion(def.countries)
	}
	applyTemporal(lower, &intent.Filters)

	if artist, ok := detectSimilarRequest(query); ok {
		intent.Type = domain.RequestSimilarTo
		intent.Artist = artist
	} else if artist, ok := detectArtistRequest(query); ok {
		intent.Type = domain.RequestArtist
		intent.Artist = artist
	}

	intent.Limit = resolveLimit(lower, intent)
	intent.Limit = adjustLimitForComplexity(intent)

	if intent.Genre != "" {
		intent.Filters.SetGenre(intent.Genre)
	}
	EnrichFiltersWithMood(query, &intent.Filters)

	a.log.WithFields(logrus.Fields{
		"type":    intent.Type,
		"limit":   intent.Limit,
		"filters": intent.Filters.Describe(),
	}).Info("query intent resolved")
	return intent
}

func (a *IntentAnalyzer) applyGuess(g domain.IntentGuess, intent *domain.QueryIntent) {
	switch g.Type {
	case "artist_request", string(domain.RequestArtist):
		intent.Type = domain.RequestArtist
	case "similar_to_request", string(domain.RequestSimilarTo):
		intent.Type = domain.RequestSimilarTo
	case "country_request", string(domain.RequestCountry):
		intent.Type = domain.RequestCountry
	case "region_request", string(domain.RequestRegion):
		intent.Type = domain.RequestRegion
	default:
		intent.Type = domain.RequestGenreOrMood
	}

	intent.Artist = strings.TrimSpace(g.Artist)
	intent.Album = strings.TrimSpace(g.Album)
	intent.Track = strings.TrimSpace(g.Track)
	intent.Genre = strings.TrimSpace(g.Genre)
	intent.Mood = strings.TrimSpace(g.Mood)

	// Temporal and country hints from the model are provisional; the
	// deterministic pass in Analyze overrides them when it finds its own.
	if g.Year != 0 {
		intent.Filters.SetYear(g.Year)
	} else if g.YearFrom != 0 && g.YearTo != 0 {
		intent.Filters.SetYearRange(g.YearFrom, g.YearTo)
	} else if len(g.Decades) > 0 {
		intent.Filters.SetDecades(normalizeDecades(g.Decades)...)
	}
	if g.Country != "" {
		kind := domain.CountryOrigin
		if g.CountryKind == string(domain.CountryPopularIn) {
			kind = domain.CountryPopularIn
		}
		intent.Filters.SetCountry(g.Country, kind)
	}
	if g.Limit > 0 {
		intent.Limit = g.Limit
	}
}

func (a *IntentAnalyzer) classifyKeywords(lower string, intent *domain.QueryIntent) {
	for _, g := range fallbackGenres {
		if strings.Contains(lower, g) {
			intent.Genre = g
			break
		}
	}
	for _, m := range fallbackMoods {
		if strings.Contains(lower, m) {
			intent.Mood = m
			break
		}
	}
}

func detectCountry(lower string) (string, domain.CountryKind, bool) {
	for _, kw := range countryKeywords {
		if !strings.Contains(lower, kw.stem) {
			continue
		}
		kind := domain.CountryOrigin
		for _, p := range popularInPhrases {
			if strings.Contains(lower, p) {
				kind = domain.CountryPopularIn
				break
			}
		}
		return kw.country, kind, true
	}
	return "", "", false
}

func detectRegion(lower string) (string, bool) {
	for _, t := range regionTriggers {
		if strings.Contains(lower, t.stem) {
			return t.region, true
		}
	}
	return "", false
}

func detectArtistRequest(query string) (string, bool) {
	m := bestOfRe.FindStringSubmatch(query)
	if m == nil {
		return "", false
	}
	artist := strings.TrimSpace(m[1])
	return artist, artist != ""
}

func detectSimilarRequest(query string) (string, bool) {
	m := similarRe.FindStringSubmatch(query)
	if m == nil {
		return "", false
	}
	artist := strings.TrimSpace(m[1])
	return artist, artist != ""
}

// applyTemporal installs the deterministic temporal reading with priority
// year range > single year > decades. The Filters setters keep the
// representations mutually exclusive.
func applyTemporal(lower string, f *domain.Filters) {
	if m := yearRangeRe.FindStringSubmatch(lower); m != nil {
		from, _ := strconv.Atoi(m[1])
		to, _ := strconv.Atoi(m[2])
		f.Year = 0 // deterministic range beats a model-guessed year
		f.SetYearRange(from, to)
		return
	}

	if decades := findDecades(lower); len(decades) > 0 {
		f.Year, f.YearFrom, f.YearTo = 0, 0, 0
		f.Decades = nil
		f.SetDecades(decades...)
		return
	}

	if m := yearRe.FindString(lower); m != "" {
		year, _ := strconv.Atoi(m)
		f.SetYear(year)
	}
}

func findDecades(lower string) []string {
	var out []string
	for _, m := range decadeRe.FindAllStringSubmatch(lower, -1) {
		var label string
		if m[1] != "" {
			label = m[1] + m[2] + "0s"
		} else {
			// Two-digit decades resolve into the 1900s.
			label = "19" + m[3] + "0s"
		}
		out = append(out, label)
	}
	return out
}

func normalizeDecades(in []string) []string {
	out := make([]string, 0, len(in))
	for _, d := range in {
		d = strings.ToLower(strings.TrimSpace(d))
		if found := findDecades(d); len(found) > 0 {
			out = append(out, found...)
		}
	}
	return out
}

// resolveLimit extracts the requested track count with the word-proximity
// heuristic: a number counts only when adjacent to a quantity word, and a
// bare number in the 1950 to 2030 band without quantity context is read as a
// year. Known to misclassify on odd phrasings; retained as best-effort.
func resolveLimit(lower string, intent domain.QueryIntent) int {
	def := defaultStandardLimit
	if intent.Type == domain.RequestArtist || intent.Type == domain.RequestSimilarTo {
		def = defaultArtistLimit
	}

	words := strings.Fields(lower)
	for i, w := range words {
		num := numberRe.FindString(w)
		if num == "" {
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			continue
		}

		nearQuantity := neighbourIn(words, i, quantityWords, 2)
		nearTemporal := neighbourIn(words, i, temporalWords, 2)

		// A plausible year is a count only when a quantity word sits
		// right next to it ("top 1985 songs" stays ambiguous either way).
		if n >= 1950 && n <= 2030 && !neighbourIn(words, i, quantityWords, 1) {
			continue
		}
		if !nearQuantity && nearTemporal {
			continue
		}
		if !nearQuantity {
			continue
		}

		if strings.Contains(lower, "top "+num) {
			return clamp(n, topLimitMin, topLimitMax)
		}
		return clamp(n, generalLimitMin, generalLimitMax)
	}

	if intent.Limit > 0 {
		return clamp(intent.Limit, generalLimitMin, generalLimitMax)
	}
	return def
}

func neighbourIn(words []string, i int, set map[string]struct{}, radius int) bool {
	for j := i - radius; j <= i+radius; j++ {
		if j == i || j < 0 || j >= len(words) {
			continue
		}
		w := strings.Trim(words[j], ",.!?")
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

// adjustLimitForComplexity tightens the limit when many filter dimensions
// are active: narrow requests deserve focused lists.
func adjustLimitForComplexity(intent domain.QueryIntent) int {
	complexity := 0
	if intent.Filters.HasCountry() {
		complexity++
	}
	if intent.Filters.HasTemporal() {
		complexity++
	}
	if intent.Genre != "" {
		complexity++
	}
	if intent.Mood != "" {
		complexity++
	}
	if intent.Artist != "" {
		complexity += 2
	}

	switch {
	case complexity >= 3:
		return minInt(intent.Limit, 20)
	case complexity == 2:
		return minInt(intent.Limit, 25)
	default:
		return intent.Limit
	}
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
