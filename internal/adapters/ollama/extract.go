package ollama

import (
	"errors"
	"regexp"
	"strings"

	"github.com/goccy/go-json"

	"github.com/cadenzalab/cadenza/internal/core/domain"
)

var errNoJSON = errors.New("ollama: no recoverable json")

// recoverJSON pulls a usable JSON document out of raw model output. Layered:
// accept valid text as-is, otherwise cut the largest balanced object or
// array, otherwise repair the common model mistakes and try again.
func recoverJSON(content string) ([]byte, error) {
	content = strings.TrimSpace(stripCodeFences(content))

	if json.Valid([]byte(content)) {
		return []byte(content), nil
	}

	if block := largestBlock(content); block != "" {
		if json.Valid([]byte(block)) {
			return []byte(block), nil
		}
		if fixed := repair(block); json.Valid([]byte(fixed)) {
			return []byte(fixed), nil
		}
	}

	if fixed := repair(content); json.Valid([]byte(fixed)) {
		return []byte(fixed), nil
	}
	return nil, errNoJSON
}

func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	return strings.ReplaceAll(s, "```", "")
}

// largestBlock returns the longest balanced {...} or [...] span, respecting
// string literals and escapes.
func largestBlock(s string) string {
	var best string
	for i := 0; i < len(s); i++ {
		open := s[i]
		if open != '{' && open != '[' {
			continue
		}
		if end := matchBlock(s, i); end > i {
			if span := s[i : end+1]; len(span) > len(best) {
				best = span
			}
			i = end
		}
	}
	return best
}

func matchBlock(s string, start int) int {
	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

var (
	bareKeyRe       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
	singleQuoteRe   = regexp.MustCompile(`'([^']*)'`)
)

// repair fixes the classic almost-JSON habits: smart and single quotes,
// Python literals, bare keys, trailing commas.
func repair(s string) string {
	replacer := strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
		": True", ": true",
		": False", ": false",
		": None", ": null",
	)
	s = replacer.Replace(s)
	s = singleQuoteRe.ReplaceAllString(s, `"$1"`)
	s = bareKeyRe.ReplaceAllString(s, `$1"$2"$3`)
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	return s
}

// stringList tolerates a JSON array, a single string, or a comma-joined
// string where a list is expected.
type stringList []string

func (l *stringList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*l = list
		return nil
	}
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		for _, part := range strings.Split(single, ",") {
			if part = strings.TrimSpace(part); part != "" {
				*l = append(*l, part)
			}
		}
		return nil
	}
	// Wrong shape entirely; drop it rather than fail the reply.
	*l = nil
	return nil
}

// looseInt tolerates a number or a numeric string.
type looseInt int

func (n *looseInt) UnmarshalJSON(b []byte) error {
	var i int
	if err := json.Unmarshal(b, &i); err == nil {
		*n = looseInt(i)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = looseInt(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		var v int
		for _, c := range s {
			if c < '0' || c > '9' {
				*n = 0
				return nil
			}
			v = v*10 + int(c-'0')
		}
		*n = looseInt(v)
	}
	return nil
}

type wireIntent struct {
	Type        string     `json:"type"`
	Artist      string     `json:"artist"`
	Track       string     `json:"track"`
	Album       string     `json:"album"`
	Genre       string     `json:"genre"`
	Mood        string     `json:"mood"`
	Decades     stringList `json:"decades"`
	Year        looseInt   `json:"year"`
	YearFrom    looseInt   `json:"year_from"`
	YearTo      looseInt   `json:"year_to"`
	Country     string     `json:"country"`
	CountryKind string     `json:"country_kind"`
	Limit       looseInt   `json:"limit"`
}

func (w wireIntent) toDomain() domain.IntentGuess {
	return domain.IntentGuess{
		Type:        w.Type,
		Artist:      w.Artist,
		Track:       w.Track,
		Album:       w.Album,
		Genre:       w.Genre,
		Mood:        w.Mood,
		Decades:     w.Decades,
		Year:        int(w.Year),
		YearFrom:    int(w.YearFrom),
		YearTo:      int(w.YearTo),
		Country:     w.Country,
		CountryKind: w.CountryKind,
		Limit:       int(w.Limit),
	}
}

type wireFilters struct {
	Genre       string     `json:"genre"`
	Decades     stringList `json:"decades"`
	Year        looseInt   `json:"year"`
	Country     string     `json:"country"`
	CountryKind string     `json:"country_kind"`
	Mood        string     `json:"mood"`
}

// wireSuggestion accepts the key variants models actually emit for the
// title/artist pair.
type wireSuggestion struct {
	Title  string
	Artist string
	Album  string
}

func (s *wireSuggestion) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	s.Title = pickString(m, "title", "song", "track", "name")
	s.Artist = pickString(m, "artist", "band", "by")
	s.Album = pickString(m, "album")
	return nil
}

func pickString(m map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		raw, ok := m[k]
		if !ok {
			continue
		}
		var v string
		if err := json.Unmarshal(raw, &v); err == nil && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

type wireReply struct {
	Filters     wireFilters      `json:"filters"`
	Suggestions []wireSuggestion `json:"suggestions"`
}

func (w wireReply) toDomain() domain.ModelReply {
	reply := domain.ModelReply{
		Filters: domain.FilterHints{
			Genre:       w.Filters.Genre,
			Decades:     w.Filters.Decades,
			Year:        int(w.Filters.Year),
			Country:     w.Filters.Country,
			CountryKind: w.Filters.CountryKind,
			Mood:        w.Filters.Mood,
		},
		Suggestions: []domain.Suggestion{},
	}
	for _, s := range w.Suggestions {
		if s.Title == "" && s.Artist == "" {
			continue
		}
		reply.Suggestions = append(reply.Suggestions, domain.Suggestion{
			Title:  s.Title,
			Artist: s.Artist,
			Album:  s.Album,
		})
	}
	return reply
}
