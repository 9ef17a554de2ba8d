package services

import (
	"strings"
	"unicode"

	"github.com/cadenzalab/cadenza/internal/core/domain"
)

// Edition and version markers stripped from titles before duplicate
// grouping. Matched token-wise after punctuation removal, so multi-word
// markers ("radio edit", "bonus track") fall out naturally.
var editionTokens = map[string]struct{}{
	"remaster":     {},
	"remastered":   {},
	"remix":        {},
	"remixed":      {},
	"live":         {},
	"version":      {},
	"explicit":     {},
	"clean":        {},
	"single":       {},
	"edit":         {},
	"original":     {},
	"demo":         {},
	"acoustic":     {},
	"instrumental": {},
	"radio":        {},
	"extended":     {},
	"deluxe":       {},
	"edition":      {},
	"expanded":     {},
	"reissue":      {},
	"bonus":        {},
	"track":        {},
	"special":      {},
	"mono":         {},
	"stereo":       {},
	"digital":      {},
	"analog":       {},
	"lossless":     {},
	"alternate":    {},
	"mix":          {},
}

// Tokens that open a featuring clause; the token and everything after it are
// dropped.
var featuringTokens = map[string]struct{}{
	"feat":      {},
	"ft":        {},
	"featuring": {},
}

const fallbackKeyLen = 200

// CanonicalTitle reduces a title to its duplicate-grouping key: bracketed
// segments gone, edition markers and featuring clauses gone, punctuation
// collapsed, lowercase. Idempotent.
func CanonicalTitle(title string) string {
	if title == "" {
		return ""
	}

	lower := strings.ToLower(title)
	flat := stripBracketedSegments(lower)
	tokens := strings.Fields(cleanSeparators(flat))

	kept := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, cut := featuringTokens[token]; cut {
			break
		}
		if _, drop := editionTokens[token]; drop {
			continue
		}
		if isYearToken(token) {
			continue
		}
		kept = append(kept, token)
	}

	return strings.Join(kept, " ")
}

// DedupeKey is the grouping key for a track: the canonical title, or a
// truncated file reference when the title canonicalizes to nothing.
func DedupeKey(t domain.Track) string {
	if key := CanonicalTitle(t.Title); key != "" {
		return key
	}
	ref := t.FileRef
	if len(ref) > fallbackKeyLen {
		ref = ref[:fallbackKeyLen]
	}
	return ref
}

// DedupeCandidates collapses near-identical recordings, keeping per group
// the higher-bitrate track, ties broken by raw popularity. Input order is
// preserved for the survivors.
func DedupeCandidates(cands []domain.Candidate) []domain.Candidate {
	best := map[string]int{} // key -> index into out
	out := make([]domain.Candidate, 0, len(cands))

	for _, c := range cands {
		key := DedupeKey(c.Track)
		i, dup := best[key]
		if !dup {
			best[key] = len(out)
			out = append(out, c)
			continue
		}
		prev := out[i]
		if c.Bitrate > prev.Bitrate ||
			(c.Bitrate == prev.Bitrate && c.RawPopularity > prev.RawPopularity) {
			out[i] = c
		}
	}
	return out
}

func stripBracketedSegments(input string) string {
	var out strings.Builder
	depth := 0
	for _, r := range input {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				out.WriteRune(r)
			}
		}
	}
	return out.String()
}

func cleanSeparators(input string) string {
	var out strings.Builder
	lastSpace := false
	for _, r := range input {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			out.WriteRune(' ')
			lastSpace = true
		}
	}
	return out.String()
}

// isYearToken drops bare four-digit years left behind by markers like
// "2009 remaster".
func isYearToken(token string) bool {
	if len(token) != 4 {
		return false
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return false
		}
	}
	return token[0] == '1' || token[0] == '2'
}
