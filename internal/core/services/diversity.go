package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cadenzalab/cadenza/internal/core/domain"
	"github.com/cadenzalab/cadenza/internal/core/ports"
)

const (
	maxPerArtist      = 3
	maxPerArtistAlbum = 2
)

// DiversityEnforcer applies per-artist and per-album caps in a single greedy
// pass, then works a fallback ladder when the caps leave the list short:
// first the remaining pre-cap pool, last a filter-free emergency scan.
type DiversityEnforcer struct {
	catalog ports.TrackCatalog
	log     *logrus.Entry
}

func NewDiversityEnforcer(catalog ports.TrackCatalog, log *logrus.Logger) *DiversityEnforcer {
	return &DiversityEnforcer{catalog: catalog, log: log.WithField("component", "diversity")}
}

// Enforce returns at most want candidates honoring the caps, plus whether the
// emergency fallback ran. pool is the full pre-cap candidate list in rank
// order.
func (d *DiversityEnforcer) Enforce(ctx context.Context, pool []domain.Candidate, intent domain.QueryIntent, want int) ([]domain.Candidate, bool, error) {
	artistCount := map[string]int{}
	albumCount := map[string]int{}
	admitted := map[string]bool{}

	var out []domain.Candidate
	for _, c := range pool {
		if len(out) >= want {
			break
		}
		ak := strings.ToLower(c.Artist)
		bk := ak + "\x00" + strings.ToLower(c.Album)
		if artistCount[ak] >= maxPerArtist || albumCount[bk] >= maxPerArtistAlbum {
			continue
		}
		artistCount[ak]++
		albumCount[bk]++
		admitted[c.FileRef] = true
		out = append(out, c)
	}

	if len(out) >= want {
		return out, false, nil
	}

	// Flexible fallback: refill from the skipped remainder, preferring
	// artists not yet on the list, then anything left.
	for pass := 0; pass < 2 && len(out) < want; pass++ {
		for _, c := range pool {
			if len(out) >= want {
				break
			}
			if admitted[c.FileRef] {
				continue
			}
			ak := strings.ToLower(c.Artist)
			if pass == 0 && artistCount[ak] > 0 {
				continue
			}
			artistCount[ak]++
			admitted[c.FileRef] = true
			out = append(out, c)
		}
	}

	if len(out) >= want {
		return out, false, nil
	}

	// Emergency: the caps plus filters starved the list. Ignore every
	// predicate and top up from keyword matches, then raw popularity.
	d.log.WithFields(logrus.Fields{"have": len(out), "want": want}).Warn("emergency fallback engaged")

	extra, err := d.emergency(ctx, intent, admitted, want-len(out))
	if err != nil {
		return nil, false, err
	}
	out = append(out, extra...)
	return out, true, nil
}

func (d *DiversityEnforcer) emergency(ctx context.Context, intent domain.QueryIntent, admitted map[string]bool, missing int) ([]domain.Candidate, error) {
	var out []domain.Candidate

	words := keywordTokens(intent.Query)
	if len(words) > 0 {
		tracks, err := d.catalog.SearchKeywords(ctx, words, missing*2)
		if err != nil {
			return nil, err
		}
		out = admitEmergency(out, tracks, admitted, missing)
	}

	if len(out) < missing {
		tracks, err := d.catalog.TopTracks(ctx, missing*3)
		if err != nil {
			return nil, err
		}
		out = admitEmergency(out, tracks, admitted, missing)
	}
	return out, nil
}

func admitEmergency(out []domain.Candidate, tracks []domain.Track, admitted map[string]bool, missing int) []domain.Candidate {
	for _, t := range tracks {
		if len(out) >= missing {
			break
		}
		if t.FileRef == "" || admitted[t.FileRef] {
			continue
		}
		admitted[t.FileRef] = true
		out = append(out, domain.Candidate{Track: t})
	}
	return out
}
