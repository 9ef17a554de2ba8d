// Package m3u writes extended M3U playlist files for external players.
package m3u

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/cadenzalab/cadenza/internal/core/domain"
)

const maxNameLen = 60

// Writer persists playlists as .m3u files under a fixed directory.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer { return &Writer{dir: dir} }

// Write renders the playlist and returns the path of the created file. The
// filename carries a short random fragment so regenerated lists never clobber
// earlier exports.
func (w *Writer) Write(p domain.Playlist) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("m3u: create dir: %w", err)
	}

	name := safeName(p.Name)
	if name == "" {
		name = "playlist"
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%s-%s.m3u", name, uuid.NewString()[:8]))

	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	for _, item := range p.Items {
		fmt.Fprintf(&sb, "#EXTINF:%d,%s - %s\n", item.DurationSecs, item.Artist, item.Title)
		sb.WriteString(item.FileRef)
		sb.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return "", fmt.Errorf("m3u: write %s: %w", path, err)
	}
	return path, nil
}

// safeName reduces a free-text playlist name to a filesystem-safe slug.
func safeName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			sb.WriteByte('-')
		}
		if sb.Len() >= maxNameLen {
			break
		}
	}
	return strings.Trim(sb.String(), "-")
}
