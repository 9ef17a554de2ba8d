package ports

import (
	"context"

	"github.com/cadenzalab/cadenza/internal/core/domain"
)

// PlaylistRepository persists assembly results. Writes are append-only; a
// playlist is created once per successful assembly.
type PlaylistRepository interface {
	Save(ctx context.Context, p domain.Playlist) error
	GetByID(ctx context.Context, id string) (domain.Playlist, error)
	// GetByResultID resolves a playlist from the result identifier handed
	// out to clients, scoped to its owner.
	GetByResultID(ctx context.Context, resultID, owner string) (domain.Playlist, error)
	ListByOwner(ctx context.Context, owner string) ([]domain.Playlist, error)
}

// FeedbackRepository records user verdicts, append-only.
type FeedbackRepository interface {
	Save(ctx context.Context, f domain.Feedback) error
	ListByOwner(ctx context.Context, owner string) ([]domain.Feedback, error)
}
