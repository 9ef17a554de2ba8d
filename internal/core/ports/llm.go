package ports

import (
	"context"
	"errors"

	"github.com/cadenzalab/cadenza/internal/core/domain"
)

// ErrModelUnavailable marks a transport-level failure of the inference
// service (timeout, connection refused). The engine degrades the phase to
// catalog-only continuation; it is never surfaced to the caller.
var ErrModelUnavailable = errors.New("inference service unavailable")

// ErrMalformedReply marks model output that survived no recovery attempt.
// Treated as zero suggestions and zero filter hints for that phase.
var ErrMalformedReply = errors.New("malformed model reply")

// InferenceService is the generative-model collaborator. Both calls are
// best-effort: one bounded attempt, no internal retry, and every failure
// maps to one of the sentinel errors above.
type InferenceService interface {
	// AnalyzeIntent asks the model to classify a free-text request.
	AnalyzeIntent(ctx context.Context, query string) (domain.IntentGuess, error)
	// SuggestTracks asks the model for filter hints and track
	// suggestions in reply to an assembled prompt.
	SuggestTracks(ctx context.Context, prompt string) (domain.ModelReply, error)
}
