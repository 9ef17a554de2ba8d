package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates a missing persisted entity.
var ErrNotFound = errors.New("domain: not found")

// ErrValidation flags a client error that must be rejected before any phase
// runs (empty query, out-of-range explicit limit).
var ErrValidation = errors.New("domain: invalid request")

// ValidationError carries the rejected field alongside ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("domain: invalid %s: %s", e.Field, e.Reason)
}

func (e ValidationError) Is(target error) bool {
	return target == ErrValidation
}
