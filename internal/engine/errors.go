package engine

import (
	"errors"
	"fmt"
)

// ErrContentNotFound rejects an interaction whose content id is unknown.
var ErrContentNotFound = errors.New("content not found")

// ValidationError rejects a malformed interaction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid interaction: %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsRejection reports whether err is a deterministic rejection of the input
// rather than an infrastructure failure.
func IsRejection(err error) bool {
	var ve *ValidationError
	return errors.Is(err, ErrContentNotFound) || errors.As(err, &ve)
}
