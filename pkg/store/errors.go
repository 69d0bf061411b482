package store

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that no entity exists for the given ID within the
// caller's owner scope. The same error is returned whether the ID is absent
// or belongs to another owner, so existence is never leaked across owners.
var ErrNotFound = errors.New("not found")

// ValidationError indicates malformed caller input, rejected before any
// persistence: a wrong-dimension embedding, an invalid enum value, a
// self-loop edge, or an out-of-range score or weight.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func newValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// validateEmbedding checks that the vector has the expected dimension.
// A nil expected dimension check (dim <= 0) accepts any non-empty vector.
func validateEmbedding(field string, embedding []float32, dim int) error {
	if len(embedding) == 0 {
		return newValidationError(field, "embedding is required")
	}
	if dim > 0 && len(embedding) != dim {
		return newValidationError(field, "embedding dimension %d does not match store dimension %d", len(embedding), dim)
	}
	return nil
}
