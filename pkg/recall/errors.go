package recall

import (
	"errors"

	"github.com/dan-solli/recall/pkg/embeddings"
	"github.com/dan-solli/recall/pkg/extract"
	"github.com/dan-solli/recall/pkg/store"
)

// ErrNotFound is returned for a missing entity or one owned by another
// owner; the two cases are indistinguishable to the caller.
var ErrNotFound = store.ErrNotFound

// Error type constants for classification in metrics and logs.
const (
	ErrTypeValidation = "validation"
	ErrTypeNotFound   = "not_found"
	ErrTypeEmbedding  = "embedding_unavailable"
	ErrTypeExtraction = "extraction_unavailable"
	ErrTypeUnknown    = "unknown"
)

// ClassifyError maps an engine error into the taxonomy: ValidationError
// for malformed input, NotFound for missing or cross-owner entities, and
// the two upstream-unavailability classes callers should retry with
// backoff.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case store.IsValidation(err):
		return ErrTypeValidation
	case errors.Is(err, store.ErrNotFound):
		return ErrTypeNotFound
	case embeddings.IsUnavailable(err):
		return ErrTypeEmbedding
	case extract.IsUnavailable(err):
		return ErrTypeExtraction
	default:
		return ErrTypeUnknown
	}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	return store.IsValidation(err)
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// IsUnavailable reports whether err is an upstream-capability failure the
// caller should retry with backoff.
func IsUnavailable(err error) bool {
	return embeddings.IsUnavailable(err) || extract.IsUnavailable(err)
}
