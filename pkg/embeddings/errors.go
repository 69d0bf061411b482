package embeddings

import (
	"errors"
	"fmt"
)

// UnavailableError indicates the embedding provider failed or its circuit
// is open. The engine never degrades to a zero vector; the whole write
// fails instead.
type UnavailableError struct {
	Provider string
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("embedding provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err is an embedding availability failure.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}
