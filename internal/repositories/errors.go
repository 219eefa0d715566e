package repositories

import (
	"errors"

	"peerprep/interview/internal/apperr"
)

// AsAppError classifies a store error for callers outside the persistence
// layer. Errors that already carry a kind pass through untouched.
func AsAppError(err error, what string) error {
	if err == nil {
		return nil
	}
	var appErr *apperr.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, ErrNotFound):
		return apperr.NotFound("%s not found", what)
	case errors.Is(err, ErrStale):
		return apperr.Conflict("%s was modified concurrently", what)
	case errors.Is(err, ErrDuplicate):
		return apperr.Conflict("%s already exists", what)
	default:
		return apperr.Internal("failed to access "+what, err)
	}
}
