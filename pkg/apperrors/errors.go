package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")

	// ErrAlreadyProcessed is returned when a suggestion has already left the PENDING state.
	ErrAlreadyProcessed = fmt.Errorf("suggestion already processed: %w", ErrConflict)

	// ErrInvalidKeepID is returned when the idea to keep is not part of the suggestion pair.
	ErrInvalidKeepID = fmt.Errorf("keep idea is not part of the suggestion: %w", ErrValidation)

	// ErrIdeaMerged is returned when an edit targets an idea that was merged away.
	ErrIdeaMerged = fmt.Errorf("idea has been merged: %w", ErrConflict)

	ErrNoTenantScope = errors.New("no tenant scope in context")
)
