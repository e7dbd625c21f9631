package lifecycle

import (
	"errors"
	"fmt"
)

// Sentinel errors for the transition preconditions. Handlers map these onto
// the three user-facing buckets: not authorized, invalid input, and
// transient failure.
var (
	ErrUnauthorized = errors.New("not authorized")
	ErrNotFound     = errors.New("not found")

	ErrConflict = errors.New("conflict")

	ErrJobNotOpen           = fmt.Errorf("%w: job is not open", ErrConflict)
	ErrDuplicateApplication = fmt.Errorf("%w: an application is already pending", ErrConflict)
	ErrJobAlreadyAssigned   = fmt.Errorf("%w: job already has an assignment", ErrConflict)
	ErrNotPending           = fmt.Errorf("%w: application is not pending", ErrConflict)
	ErrNotInProgress        = fmt.Errorf("%w: assignment is not in progress", ErrConflict)
	ErrNotCompleted         = fmt.Errorf("%w: assignment is not completed", ErrConflict)
	ErrAlreadyPaid          = fmt.Errorf("%w: payment already completed", ErrConflict)
	ErrAlreadyRated         = fmt.Errorf("%w: rating already submitted", ErrConflict)
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// storeErr wraps backing-store failures so callers can report them as
// transient and retryable.
func storeErr(op string, err error) error {
	return fmt.Errorf("store %s: %w", op, err)
}
