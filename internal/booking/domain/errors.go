package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job id does not resolve.
	ErrJobNotFound = errors.New("job not found")

	// ErrUserNotFound is returned when a user id or email does not resolve.
	ErrUserNotFound = errors.New("user not found")

	// ErrJobAlreadyTaken is returned when an accept loses the race: the job
	// is no longer pending because another translator claimed it first.
	ErrJobAlreadyTaken = errors.New("job already accepted by another translator")

	// ErrTranslatorBooked is returned when the accepting translator already
	// holds an active assignment at the job's due time.
	ErrTranslatorBooked = errors.New("translator already booked at this time")

	// ErrCancellationTooLate is returned when a translator tries to withdraw
	// less than 24 hours before the session; that path goes through phone
	// support and is not automated.
	ErrCancellationTooLate = errors.New("cancellation within 24 hours must go through phone support")
)

// ValidationError reports malformed or missing input. Field identifies the
// offending input so API callers can surface it next to the form field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Msg)
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// IsConflict reports whether err is one of the accept-race conflicts, which
// callers surface as "already taken" rather than a generic validation error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrJobAlreadyTaken) || errors.Is(err, ErrTranslatorBooked)
}
