package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when a job cannot be found by job_id.
	ErrJobNotFound = errors.New("job not found")

	// ErrWorkerNotFound is returned when a heartbeat arrives for a worker
	// that was never registered.
	ErrWorkerNotFound = errors.New("worker not registered")
)

// ValidationError marks a request for an illegal state transition, such as
// cancelling an already-terminal job or retrying a job that has not failed.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NewValidationError creates a new ValidationError.
func NewValidationError(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
