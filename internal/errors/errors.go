// Package errors provides error handling for campusgig.
//
// It re-exports github.com/cockroachdb/errors for creation, wrapping and
// inspection, and defines the domain error kinds shared by every layer.
// Storage backends, services and the HTTP surface all speak in these kinds;
// anything that is not one of them is treated as a transient infrastructure
// failure and wrapped rather than translated.
package errors

import (
	"fmt"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New   = crdb.New
	Newf  = crdb.Newf
	Wrap  = crdb.Wrap
	Wrapf = crdb.Wrapf
)

// Error inspection
var (
	Is = crdb.Is
	As = crdb.As
)

// Domain sentinels. Services return these; the HTTP layer maps them to
// status codes.
var (
	// ErrNotFound is returned when a job, profile, rating or notification
	// does not exist.
	ErrNotFound = New("not found")

	// ErrInvalidTransition is returned when a lifecycle operation is applied
	// to a job whose current status forbids it.
	ErrInvalidTransition = New("invalid status transition")

	// ErrAlreadyAssigned is returned when an assignment attempt loses the
	// race: some helper already moved the job out of open.
	ErrAlreadyAssigned = New("job already assigned")

	// ErrDuplicateRating is returned when a (job, direction) pair has
	// already been rated.
	ErrDuplicateRating = New("rating already submitted for this job")

	// ErrUnauthorized is returned when the caller is not the participant an
	// operation requires (wrong poster, wrong helper, wrong recipient).
	ErrUnauthorized = New("caller is not allowed to perform this action")

	// ErrStatusConflict is returned by storage when a conditional transition
	// matched no row because the status changed underneath it. Services map
	// it to ErrAlreadyAssigned or ErrInvalidTransition per operation.
	ErrStatusConflict = New("status changed concurrently")
)

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// NewValidationf builds a *ValidationError from a format string.
func NewValidationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return As(err, &ve)
}
