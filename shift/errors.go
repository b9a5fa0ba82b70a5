/*
errors.go - Centralized error types for the shift core

PURPOSE:
  All error types in one place. Callers branch with errors.Is/As; the
  API layer maps these to HTTP statuses.

ERROR CATEGORIES:
  1. Lifecycle errors  - wrong state for the requested transition
  2. Validation errors - malformed input, rejected before any mutation
  3. Storage errors    - transient infra failures, safe to retry
  4. Reconciliation    - post-close follow-up failures (warnings, the
     close itself stands)

USAGE:
    if errors.Is(err, shift.ErrAlreadyClosed) {
        // expected outcome of a retry; render "already closed"
    }

SEE ALSO:
  - lifecycle.go: Produces these errors
  - api/handlers.go: Maps them to HTTP responses
*/
package shift

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAlreadyClosed is returned when a close (or open) hits a shift
	// that is already closed. This is the expected outcome of losing
	// the close race or retrying a committed close, not a failure.
	ErrAlreadyClosed = errors.New("shift already closed")

	// ErrShiftNotFound is returned when no shift exists for the
	// worker-day and one is required.
	ErrShiftNotFound = errors.New("shift not found")

	// ErrValidation is returned for malformed input, before any mutation.
	ErrValidation = errors.New("validation failed")

	// ErrStorage wraps transient store failures. The whole operation is
	// safe to retry from the start.
	ErrStorage = errors.New("storage failure")

	// ErrPartialReconciliation marks a close that committed financially
	// but left some appointment statuses unfinalized.
	ErrPartialReconciliation = errors.New("partial reconciliation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which part of the input was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// StorageError wraps a store failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return ErrStorage }

// MarkFailure records one appointment whose status update failed during
// reconciliation.
type MarkFailure struct {
	AppointmentID AppointmentID
	Status        AppointmentStatus
	Err           error
}

// PartialReconciliationError collects mark failures from one
// reconciliation run. The shift close it followed is still valid.
type PartialReconciliationError struct {
	WorkerID WorkerID
	Day      Day
	Failures []MarkFailure
}

func (e *PartialReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation for %s on %s: %d appointment update(s) failed",
		e.WorkerID, e.Day, len(e.Failures))
}

func (e *PartialReconciliationError) Unwrap() error { return ErrPartialReconciliation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if re-running the whole operation might succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsClientError returns true if the error is due to the caller's input
// or an expected state conflict.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrAlreadyClosed)
}

// IsNotFound returns true if the error indicates a missing shift.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrShiftNotFound)
}
