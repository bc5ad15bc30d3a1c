/*
errors.go - Centralized error types for the ledger core

PURPOSE:
  All sentinel errors in one place. Callers match with errors.Is and wrap
  with domain context. Note what is NOT here: a duplicate operation is not an
  error at all - Append reports it as the DuplicateIgnored outcome, because
  at-most-once application of a retried write is the defined behavior, not a
  failure.

ERROR CATEGORIES:
  1. Validation errors - deterministic, surfaced synchronously, never
     partially stored
  2. Store errors - transient I/O failures, retried by the calling layer
  3. Reconciliation errors - per-record failures counted by the batch

SEE ALSO:
  - validate.go: produces InvalidEventError
  - store.go: store contracts that wrap ErrStoreUnavailable
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidEvent is returned when an event fails validation: bad date
	// key format, inverted UTC bounds, occurredAt too far in the future, or
	// an unknown event type. Rejected before append, never partially stored.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrStoreUnavailable wraps transient I/O failures from the underlying
	// store. The calling layer retries with backoff; the ledger never
	// retries internally and never silently drops the write.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrEventNotFound is returned by lookups for an ID that does not exist.
	ErrEventNotFound = errors.New("event not found")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InvalidEventError carries which field failed validation and why.
type InvalidEventError struct {
	Field  string
	Reason string
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("invalid event: %s: %s", e.Field, e.Reason)
}

func (e *InvalidEventError) Unwrap() error { return ErrInvalidEvent }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidEvent)
}
