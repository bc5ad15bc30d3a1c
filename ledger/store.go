/*
store.go - Persistence contracts for the event ledger

PURPOSE:
  Defines the interface between the ledger core and the storage engine. The
  store is append-mostly: the only mutations after append are the sync
  bookkeeping fields and the soft-delete timestamp. Different
  implementations can use SQLite or in-memory storage; the persisted layout
  is opaque to the core as long as every Event field round-trips and the
  uniqueness constraints hold.

INSERT-IF-ABSENT:
  Append enforces uniqueness on both the event ID and the operation ID. A
  second append with either key already present is not an error - it returns
  DuplicateIgnored and leaves the stored record untouched. This is what
  makes retransmission from uncoordinated devices safe.

CONCURRENCY:
  Appends are atomic per event; readers see the whole record or none of it.
  The store provides its own internal serialization for duplicate-key
  detection. No cross-event transaction is required because derivation is a
  pure fold.

SEE ALSO:
  - store/memory.go: in-memory implementation for tests
  - store/sqlite: production implementation
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// APPEND OUTCOME
// =============================================================================

// AppendOutcome reports what an Append did.
type AppendOutcome int

const (
	// Inserted means the event was persisted as a new record.
	Inserted AppendOutcome = iota

	// DuplicateIgnored means a record with the same ID or operation ID
	// already existed and the append was a no-op. This is the defined
	// idempotent outcome for retried writes, not an error.
	DuplicateIgnored
)

func (o AppendOutcome) String() string {
	if o == DuplicateIgnored {
		return "duplicate_ignored"
	}
	return "inserted"
}

// =============================================================================
// EVENT STORE - Append-only persistence
// =============================================================================

// QueryOptions tunes read queries. The zero value excludes soft-deleted
// records, which is what every derivation path wants.
type QueryOptions struct {
	IncludeDeleted bool
}

// EventStore persists events. Append-only apart from the explicitly allowed
// bookkeeping mutations (MarkSynced, SoftDelete).
type EventStore interface {
	// Append persists an event with insert-if-absent semantics keyed by ID
	// and separately by OperationID.
	Append(ctx context.Context, e Event) (AppendOutcome, error)

	// Query returns all events for one (habit, day, user) scope, ordered by
	// CreatedAt ascending with ties broken by ID.
	Query(ctx context.Context, key DayKey, opts QueryOptions) ([]Event, error)

	// QueryByOperationID returns the event for an operation ID, or
	// ErrEventNotFound.
	QueryByOperationID(ctx context.Context, opID OperationID) (*Event, error)

	// QueryUnsynced returns non-deleted local events not yet confirmed
	// remotely durable, oldest first.
	QueryUnsynced(ctx context.Context) ([]Event, error)

	// QueryDateRange returns a user's events with start <= DateKey <= end.
	QueryDateRange(ctx context.Context, userID UserID, start, end DateKey, opts QueryOptions) ([]Event, error)

	// MarkSynced records remote durability for a locally-created event:
	// sets synced, stamps lastSyncedAt, and bumps syncVersion.
	MarkSynced(ctx context.Context, id EventID, at time.Time) error

	// SoftDelete stamps DeletedAt. The record remains for audit; derivation
	// skips it from then on.
	SoftDelete(ctx context.Context, id EventID, at time.Time) error
}

// =============================================================================
// COLLABORATOR CONTRACTS
// =============================================================================

// SequenceAllocator hands out per-(device, day) monotonic sequence numbers
// for event ID derivation. Constructor-injected, never a global.
type SequenceAllocator interface {
	NextSequence(ctx context.Context, deviceID DeviceID, dateKey DateKey) (int64, error)
}

// FlagStore persists one-time completion flags for backfill migrations.
// The flag is a fast-path skip only; correctness comes from idempotent
// reconciliation, not from the flag.
type FlagStore interface {
	IsSet(ctx context.Context, name string) (bool, error)
	Set(ctx context.Context, name string) error
}
