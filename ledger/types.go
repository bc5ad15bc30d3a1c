/*
Package ledger provides the core append-only progress ledger.

PURPOSE:
  This package contains the event record model, the deterministic identity
  scheme, and the derivation engine for a per-habit, per-day progress
  tracking system. The event log is the only source of truth: daily totals,
  completion flags, and streaks are always computed by replaying events,
  never read from a stored counter that can drift.

KEY CONCEPTS IN THIS FILE (types.go):
  - Event: An immutable ledger entry recording a progress change
  - EventType: What kind of change (increment, set, reset, backfill, ...)
  - DateKey: The logical calendar day an event applies to (yyyy-MM-dd)
  - HabitID/UserID/DeviceID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Events are never modified after append, except the sync
     bookkeeping fields and the soft-delete timestamp
  2. Idempotency: Deterministic IDs make retried appends collapse to the
     same record (see identity.go)
  3. Derivation: Completion is a threshold test recomputed on every read,
     never a cached flag on the event
  4. Provenance: Every event carries device, user, and timezone context
     for multi-device conflict diagnostics

SEE ALSO:
  - identity.go: Deterministic event and operation IDs
  - derive.go: Progress derivation fold
  - store.go: Persistence contracts
*/
package ledger

import (
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EventID string
type OperationID string
type HabitID string
type UserID string
type DeviceID string

// DateKey identifies the logical calendar day an event applies to, in the
// user's local time at creation. Format: yyyy-MM-dd.
type DateKey string

const dateKeyLayout = "2006-01-02"

// NewDateKey builds a DateKey from a time in the given location.
func NewDateKey(t time.Time, loc *time.Location) DateKey {
	return DateKey(t.In(loc).Format(dateKeyLayout))
}

// Parse returns the midnight instant of the date key in loc.
func (d DateKey) Parse(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateKeyLayout, string(d), loc)
}

// Valid reports whether the key is a well-formed yyyy-MM-dd date.
func (d DateKey) Valid() bool {
	_, err := time.Parse(dateKeyLayout, string(d))
	return err == nil
}

// Next returns the following calendar day.
func (d DateKey) Next() DateKey {
	t, err := time.Parse(dateKeyLayout, string(d))
	if err != nil {
		return d
	}
	return DateKey(t.AddDate(0, 0, 1).Format(dateKeyLayout))
}

// Before reports whether d sorts before other. Lexicographic order matches
// chronological order for well-formed keys.
func (d DateKey) Before(other DateKey) bool { return string(d) < string(other) }

func (d DateKey) String() string { return string(d) }

// DayWindow returns the UTC instants covering the date key in loc.
// The window is recorded on the event at creation time so later timezone or
// DST changes cannot reclassify historical events.
func (d DateKey) DayWindow(loc *time.Location) (start, end time.Time, err error) {
	local, err := d.Parse(loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return local.UTC(), local.AddDate(0, 0, 1).UTC(), nil
}

// =============================================================================
// EVENT TYPE
// =============================================================================

type EventType string

const (
	// EventIncrement and EventDecrement are additive deltas; the sign of
	// ProgressDelta encodes direction.
	EventIncrement EventType = "increment"
	EventDecrement EventType = "decrement"

	// EventSet carries "new total minus previously-derived total" as its
	// delta. The write-time subtraction is the caller's responsibility and
	// is racy under concurrent writers; restrict SET to a single-writer
	// context. Once appended it behaves additively like any other event.
	EventSet EventType = "set"

	// EventToggleComplete carries the delta needed to cross or uncross the
	// goal threshold, precomputed by the caller.
	EventToggleComplete EventType = "toggle_complete"

	// EventSystemReset carries a negative delta equal to the derived total
	// at write time, zeroing the day.
	EventSystemReset EventType = "system_reset"

	// EventBulkAdjust and EventBackfill are reserved for the backfill
	// reconciler and never originate from user actions.
	EventBulkAdjust EventType = "bulk_adjust"
	EventBackfill   EventType = "backfill"
)

// Known reports whether t is one of the defined variants.
func (t EventType) Known() bool {
	switch t {
	case EventIncrement, EventDecrement, EventSet, EventToggleComplete,
		EventSystemReset, EventBulkAdjust, EventBackfill:
		return true
	}
	return false
}

// =============================================================================
// EVENT - Immutable unit of the ledger
// =============================================================================

// Event is an append-only fact about a progress change for one habit on one
// logical day.
//
// INVARIANTS:
//   - ID and OperationID are each globally unique within the store
//   - UTCDayEnd > UTCDayStart
//   - OccurredAt is never in the future beyond a small clock-skew tolerance
//   - Never mutated after append, except Synced/LastSyncedAt/SyncVersion
//     (sync bookkeeping) and DeletedAt (soft delete)
type Event struct {
	ID          EventID
	OperationID OperationID

	HabitID       HabitID
	UserID        UserID
	DeviceID      DeviceID
	DateKey       DateKey
	Type          EventType
	ProgressDelta int

	// CreatedAt is the client record time; OccurredAt is the user-intent
	// time, used for audit ordering and backfill.
	CreatedAt  time.Time
	OccurredAt time.Time

	// UTC window of DateKey in the device's timezone at creation time.
	// Recorded, not recomputed.
	UTCDayStart time.Time
	UTCDayEnd   time.Time

	Timezone string

	// Sync bookkeeping. The only fields a transport collaborator may update.
	Synced       bool
	LastSyncedAt *time.Time
	SyncVersion  int64
	IsRemote     bool

	// DeletedAt marks a soft delete. A deletion is a new fact, never a
	// physical removal; derivation skips deleted events at read time.
	DeletedAt *time.Time

	Note     string
	Metadata map[string]string
}

// Deleted reports whether the event has been soft-deleted.
func (e Event) Deleted() bool { return e.DeletedAt != nil }

// =============================================================================
// DAY KEY - Query scope for derivation
// =============================================================================

// DayKey scopes a derivation query to one habit on one logical day for one
// user. Events from any number of devices may share a DayKey.
type DayKey struct {
	HabitID HabitID
	DateKey DateKey
	UserID  UserID
}

// Key returns the event's day scope.
func (e Event) Key() DayKey {
	return DayKey{HabitID: e.HabitID, DateKey: e.DateKey, UserID: e.UserID}
}
