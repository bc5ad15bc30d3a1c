/*
ledger.go - Append path and read-side derivation over an EventStore

PURPOSE:
  Ledger is the service object components hold instead of touching the store
  directly. It validates before append, allocates sequence numbers through
  the injected allocator, derives deterministic IDs, and exposes the derived
  daily progress view.

WRITE FLOW:
  1. Caller describes the change (Change struct)
  2. Ledger allocates the next (device, day) sequence number
  3. Ledger derives event ID + operation ID, stamps the UTC day window
  4. Validate, then Append - a retried append returns DuplicateIgnored

CORRECTIONS:
  Mistakes are never edited. A wrong increment is compensated by a decrement
  or the day is zeroed with a system reset; an entry recorded in error is
  soft-deleted, which is itself a new fact filtered at read time.

SEE ALSO:
  - derive.go: the fold this ledger exposes on the read side
  - store.go: EventStore and SequenceAllocator contracts
*/
package ledger

import (
	"context"
	"fmt"
	"time"
)

// =============================================================================
// LEDGER - Service wrapper over the event store
// =============================================================================

// Ledger validates and appends events and serves derived reads.
type Ledger struct {
	store EventStore
	seq   SequenceAllocator
	clock func() time.Time
}

// NewLedger builds a ledger over the given store and sequence allocator.
func NewLedger(store EventStore, seq SequenceAllocator) *Ledger {
	return &Ledger{store: store, seq: seq, clock: time.Now}
}

// WithClock overrides the wall clock, for tests.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// Store exposes the underlying event store to collaborators that need the
// raw contract (backfill reconciler, replication).
func (l *Ledger) Store() EventStore { return l.store }

// =============================================================================
// CHANGE - Caller's description of a progress change
// =============================================================================

// Change describes a user-intent progress change before identity derivation.
type Change struct {
	HabitID  HabitID
	UserID   UserID
	DeviceID DeviceID
	DateKey  DateKey
	Type     EventType
	Delta    int

	// ClientMillis and Nonce feed operation ID derivation. A retry MUST
	// reuse both so the operation collapses to the same record.
	ClientMillis int64
	Nonce        string

	// OccurredAt defaults to the current clock when zero.
	OccurredAt time.Time
	Timezone   *time.Location

	Note     string
	Metadata map[string]string
}

// =============================================================================
// APPEND PATH
// =============================================================================

// Record turns a Change into a validated event and appends it.
// Returns the appended (or pre-existing duplicate) event and the outcome.
func (l *Ledger) Record(ctx context.Context, c Change) (Event, AppendOutcome, error) {
	loc := c.Timezone
	if loc == nil {
		loc = time.UTC
	}

	seq, err := l.seq.NextSequence(ctx, c.DeviceID, c.DateKey)
	if err != nil {
		return Event{}, 0, fmt.Errorf("allocate sequence: %w", err)
	}

	dayStart, dayEnd, err := c.DateKey.DayWindow(loc)
	if err != nil {
		return Event{}, 0, &InvalidEventError{Field: "dateKey", Reason: err.Error()}
	}

	now := l.clock()
	occurred := c.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}

	e := Event{
		ID:            MakeEventID(c.HabitID, c.DateKey, c.DeviceID, seq),
		OperationID:   MakeOperationID(c.DeviceID, c.ClientMillis, c.Nonce),
		HabitID:       c.HabitID,
		UserID:        c.UserID,
		DeviceID:      c.DeviceID,
		DateKey:       c.DateKey,
		Type:          c.Type,
		ProgressDelta: c.Delta,
		CreatedAt:     now,
		OccurredAt:    occurred,
		UTCDayStart:   dayStart,
		UTCDayEnd:     dayEnd,
		Timezone:      loc.String(),
		Note:          c.Note,
		Metadata:      c.Metadata,
	}

	outcome, err := l.Append(ctx, e)
	if err != nil {
		return Event{}, 0, err
	}
	if outcome == DuplicateIgnored {
		// A retried append burned a fresh sequence number, so the event
		// built above is not the stored record. Echo the canonical one.
		if stored, lookupErr := l.store.QueryByOperationID(ctx, e.OperationID); lookupErr == nil {
			e = *stored
		}
	}
	return e, outcome, nil
}

// Append validates a fully-formed event and writes it with insert-if-absent
// semantics. Validation errors surface synchronously; a duplicate is the
// DuplicateIgnored outcome, never an error.
func (l *Ledger) Append(ctx context.Context, e Event) (AppendOutcome, error) {
	if err := Validate(e, l.clock()); err != nil {
		return 0, err
	}
	return l.store.Append(ctx, e)
}

// RecordSet appends a SET event for newTotal. It reads the current derived
// total to compute the delta, which is inherently racy under concurrent
// writers computing from stale reads - call this from a single-writer
// context per (habit, day).
func (l *Ledger) RecordSet(ctx context.Context, c Change, newTotal int) (Event, AppendOutcome, error) {
	current, err := l.derivedTotal(ctx, DayKey{HabitID: c.HabitID, DateKey: c.DateKey, UserID: c.UserID})
	if err != nil {
		return Event{}, 0, err
	}
	c.Type = EventSet
	c.Delta = newTotal - current
	return l.Record(ctx, c)
}

// RecordReset appends a SYSTEM_RESET event zeroing the day's derived total.
func (l *Ledger) RecordReset(ctx context.Context, c Change) (Event, AppendOutcome, error) {
	current, err := l.derivedTotal(ctx, DayKey{HabitID: c.HabitID, DateKey: c.DateKey, UserID: c.UserID})
	if err != nil {
		return Event{}, 0, err
	}
	c.Type = EventSystemReset
	c.Delta = -current
	return l.Record(ctx, c)
}

// SoftDelete marks an event deleted as of now.
func (l *Ledger) SoftDelete(ctx context.Context, id EventID) error {
	return l.store.SoftDelete(ctx, id, l.clock())
}

// =============================================================================
// READ PATH
// =============================================================================

// DailyProgress derives the progress view for one (habit, day, user) scope
// against the habit's goal.
func (l *Ledger) DailyProgress(ctx context.Context, key DayKey, goal int) (DailyProgress, error) {
	events, err := l.store.Query(ctx, key, QueryOptions{})
	if err != nil {
		return DailyProgress{}, err
	}
	return Derive(key, events, goal), nil
}

func (l *Ledger) derivedTotal(ctx context.Context, key DayKey) (int, error) {
	events, err := l.store.Query(ctx, key, QueryOptions{})
	if err != nil {
		return 0, err
	}
	return DerivedProgress(events), nil
}
