/*
Package backfill reconciles legacy materialized snapshots into the event log.

PURPOSE:
  Earlier storage generations kept only a per-(habit, day) progress counter
  with no event history. This package synthesizes the missing events exactly
  once, without double-crediting progress that real events already account
  for. After a successful run the ledger is the complete source of truth for
  the migrated history.

IDEMPOTENCY, TWICE OVER:
  1. A record is skipped when the derived progress of existing events
     already meets or exceeds the legacy value.
  2. The synthetic event's identity is derived from (migration, habitID,
     dateKey) - no time component - so a rerun of one migration produces
     the same ID and the store discards it as a duplicate, while a later
     generation topping up the same day derives its own identity.
  The persisted completion flag is only a fast-path skip; correctness never
  depends on it.

FAILURE POLICY:
  Per-record failures are logged and counted but never abort the batch. The
  reconciler is re-runnable to completion: resumption after a crash simply
  reprocesses from the start, which is correct and cheap because every step
  is idempotent. Cancellation stops issuing further appends and leaves
  already-appended events intact.

SEE ALSO:
  - sources.go: adapters for the two legacy storage generations
  - ledger/identity.go: MakeBackfillOperationID
*/
package backfill

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/warp/progress-ledger/ledger"
)

// =============================================================================
// LEGACY RECORD - Read-only view of a materialized snapshot
// =============================================================================

// LegacyRecord is one per-(habit, day) progress counter from a legacy store.
type LegacyRecord struct {
	HabitID   ledger.HabitID
	DateKey   ledger.DateKey
	UserID    ledger.UserID
	Progress  int
	CreatedAt time.Time
}

// SnapshotSource streams legacy records. Read-only; the reconciler never
// writes back to legacy storage.
type SnapshotSource interface {
	Records(ctx context.Context) ([]LegacyRecord, error)
}

// =============================================================================
// RESULT
// =============================================================================

// Result counts what one run did. The run is only reported complete when
// every record was re-checked and found either backfilled or already
// satisfied (Failed == 0).
type Result struct {
	Migrated int
	Skipped  int
	Failed   int
}

// Complete reports whether the completion criterion holds.
func (r Result) Complete() bool { return r.Failed == 0 }

func (r Result) String() string {
	return fmt.Sprintf("migrated=%d skipped=%d failed=%d", r.Migrated, r.Skipped, r.Failed)
}

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler synthesizes missing BACKFILL events from a legacy source.
type Reconciler struct {
	store  ledger.EventStore
	source SnapshotSource
	flags  ledger.FlagStore

	// FlagName is the one-time completion flag for this migration.
	FlagName string

	logger *log.Logger
	clock  func() time.Time
}

// NewReconciler wires a reconciler for one legacy source. flagName
// identifies the migration (e.g. "backfill:snapshot-v1").
func NewReconciler(store ledger.EventStore, source SnapshotSource, flags ledger.FlagStore, flagName string, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{
		store:    store,
		source:   source,
		flags:    flags,
		FlagName: flagName,
		logger:   logger,
		clock:    time.Now,
	}
}

// WithClock overrides the wall clock, for tests.
func (r *Reconciler) WithClock(clock func() time.Time) *Reconciler {
	r.clock = clock
	return r
}

// Run processes every legacy record once. Safe to call any number of times.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	var result Result

	done, err := r.flags.IsSet(ctx, r.FlagName)
	if err != nil {
		return result, fmt.Errorf("read completion flag %q: %w", r.FlagName, err)
	}
	if done {
		return result, nil
	}

	records, err := r.source.Records(ctx)
	if err != nil {
		return result, fmt.Errorf("load legacy records: %w", err)
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			// Cooperative cancellation: stop issuing appends, keep what
			// landed. The next run reprocesses from the start.
			return result, err
		}

		outcome, err := r.reconcileRecord(ctx, rec)
		if err != nil {
			result.Failed++
			r.logger.Printf("backfill %s: habit=%s date=%s: %v", r.FlagName, rec.HabitID, rec.DateKey, err)
			continue
		}
		if outcome == recordMigrated {
			result.Migrated++
		} else {
			result.Skipped++
		}
	}

	if result.Complete() {
		if err := r.flags.Set(ctx, r.FlagName); err != nil {
			// The flag is a fast path only; a failed write just means the
			// next run re-checks every record.
			r.logger.Printf("backfill %s: set completion flag: %v", r.FlagName, err)
		}
	}
	return result, nil
}

type recordOutcome int

const (
	recordSkipped recordOutcome = iota
	recordMigrated
)

func (r *Reconciler) reconcileRecord(ctx context.Context, rec LegacyRecord) (recordOutcome, error) {
	if rec.Progress <= 0 {
		return recordSkipped, nil
	}

	key := ledger.DayKey{HabitID: rec.HabitID, DateKey: rec.DateKey, UserID: rec.UserID}
	events, err := r.store.Query(ctx, key, ledger.QueryOptions{})
	if err != nil {
		return 0, fmt.Errorf("query existing events: %w", err)
	}

	calculated := ledger.DerivedProgress(events)
	if rec.Progress <= calculated {
		// The ledger already accounts for (or exceeds) the legacy value.
		return recordSkipped, nil
	}

	dayStart, dayEnd, err := rec.DateKey.DayWindow(time.UTC)
	if err != nil {
		return 0, fmt.Errorf("day window: %w", err)
	}

	occurredAt := rec.CreatedAt
	if occurredAt.IsZero() {
		occurredAt = dayStart
	}

	e := ledger.Event{
		ID:            ledger.MakeBackfillEventID(r.FlagName, rec.HabitID, rec.DateKey),
		OperationID:   ledger.MakeBackfillOperationID(r.FlagName, rec.HabitID, rec.DateKey),
		HabitID:       rec.HabitID,
		UserID:        rec.UserID,
		DeviceID:      ledger.BackfillDeviceID,
		DateKey:       rec.DateKey,
		Type:          ledger.EventBackfill,
		ProgressDelta: rec.Progress - calculated,
		CreatedAt:     r.clock(),
		// OccurredAt keeps the legacy record's original creation time so
		// historical ordering survives for audit.
		OccurredAt:  occurredAt,
		UTCDayStart: dayStart,
		UTCDayEnd:   dayEnd,
		Timezone:    "UTC",
		// A backfill event is a local reconciliation artifact. Marking it
		// synced keeps it out of the outbox: it must never be re-pushed as
		// new user activity to a replica that may already hold the
		// equivalent historical state.
		Synced: true,
	}

	outcome, err := r.store.Append(ctx, e)
	if err != nil {
		return 0, fmt.Errorf("append backfill event: %w", err)
	}
	if outcome == ledger.DuplicateIgnored {
		return recordSkipped, nil
	}
	return recordMigrated, nil
}
