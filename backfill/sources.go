/*
sources.go - Adapters for the two legacy storage generations

PURPOSE:
  Two generations of legacy storage feed the same reconciliation step:

  GENERATION 1 (denormalized snapshots):
    One record per habit holding a date-keyed progress map
    ("2024-03-01" -> 3). Never a first-class entity of the core; flattened
    here into per-day LegacyRecords.

  GENERATION 2 (per-day counters):
    One row per (habit, day) with a materialized progress int. Already the
    LegacyRecord shape.

  Each generation runs as its own migration with its own completion flag,
  so a deployment that migrated generation 1 years ago only re-checks
  generation 2.
*/
package backfill

import (
	"context"
	"sort"
	"time"

	"github.com/warp/progress-ledger/ledger"
)

// =============================================================================
// GENERATION 1 - Denormalized habit snapshots
// =============================================================================

// HabitSnapshot is the legacy denormalized shape: one habit, all its days.
type HabitSnapshot struct {
	HabitID        ledger.HabitID
	UserID         ledger.UserID
	ProgressByDate map[ledger.DateKey]int
	CreatedAt      time.Time
}

// SnapshotAdapter flattens habit snapshots into per-day records.
type SnapshotAdapter struct {
	Snapshots []HabitSnapshot
}

func (a SnapshotAdapter) Records(_ context.Context) ([]LegacyRecord, error) {
	var records []LegacyRecord
	for _, snap := range a.Snapshots {
		for date, progress := range snap.ProgressByDate {
			records = append(records, LegacyRecord{
				HabitID:   snap.HabitID,
				DateKey:   date,
				UserID:    snap.UserID,
				Progress:  progress,
				CreatedAt: snap.CreatedAt,
			})
		}
	}
	// Map iteration order is random; sort for stable runs and logs.
	sort.Slice(records, func(i, j int) bool {
		if records[i].HabitID != records[j].HabitID {
			return records[i].HabitID < records[j].HabitID
		}
		return records[i].DateKey.Before(records[j].DateKey)
	})
	return records, nil
}

// =============================================================================
// GENERATION 2 - Per-day counter rows
// =============================================================================

// CounterAdapter serves per-day counter rows as-is.
type CounterAdapter struct {
	Rows []LegacyRecord
}

func (a CounterAdapter) Records(_ context.Context) ([]LegacyRecord, error) {
	return append([]LegacyRecord(nil), a.Rows...), nil
}

// Migration flag names for the two generations.
const (
	FlagSnapshotMigration = "backfill:snapshot-v1"
	FlagCounterMigration  = "backfill:counter-v2"
)
