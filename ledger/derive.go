/*
derive.go - Progress derivation fold

PURPOSE:
  Pure functions that fold an event set for a (habit, day, user) scope into
  a progress total and completion flag. This is the only way user-visible
  daily state is produced - there is no stored counter to drift out of sync
  with the log.

WHY A FOLD?
  Every event type, including SET and SYSTEM_RESET, is additive once
  appended (the write-time subtraction for SET happens at the caller).
  Addition commutes, so any permutation of the same event set derives the
  same total; ordering only affects display, via the deterministic
  CreatedAt-then-ID tie-break.

SEE ALSO:
  - types.go: event types and their delta semantics
  - streak package: consumes derived completion across days
*/
package ledger

import "sort"

// =============================================================================
// DERIVED DAILY PROGRESS
// =============================================================================

// DailyProgress is the computed-on-read state of one habit on one day.
type DailyProgress struct {
	Key       DayKey
	Total     int
	Completed bool
	// Events that contributed, in derivation order. Soft-deleted events are
	// excluded.
	Events []Event
}

// SortEvents orders events by CreatedAt ascending, ties broken by ID, in
// place. This is the canonical derivation order.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].ID < events[j].ID
		}
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
}

// DerivedProgress folds ProgressDelta over all non-deleted events. The
// bookkeeping fields (synced, versions, remote provenance) never influence
// the total.
func DerivedProgress(events []Event) int {
	total := 0
	for _, e := range events {
		if e.Deleted() {
			continue
		}
		total += e.ProgressDelta
	}
	return total
}

// Derive computes the full daily progress view for a goal-based habit.
// Completion is total >= goal, recomputed here on every read.
func Derive(key DayKey, events []Event, goal int) DailyProgress {
	live := make([]Event, 0, len(events))
	for _, e := range events {
		if !e.Deleted() {
			live = append(live, e)
		}
	}
	SortEvents(live)

	total := DerivedProgress(live)
	return DailyProgress{
		Key:       key,
		Total:     total,
		Completed: goal > 0 && total >= goal,
		Events:    live,
	}
}
