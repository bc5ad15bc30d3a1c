package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/progress-ledger/backfill"
	"github.com/warp/progress-ledger/ledger"
	"github.com/warp/progress-ledger/store/sqlite"
	"github.com/warp/progress-ledger/streak"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func fullEvent() ledger.Event {
	createdAt := time.Date(2024, time.March, 1, 8, 30, 0, 123456000, time.UTC)
	syncedAt := createdAt.Add(time.Hour)
	return ledger.Event{
		ID:            "evt-full",
		OperationID:   "op-full",
		HabitID:       "habit-water",
		UserID:        "user-1",
		DeviceID:      "device-1",
		DateKey:       "2024-03-01",
		Type:          ledger.EventIncrement,
		ProgressDelta: 2,
		CreatedAt:     createdAt,
		OccurredAt:    createdAt.Add(-time.Minute),
		UTCDayStart:   time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		UTCDayEnd:     time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC),
		Timezone:      "Asia/Tokyo",
		Synced:        true,
		LastSyncedAt:  &syncedAt,
		SyncVersion:   2,
		IsRemote:      true,
		Note:          "after lunch",
		Metadata:      map[string]string{"source": "widget"},
	}
}

func simpleEvent(id string, date ledger.DateKey, delta int, createdAt time.Time) ledger.Event {
	return ledger.Event{
		ID:            ledger.EventID(id),
		OperationID:   ledger.OperationID("op-" + id),
		HabitID:       "habit-water",
		UserID:        "user-1",
		DeviceID:      "device-1",
		DateKey:       date,
		Type:          ledger.EventIncrement,
		ProgressDelta: delta,
		CreatedAt:     createdAt,
		OccurredAt:    createdAt,
		UTCDayStart:   time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		UTCDayEnd:     time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC),
		Timezone:      "UTC",
	}
}

// =============================================================================
// EVENT ROUND TRIP
// =============================================================================

func TestStore_AppendAndQuery_FullFieldRoundTrip(t *testing.T) {
	// GIVEN: An event with every field populated, including nanoseconds
	// WHEN: Appending and reading it back
	// THEN: Every field survives the round trip

	store := newTestStore(t)
	ctx := context.Background()
	want := fullEvent()

	outcome, err := store.Append(ctx, want)
	require.NoError(t, err)
	require.Equal(t, ledger.Inserted, outcome)

	events, err := store.Query(ctx, want.Key(), ledger.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	got := events[0]

	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.OperationID, got.OperationID)
	assert.Equal(t, want.HabitID, got.HabitID)
	assert.Equal(t, want.UserID, got.UserID)
	assert.Equal(t, want.DeviceID, got.DeviceID)
	assert.Equal(t, want.DateKey, got.DateKey)
	assert.Equal(t, want.Type, got.Type)
	assert.Equal(t, want.ProgressDelta, got.ProgressDelta)
	assert.True(t, got.CreatedAt.Equal(want.CreatedAt))
	assert.True(t, got.OccurredAt.Equal(want.OccurredAt))
	assert.True(t, got.UTCDayStart.Equal(want.UTCDayStart))
	assert.True(t, got.UTCDayEnd.Equal(want.UTCDayEnd))
	assert.Equal(t, want.Timezone, got.Timezone)
	assert.Equal(t, want.Synced, got.Synced)
	require.NotNil(t, got.LastSyncedAt)
	assert.True(t, got.LastSyncedAt.Equal(*want.LastSyncedAt))
	assert.Equal(t, want.SyncVersion, got.SyncVersion)
	assert.Equal(t, want.IsRemote, got.IsRemote)
	assert.Nil(t, got.DeletedAt)
	assert.Equal(t, want.Note, got.Note)
	assert.Equal(t, want.Metadata, got.Metadata)
}

func TestStore_Append_DuplicateID(t *testing.T) {
	// The UNIQUE constraint maps to DuplicateIgnored, never an error.

	store := newTestStore(t)
	ctx := context.Background()

	e := fullEvent()
	_, err := store.Append(ctx, e)
	require.NoError(t, err)

	e.OperationID = "op-other"
	outcome, err := store.Append(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, ledger.DuplicateIgnored, outcome)
}

func TestStore_Append_DuplicateOperationID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := fullEvent()
	_, err := store.Append(ctx, e)
	require.NoError(t, err)

	e.ID = "evt-other"
	outcome, err := store.Append(ctx, e)
	require.NoError(t, err)
	assert.Equal(t, ledger.DuplicateIgnored, outcome)

	// The original record is untouched.
	stored, err := store.QueryByOperationID(ctx, "op-full")
	require.NoError(t, err)
	assert.Equal(t, ledger.EventID("evt-full"), stored.ID)
}

func TestStore_QueryByOperationID_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.QueryByOperationID(context.Background(), "op-missing")
	assert.ErrorIs(t, err, ledger.ErrEventNotFound)
}

// =============================================================================
// SOFT DELETE
// =============================================================================

func TestStore_SoftDelete_FilteredFromReads(t *testing.T) {
	// GIVEN: Two events, one soft-deleted
	// WHEN: Querying with and without IncludeDeleted
	// THEN: Default reads hide it; audit reads still see it

	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

	_, err := store.Append(ctx, simpleEvent("evt-a", "2024-03-01", 1, base))
	require.NoError(t, err)
	_, err = store.Append(ctx, simpleEvent("evt-b", "2024-03-01", 2, base.Add(time.Minute)))
	require.NoError(t, err)

	require.NoError(t, store.SoftDelete(ctx, "evt-a", base.Add(time.Hour)))

	key := ledger.DayKey{HabitID: "habit-water", DateKey: "2024-03-01", UserID: "user-1"}
	live, err := store.Query(ctx, key, ledger.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, ledger.EventID("evt-b"), live[0].ID)

	all, err := store.Query(ctx, key, ledger.QueryOptions{IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.NotNil(t, all[0].DeletedAt)
	assert.True(t, all[0].DeletedAt.Equal(base.Add(time.Hour)))
}

func TestStore_SoftDelete_FirstStampWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

	_, err := store.Append(ctx, simpleEvent("evt-a", "2024-03-01", 1, base))
	require.NoError(t, err)

	require.NoError(t, store.SoftDelete(ctx, "evt-a", base.Add(time.Hour)))
	require.NoError(t, store.SoftDelete(ctx, "evt-a", base.Add(2*time.Hour)))

	key := ledger.DayKey{HabitID: "habit-water", DateKey: "2024-03-01", UserID: "user-1"}
	all, err := store.Query(ctx, key, ledger.QueryOptions{IncludeDeleted: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].DeletedAt.Equal(base.Add(time.Hour)))
}

func TestStore_SoftDelete_UnknownID(t *testing.T) {
	store := newTestStore(t)

	err := store.SoftDelete(context.Background(), "evt-missing", time.Now())
	assert.ErrorIs(t, err, ledger.ErrEventNotFound)
}

// =============================================================================
// SYNC BOOKKEEPING
// =============================================================================

func TestStore_MarkSynced_LeavesOutbox(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

	_, err := store.Append(ctx, simpleEvent("evt-a", "2024-03-01", 1, base))
	require.NoError(t, err)
	_, err = store.Append(ctx, simpleEvent("evt-b", "2024-03-01", 1, base.Add(time.Minute)))
	require.NoError(t, err)

	outbox, err := store.QueryUnsynced(ctx)
	require.NoError(t, err)
	require.Len(t, outbox, 2)

	require.NoError(t, store.MarkSynced(ctx, "evt-a", base.Add(time.Hour)))

	outbox, err = store.QueryUnsynced(ctx)
	require.NoError(t, err)
	require.Len(t, outbox, 1)
	assert.Equal(t, ledger.EventID("evt-b"), outbox[0].ID)

	stored, err := store.QueryByOperationID(ctx, "op-evt-a")
	require.NoError(t, err)
	assert.True(t, stored.Synced)
	assert.Equal(t, int64(1), stored.SyncVersion)
	require.NotNil(t, stored.LastSyncedAt)
	assert.True(t, stored.LastSyncedAt.Equal(base.Add(time.Hour)))
}

func TestStore_QueryUnsynced_OrderSurvivesFractionalSeconds(t *testing.T) {
	// GIVEN: An older whole-second event and a newer fractional-second event
	// WHEN: Scanning the outbox
	// THEN: The stored timestamp encoding keeps them oldest first

	store := newTestStore(t)
	ctx := context.Background()

	wholeSecond := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	halfSecondLater := wholeSecond.Add(500 * time.Millisecond)

	_, err := store.Append(ctx, simpleEvent("evt-newer", "2024-03-01", 1, halfSecondLater))
	require.NoError(t, err)
	_, err = store.Append(ctx, simpleEvent("evt-older", "2024-03-01", 1, wholeSecond))
	require.NoError(t, err)

	outbox, err := store.QueryUnsynced(ctx)
	require.NoError(t, err)

	require.Len(t, outbox, 2)
	assert.Equal(t, ledger.EventID("evt-older"), outbox[0].ID)
	assert.Equal(t, ledger.EventID("evt-newer"), outbox[1].ID)
}

// =============================================================================
// DATE RANGE QUERIES
// =============================================================================

func TestStore_QueryDateRange_InclusiveBounds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, time.March, 1, 8, 0, 0, 0, time.UTC)

	for i, date := range []ledger.DateKey{"2024-02-28", "2024-03-01", "2024-03-02", "2024-03-03"} {
		e := simpleEvent("evt-"+string(date), date, 1, base.Add(time.Duration(i)*time.Minute))
		_, err := store.Append(ctx, e)
		require.NoError(t, err)
	}

	events, err := store.QueryDateRange(ctx, "user-1", "2024-03-01", "2024-03-02", ledger.QueryOptions{})
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, ledger.DateKey("2024-03-01"), events[0].DateKey)
	assert.Equal(t, ledger.DateKey("2024-03-02"), events[1].DateKey)
}

// =============================================================================
// SEQUENCE ALLOCATOR
// =============================================================================

func TestStore_NextSequence_MonotonicPerScope(t *testing.T) {
	// GIVEN: Two (device, day) scopes
	// WHEN: Allocating sequences
	// THEN: Each scope counts independently from 1

	store := newTestStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		seq, err := store.NextSequence(ctx, "device-1", "2024-03-01")
		require.NoError(t, err)
		assert.Equal(t, want, seq)
	}

	seq, err := store.NextSequence(ctx, "device-2", "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	seq, err = store.NextSequence(ctx, "device-1", "2024-03-02")
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)
}

// =============================================================================
// MIGRATION FLAGS
// =============================================================================

func TestStore_Flags(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	set, err := store.IsSet(ctx, "backfill:snapshot-v1")
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, store.Set(ctx, "backfill:snapshot-v1"))
	require.NoError(t, store.Set(ctx, "backfill:snapshot-v1"))

	set, err = store.IsSet(ctx, "backfill:snapshot-v1")
	require.NoError(t, err)
	assert.True(t, set)
}

// =============================================================================
// STREAK STATE
// =============================================================================

func TestStore_StreakState_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	missing, err := store.Load(ctx, "user-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	want := streak.State{
		UserID:            "user-1",
		CurrentStreak:     4,
		LongestStreak:     9,
		TotalCompleteDays: 20,
		StreakHistory:     []int{9, 5, 2},
		LastCompleteDate:  "2024-03-01",
		UpdatedAt:         time.Date(2024, time.March, 1, 22, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Load(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, want.UserID, got.UserID)
	assert.Equal(t, want.CurrentStreak, got.CurrentStreak)
	assert.Equal(t, want.LongestStreak, got.LongestStreak)
	assert.Equal(t, want.TotalCompleteDays, got.TotalCompleteDays)
	assert.Equal(t, want.StreakHistory, got.StreakHistory)
	assert.Equal(t, want.LastCompleteDate, got.LastCompleteDate)
	assert.True(t, got.UpdatedAt.Equal(want.UpdatedAt))
}

func TestStore_StreakState_UpsertOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := streak.State{UserID: "user-1", CurrentStreak: 1, LongestStreak: 1, UpdatedAt: time.Now().UTC()}
	require.NoError(t, store.Save(ctx, first))

	second := first
	second.CurrentStreak = 2
	second.LongestStreak = 2
	require.NoError(t, store.Save(ctx, second))

	got, err := store.Load(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentStreak)
}

// =============================================================================
// HABIT REGISTRY
// =============================================================================

func TestStore_HabitRegistry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveHabit(ctx, sqlite.Habit{
		ID: "habit-water", UserID: "user-1", Name: "Drink water", GoalAmount: 3,
	}))
	require.NoError(t, store.SaveHabit(ctx, sqlite.Habit{
		ID: "habit-steps", UserID: "user-1", Name: "Walk", GoalAmount: 1,
	}))

	goal, err := store.GoalAmount(ctx, "habit-water")
	require.NoError(t, err)
	assert.Equal(t, 3, goal)

	scheduled, err := store.ScheduledHabits(ctx, "user-1", "2024-03-01")
	require.NoError(t, err)
	assert.ElementsMatch(t, []ledger.HabitID{"habit-water", "habit-steps"}, scheduled)

	_, err = store.GoalAmount(ctx, "habit-missing")
	assert.Error(t, err)
}

func TestStore_SaveHabit_UpdatesGoal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveHabit(ctx, sqlite.Habit{ID: "habit-water", UserID: "user-1", Name: "Water", GoalAmount: 3}))
	require.NoError(t, store.SaveHabit(ctx, sqlite.Habit{ID: "habit-water", UserID: "user-1", Name: "Water", GoalAmount: 5}))

	goal, err := store.GoalAmount(ctx, "habit-water")
	require.NoError(t, err)
	assert.Equal(t, 5, goal)

	habits, err := store.ListHabits(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, habits, 1)
}

// =============================================================================
// LEGACY SOURCES
// =============================================================================

func TestStore_LegacySnapshotSource(t *testing.T) {
	// GIVEN: A seeded generation-1 snapshot
	// WHEN: Reading it through the backfill source
	// THEN: The date-keyed map arrives flattened into per-day records

	store := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2021, time.May, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SeedLegacySnapshot(ctx, backfill.HabitSnapshot{
		HabitID: "habit-water",
		UserID:  "user-1",
		ProgressByDate: map[ledger.DateKey]int{
			"2021-04-01": 2,
			"2021-04-02": 3,
		},
		CreatedAt: created,
	}))

	records, err := store.LegacySnapshotSource().Records(ctx)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, ledger.DateKey("2021-04-01"), records[0].DateKey)
	assert.Equal(t, 2, records[0].Progress)
	assert.Equal(t, 3, records[1].Progress)
	assert.True(t, records[0].CreatedAt.Equal(created))
}

func TestStore_LegacyCounterSource(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SeedLegacyCounter(ctx, backfill.LegacyRecord{
		HabitID: "habit-water", DateKey: "2022-01-15", UserID: "user-1",
		Progress: 5, CreatedAt: time.Date(2022, time.January, 15, 18, 0, 0, 0, time.UTC),
	}))

	records, err := store.LegacyCounterSource().Records(ctx)
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, ledger.HabitID("habit-water"), records[0].HabitID)
	assert.Equal(t, 5, records[0].Progress)
}

func TestStore_BackfillEndToEnd(t *testing.T) {
	// The SQLite store serves as event store, flag store, and legacy source
	// for one reconciliation run.

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SeedLegacyCounter(ctx, backfill.LegacyRecord{
		HabitID: "habit-water", DateKey: "2022-01-15", UserID: "user-1",
		Progress: 5, CreatedAt: time.Date(2022, time.January, 15, 18, 0, 0, 0, time.UTC),
	}))

	r := backfill.NewReconciler(store, store.LegacyCounterSource(), store, backfill.FlagCounterMigration, nil)
	result, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, backfill.Result{Migrated: 1}, result)

	key := ledger.DayKey{HabitID: "habit-water", DateKey: "2022-01-15", UserID: "user-1"}
	events, err := store.Query(ctx, key, ledger.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 5, ledger.DerivedProgress(events))

	// The second run short-circuits on the completion flag.
	again, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, backfill.Result{}, again)
}
