/*
Package sqlite provides the SQLite-backed implementation of the storage
contracts.

PURPOSE:
  Implements every persistence interface the ledger core consumes
  (ledger.EventStore, ledger.SequenceAllocator, ledger.FlagStore,
  streak.StateStore, streak.ScheduleProvider) plus read-only access to the
  two legacy storage generations the backfill reconciler migrates.

INTERFACES IMPLEMENTED:
  ledger.EventStore:        Event persistence with insert-if-absent
  ledger.SequenceAllocator: Per-(device, day) monotonic counters
  ledger.FlagStore:         One-time migration completion flags
  streak.StateStore:        Per-user streak aggregates
  streak.ScheduleProvider:  Habit registry with daily goals

APPEND-MOSTLY ENFORCEMENT:
  The events table takes INSERTs plus exactly two mutations: the sync
  bookkeeping columns (MarkSynced) and deleted_at (SoftDelete). Progress is
  never corrected in place - compensating events are appended instead.

IDEMPOTENCY:
  UNIQUE constraints on id and operation_id give insert-if-absent
  semantics: a violated constraint maps to the DuplicateIgnored outcome,
  not an error.

WAL MODE:
  SQLite is opened with WAL so readers never block on the single writer and
  a reader sees a whole appended row or none of it.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil { log.Fatal(err) }
  defer store.Close()
  lgr := ledger.NewLedger(store, store)

SEE ALSO:
  - ledger/store.go: contract definitions
  - ledger/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/progress-ledger/backfill"
	"github.com/warp/progress-ledger/ledger"
	"github.com/warp/progress-ledger/streak"
)

// Store implements all storage contracts using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes duplicate-key detection and keeps
	// ":memory:" databases from evaporating between pool connections.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	-- Events (append-mostly ledger)
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		operation_id TEXT NOT NULL UNIQUE,
		habit_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		device_id TEXT NOT NULL,
		date_key TEXT NOT NULL,
		event_type TEXT NOT NULL,
		progress_delta INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		occurred_at TEXT NOT NULL,
		utc_day_start TEXT NOT NULL,
		utc_day_end TEXT NOT NULL,
		timezone TEXT NOT NULL,
		synced BOOLEAN NOT NULL DEFAULT FALSE,
		last_synced_at TEXT,
		sync_version INTEGER NOT NULL DEFAULT 0,
		is_remote BOOLEAN NOT NULL DEFAULT FALSE,
		deleted_at TEXT,
		note TEXT,
		metadata_json TEXT
	);

	-- Derivation hot path: all events for one (habit, day, user)
	CREATE INDEX IF NOT EXISTS idx_events_day
		ON events(habit_id, date_key, user_id);

	-- Streak replay over a user's history
	CREATE INDEX IF NOT EXISTS idx_events_user_date
		ON events(user_id, date_key);

	-- Outbox scan
	CREATE INDEX IF NOT EXISTS idx_events_unsynced
		ON events(synced) WHERE synced = FALSE;

	-- Per-(device, day) sequence counters
	CREATE TABLE IF NOT EXISTS sequences (
		device_id TEXT NOT NULL,
		date_key TEXT NOT NULL,
		next_seq INTEGER NOT NULL,
		PRIMARY KEY (device_id, date_key)
	);

	-- One-time migration completion flags (fast-path skip only)
	CREATE TABLE IF NOT EXISTS migration_flags (
		name TEXT PRIMARY KEY,
		set_at TEXT NOT NULL
	);

	-- Per-user streak aggregates (reproducible from events)
	CREATE TABLE IF NOT EXISTS streak_state (
		user_id TEXT PRIMARY KEY,
		current_streak INTEGER NOT NULL,
		longest_streak INTEGER NOT NULL,
		total_complete_days INTEGER NOT NULL,
		streak_history_json TEXT NOT NULL,
		last_complete_date TEXT,
		updated_at TEXT NOT NULL
	);

	-- Habit registry (schedule provider)
	CREATE TABLE IF NOT EXISTS habits (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL,
		goal_amount INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_habits_user ON habits(user_id);

	-- Legacy generation 1: denormalized snapshots, date-keyed progress map
	CREATE TABLE IF NOT EXISTS legacy_habit_snapshots (
		habit_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		progress_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Legacy generation 2: intermediate per-day counters
	CREATE TABLE IF NOT EXISTS legacy_day_counters (
		habit_id TEXT NOT NULL,
		date_key TEXT NOT NULL,
		user_id TEXT NOT NULL,
		progress INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (habit_id, date_key)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EVENT STORE (ledger.EventStore interface)
// =============================================================================

const eventColumns = `id, operation_id, habit_id, user_id, device_id, date_key, event_type,
	progress_delta, created_at, occurred_at, utc_day_start, utc_day_end, timezone,
	synced, last_synced_at, sync_version, is_remote, deleted_at, note, metadata_json`

// Append persists an event. A UNIQUE violation on id or operation_id is the
// DuplicateIgnored outcome.
func (s *Store) Append(ctx context.Context, e ledger.Event) (ledger.AppendOutcome, error) {
	metadataJSON, _ := json.Marshal(e.Metadata)

	query := `
		INSERT INTO events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		string(e.ID),
		string(e.OperationID),
		string(e.HabitID),
		string(e.UserID),
		string(e.DeviceID),
		string(e.DateKey),
		string(e.Type),
		e.ProgressDelta,
		formatTime(e.CreatedAt),
		formatTime(e.OccurredAt),
		formatTime(e.UTCDayStart),
		formatTime(e.UTCDayEnd),
		e.Timezone,
		e.Synced,
		formatNullTime(e.LastSyncedAt),
		e.SyncVersion,
		e.IsRemote,
		formatNullTime(e.DeletedAt),
		nullString(e.Note),
		string(metadataJSON),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.DuplicateIgnored, nil
		}
		return 0, fmt.Errorf("%w: append event: %v", ledger.ErrStoreUnavailable, err)
	}
	return ledger.Inserted, nil
}

// Query returns events for one day scope in derivation order.
func (s *Store) Query(ctx context.Context, key ledger.DayKey, opts ledger.QueryOptions) ([]ledger.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE habit_id = ? AND date_key = ? AND user_id = ?` +
		deletedFilter(opts) + `
		ORDER BY created_at ASC, id ASC
	`
	return s.queryEvents(ctx, query, string(key.HabitID), string(key.DateKey), string(key.UserID))
}

// QueryByOperationID returns the event for an idempotency key.
func (s *Store) QueryByOperationID(ctx context.Context, opID ledger.OperationID) (*ledger.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE operation_id = ?`
	events, err := s.queryEvents(ctx, query, string(opID))
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ledger.ErrEventNotFound
	}
	return &events[0], nil
}

// QueryUnsynced returns the outbox: non-deleted local events not yet
// confirmed remotely durable.
func (s *Store) QueryUnsynced(ctx context.Context) ([]ledger.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE synced = FALSE AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`
	return s.queryEvents(ctx, query)
}

// QueryDateRange returns a user's events with start <= date_key <= end.
func (s *Store) QueryDateRange(ctx context.Context, userID ledger.UserID, start, end ledger.DateKey, opts ledger.QueryOptions) ([]ledger.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE user_id = ? AND date_key >= ? AND date_key <= ?` +
		deletedFilter(opts) + `
		ORDER BY date_key ASC, created_at ASC, id ASC
	`
	return s.queryEvents(ctx, query, string(userID), string(start), string(end))
}

// MarkSynced records remote durability: the only permitted mutation of the
// sync bookkeeping columns.
func (s *Store) MarkSynced(ctx context.Context, id ledger.EventID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET synced = TRUE, last_synced_at = ?, sync_version = sync_version + 1
		WHERE id = ?
	`, formatTime(at), string(id))
	if err != nil {
		return fmt.Errorf("%w: mark synced: %v", ledger.ErrStoreUnavailable, err)
	}
	return requireRow(res)
}

// SoftDelete stamps deleted_at once; a second call is a no-op.
func (s *Store) SoftDelete(ctx context.Context, id ledger.EventID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET deleted_at = COALESCE(deleted_at, ?)
		WHERE id = ?
	`, formatTime(at), string(id))
	if err != nil {
		return fmt.Errorf("%w: soft delete: %v", ledger.ErrStoreUnavailable, err)
	}
	return requireRow(res)
}

func deletedFilter(opts ledger.QueryOptions) string {
	if opts.IncludeDeleted {
		return ""
	}
	return " AND deleted_at IS NULL"
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrEventNotFound
	}
	return nil
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]ledger.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query events: %v", ledger.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var events []ledger.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanEvent(rows *sql.Rows) (ledger.Event, error) {
	var (
		e            ledger.Event
		id           string
		opID         string
		habitID      string
		userID       string
		deviceID     string
		dateKey      string
		eventType    string
		createdAt    string
		occurredAt   string
		dayStart     string
		dayEnd       string
		lastSyncedAt sql.NullString
		deletedAt    sql.NullString
		note         sql.NullString
		metadataJSON sql.NullString
	)

	err := rows.Scan(
		&id, &opID, &habitID, &userID, &deviceID, &dateKey, &eventType,
		&e.ProgressDelta, &createdAt, &occurredAt, &dayStart, &dayEnd,
		&e.Timezone, &e.Synced, &lastSyncedAt, &e.SyncVersion, &e.IsRemote,
		&deletedAt, &note, &metadataJSON,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan event: %w", err)
	}

	e.ID = ledger.EventID(id)
	e.OperationID = ledger.OperationID(opID)
	e.HabitID = ledger.HabitID(habitID)
	e.UserID = ledger.UserID(userID)
	e.DeviceID = ledger.DeviceID(deviceID)
	e.DateKey = ledger.DateKey(dateKey)
	e.Type = ledger.EventType(eventType)
	e.CreatedAt = parseTime(createdAt)
	e.OccurredAt = parseTime(occurredAt)
	e.UTCDayStart = parseTime(dayStart)
	e.UTCDayEnd = parseTime(dayEnd)
	e.LastSyncedAt = parseNullTime(lastSyncedAt)
	e.DeletedAt = parseNullTime(deletedAt)
	e.Note = note.String

	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		json.Unmarshal([]byte(metadataJSON.String), &e.Metadata)
	}
	return e, nil
}

// =============================================================================
// SEQUENCE ALLOCATOR (ledger.SequenceAllocator interface)
// =============================================================================

// NextSequence hands out the next monotonic counter for (device, day).
func (s *Store) NextSequence(ctx context.Context, deviceID ledger.DeviceID, dateKey ledger.DateKey) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sequences (device_id, date_key, next_seq)
		VALUES (?, ?, 1)
		ON CONFLICT(device_id, date_key) DO UPDATE SET next_seq = next_seq + 1
		RETURNING next_seq
	`, string(deviceID), string(dateKey)).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("%w: next sequence: %v", ledger.ErrStoreUnavailable, err)
	}
	return seq, nil
}

// =============================================================================
// FLAG STORE (ledger.FlagStore interface)
// =============================================================================

func (s *Store) IsSet(ctx context.Context, name string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM migration_flags WHERE name = ?", name,
	).Scan(&count)
	return count > 0, err
}

func (s *Store) Set(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO migration_flags (name, set_at) VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, formatTime(time.Now().UTC()))
	return err
}

// =============================================================================
// STREAK STATE STORE (streak.StateStore interface)
// =============================================================================

func (s *Store) Load(ctx context.Context, userID ledger.UserID) (*streak.State, error) {
	var (
		st          streak.State
		historyJSON string
		lastDate    sql.NullString
		updatedAt   string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, current_streak, longest_streak, total_complete_days,
		       streak_history_json, last_complete_date, updated_at
		FROM streak_state WHERE user_id = ?
	`, string(userID)).Scan(
		&st.UserID, &st.CurrentStreak, &st.LongestStreak, &st.TotalCompleteDays,
		&historyJSON, &lastDate, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load streak state: %v", ledger.ErrStoreUnavailable, err)
	}

	if historyJSON != "" && historyJSON != "null" {
		json.Unmarshal([]byte(historyJSON), &st.StreakHistory)
	}
	st.LastCompleteDate = ledger.DateKey(lastDate.String)
	st.UpdatedAt = parseTime(updatedAt)
	return &st, nil
}

func (s *Store) Save(ctx context.Context, st streak.State) error {
	historyJSON, _ := json.Marshal(st.StreakHistory)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO streak_state
		(user_id, current_streak, longest_streak, total_complete_days,
		 streak_history_json, last_complete_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			total_complete_days = excluded.total_complete_days,
			streak_history_json = excluded.streak_history_json,
			last_complete_date = excluded.last_complete_date,
			updated_at = excluded.updated_at
	`,
		string(st.UserID), st.CurrentStreak, st.LongestStreak, st.TotalCompleteDays,
		string(historyJSON), nullString(string(st.LastCompleteDate)), formatTime(st.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("%w: save streak state: %v", ledger.ErrStoreUnavailable, err)
	}
	return nil
}

// =============================================================================
// HABIT REGISTRY (streak.ScheduleProvider interface)
// =============================================================================

// Habit is a registered habit with its daily goal.
type Habit struct {
	ID         ledger.HabitID
	UserID     ledger.UserID
	Name       string
	GoalAmount int
	CreatedAt  time.Time
}

// SaveHabit registers or updates a habit.
func (s *Store) SaveHabit(ctx context.Context, h Habit) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO habits (id, user_id, name, goal_amount, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			goal_amount = excluded.goal_amount
	`, string(h.ID), string(h.UserID), h.Name, h.GoalAmount, formatTime(time.Now().UTC()))
	return err
}

// ListHabits returns a user's habits.
func (s *Store) ListHabits(ctx context.Context, userID ledger.UserID) ([]Habit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, goal_amount, created_at
		FROM habits WHERE user_id = ? ORDER BY created_at, id
	`, string(userID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var habits []Habit
	for rows.Next() {
		var h Habit
		var id, uid, createdAt string
		if err := rows.Scan(&id, &uid, &h.Name, &h.GoalAmount, &createdAt); err != nil {
			return nil, err
		}
		h.ID = ledger.HabitID(id)
		h.UserID = ledger.UserID(uid)
		h.CreatedAt = parseTime(createdAt)
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

// ScheduledHabits returns every registered habit for the user. The registry
// currently schedules all habits daily.
func (s *Store) ScheduledHabits(ctx context.Context, userID ledger.UserID, _ ledger.DateKey) ([]ledger.HabitID, error) {
	habits, err := s.ListHabits(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]ledger.HabitID, 0, len(habits))
	for _, h := range habits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

// GoalAmount returns the habit's daily goal.
func (s *Store) GoalAmount(ctx context.Context, habitID ledger.HabitID) (int, error) {
	var goal int
	err := s.db.QueryRowContext(ctx,
		"SELECT goal_amount FROM habits WHERE id = ?", string(habitID),
	).Scan(&goal)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("habit %s not registered", habitID)
	}
	return goal, err
}

// =============================================================================
// LEGACY SOURCES (read-only, consumed by backfill)
// =============================================================================

// SeedLegacySnapshot stores a generation-1 denormalized snapshot. Exists so
// exported legacy data (and tests) can be loaded as fixtures; the
// reconciler itself only reads.
func (s *Store) SeedLegacySnapshot(ctx context.Context, snap backfill.HabitSnapshot) error {
	progressJSON, _ := json.Marshal(snap.ProgressByDate)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO legacy_habit_snapshots (habit_id, user_id, progress_json, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(habit_id) DO UPDATE SET
			progress_json = excluded.progress_json
	`, string(snap.HabitID), string(snap.UserID), string(progressJSON), formatTime(snap.CreatedAt))
	return err
}

// SeedLegacyCounter stores a generation-2 per-day counter row.
func (s *Store) SeedLegacyCounter(ctx context.Context, rec backfill.LegacyRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO legacy_day_counters (habit_id, date_key, user_id, progress, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(habit_id, date_key) DO UPDATE SET
			progress = excluded.progress
	`, string(rec.HabitID), string(rec.DateKey), string(rec.UserID), rec.Progress, formatTime(rec.CreatedAt))
	return err
}

// LegacySnapshotSource reads the generation-1 snapshots.
func (s *Store) LegacySnapshotSource() backfill.SnapshotSource {
	return legacySnapshotSource{db: s.db}
}

// LegacyCounterSource reads the generation-2 counters.
func (s *Store) LegacyCounterSource() backfill.SnapshotSource {
	return legacyCounterSource{db: s.db}
}

type legacySnapshotSource struct{ db *sql.DB }

func (src legacySnapshotSource) Records(ctx context.Context) ([]backfill.LegacyRecord, error) {
	rows, err := src.db.QueryContext(ctx, `
		SELECT habit_id, user_id, progress_json, created_at
		FROM legacy_habit_snapshots ORDER BY habit_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []backfill.HabitSnapshot
	for rows.Next() {
		var habitID, userID, progressJSON, createdAt string
		if err := rows.Scan(&habitID, &userID, &progressJSON, &createdAt); err != nil {
			return nil, err
		}
		snap := backfill.HabitSnapshot{
			HabitID:   ledger.HabitID(habitID),
			UserID:    ledger.UserID(userID),
			CreatedAt: parseTime(createdAt),
		}
		if err := json.Unmarshal([]byte(progressJSON), &snap.ProgressByDate); err != nil {
			return nil, fmt.Errorf("snapshot %s: bad progress map: %w", habitID, err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return backfill.SnapshotAdapter{Snapshots: snaps}.Records(ctx)
}

type legacyCounterSource struct{ db *sql.DB }

func (src legacyCounterSource) Records(ctx context.Context) ([]backfill.LegacyRecord, error) {
	rows, err := src.db.QueryContext(ctx, `
		SELECT habit_id, date_key, user_id, progress, created_at
		FROM legacy_day_counters ORDER BY habit_id, date_key
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []backfill.LegacyRecord
	for rows.Next() {
		var habitID, dateKey, userID, createdAt string
		var progress int
		if err := rows.Scan(&habitID, &dateKey, &userID, &progress, &createdAt); err != nil {
			return nil, err
		}
		records = append(records, backfill.LegacyRecord{
			HabitID:   ledger.HabitID(habitID),
			DateKey:   ledger.DateKey(dateKey),
			UserID:    ledger.UserID(userID),
			Progress:  progress,
			CreatedAt: parseTime(createdAt),
		})
	}
	return records, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// Fixed-width fractional seconds so lexicographic ORDER BY over the stored
// strings matches chronological order. RFC3339Nano trims trailing zeros,
// which makes "10:00:00Z" sort after "10:00:00.5Z".
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
