/*
engine.go - Incremental streak updates and authoritative recompute

PURPOSE:
  Two operating modes over the same day classification:

  INCREMENTAL (O(1) per day close):
    CloseDay evaluates one day and calls IncrementStreak or BreakStreak.
    Mutates the single per-user aggregate, so it runs under a per-user lock
    to avoid lost updates when two day-close events race.

  FULL RECOMPUTE (O(n) over history):
    Recalculate replays derived daily completion across all scheduled
    habits. This is the ground truth after backfill or data repair. The
    replay itself is read-only and runs without the user lock; the result
    is written back under the lock, and a concurrently-advanced incremental
    state wins for current/total while the longest-streak high-water mark
    is merged with max().

AGREEMENT:
  Given the same inputs the two modes must agree; the incremental path is
  purely a performance optimization.

SEE ALSO:
  - types.go: State and the collaborator contracts
  - ledger/derive.go: per-day completion derivation
*/
package streak

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/warp/progress-ledger/ledger"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine drives streak state for all users of a store.
type Engine struct {
	events    ledger.EventStore
	schedule  ScheduleProvider
	vacations VacationCalendar
	states    StateStore
	clock     func() time.Time

	mu    sync.Mutex
	locks map[ledger.UserID]*sync.Mutex
}

// NewEngine wires the engine to its collaborators. Pass NoVacations{} when
// the vacation feature is disabled.
func NewEngine(events ledger.EventStore, schedule ScheduleProvider, vacations VacationCalendar, states StateStore) *Engine {
	if vacations == nil {
		vacations = NoVacations{}
	}
	return &Engine{
		events:    events,
		schedule:  schedule,
		vacations: vacations,
		states:    states,
		clock:     time.Now,
		locks:     make(map[ledger.UserID]*sync.Mutex),
	}
}

// WithClock overrides the wall clock, for tests.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	return e
}

// userLock returns the mutex guarding one user's aggregate.
func (e *Engine) userLock(userID ledger.UserID) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[userID] = l
	}
	return l
}

// =============================================================================
// DAY CLASSIFICATION
// =============================================================================

// ClassifyDay derives one day's state from the vacation calendar, the
// habit schedule, and the event log.
func (e *Engine) ClassifyDay(ctx context.Context, userID ledger.UserID, date ledger.DateKey) (DayState, error) {
	if e.vacations.IsVacationDay(date) {
		return DayVacation, nil
	}

	habits, err := e.schedule.ScheduledHabits(ctx, userID, date)
	if err != nil {
		return DayIncomplete, fmt.Errorf("scheduled habits for %s: %w", date, err)
	}
	if len(habits) == 0 {
		return DayRest, nil
	}

	for _, habitID := range habits {
		goal, err := e.schedule.GoalAmount(ctx, habitID)
		if err != nil {
			return DayIncomplete, fmt.Errorf("goal for habit %s: %w", habitID, err)
		}
		key := ledger.DayKey{HabitID: habitID, DateKey: date, UserID: userID}
		events, err := e.events.Query(ctx, key, ledger.QueryOptions{})
		if err != nil {
			return DayIncomplete, err
		}
		if !ledger.Derive(key, events, goal).Completed {
			return DayIncomplete, nil
		}
	}
	return DayComplete, nil
}

// =============================================================================
// INCREMENTAL MODE
// =============================================================================

// CloseDay evaluates one finished day and applies the O(1) transition.
// Call once per user per day-close; calling again for the same date is a
// no-op on the complete path.
func (e *Engine) CloseDay(ctx context.Context, userID ledger.UserID, date ledger.DateKey) (State, error) {
	state, err := e.ClassifyDay(ctx, userID, date)
	if err != nil {
		return State{}, err
	}

	switch state {
	case DayComplete:
		return e.IncrementStreak(ctx, userID, date)
	case DayIncomplete:
		return e.BreakStreak(ctx, userID)
	default:
		// Vacation and rest days neither increment nor reset.
		return e.load(ctx, userID)
	}
}

// IncrementStreak records one complete day. Idempotent per date: a repeat
// close of an already-counted day does not double-increment.
func (e *Engine) IncrementStreak(ctx context.Context, userID ledger.UserID, date ledger.DateKey) (State, error) {
	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	s, err := e.loadOrCreate(ctx, userID)
	if err != nil {
		return State{}, err
	}
	if s.LastCompleteDate == date {
		return s, nil
	}

	s.CurrentStreak++
	s.TotalCompleteDays++
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.LastCompleteDate = date
	s.UpdatedAt = e.clock()

	if err := e.states.Save(ctx, s); err != nil {
		return State{}, err
	}
	return s, nil
}

// BreakStreak records an incomplete day: the just-ended run (if any) moves
// into history and the current streak resets to zero.
func (e *Engine) BreakStreak(ctx context.Context, userID ledger.UserID) (State, error) {
	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	s, err := e.loadOrCreate(ctx, userID)
	if err != nil {
		return State{}, err
	}
	if s.CurrentStreak == 0 {
		return s, nil
	}

	s.StreakHistory = append(s.StreakHistory, s.CurrentStreak)
	s.CurrentStreak = 0
	s.UpdatedAt = e.clock()

	if err := e.states.Save(ctx, s); err != nil {
		return State{}, err
	}
	return s, nil
}

// =============================================================================
// FULL RECOMPUTE - Authoritative ground truth
// =============================================================================

// RecalculateFrom folds a chronological run of day statuses into a fresh
// state. Pure; both operating modes reduce to this transition rule.
func RecalculateFrom(userID ledger.UserID, days []DayStatus) State {
	s := State{UserID: userID}
	for _, day := range days {
		switch {
		case day.State == DayComplete:
			s.CurrentStreak++
			s.TotalCompleteDays++
			if s.CurrentStreak > s.LongestStreak {
				s.LongestStreak = s.CurrentStreak
			}
			s.LastCompleteDate = day.Date
		case day.State.bridges():
			// neutral: bridges two complete days
		default:
			if s.CurrentStreak > 0 {
				s.StreakHistory = append(s.StreakHistory, s.CurrentStreak)
				s.CurrentStreak = 0
			}
		}
	}
	return s
}

// Recalculate replays [from, to] from the event log and writes the result
// back. The stored longest streak is never lowered; if an incremental
// update landed after the replay started, the incremental current/total
// values win and only the high-water mark is merged.
func (e *Engine) Recalculate(ctx context.Context, userID ledger.UserID, from, to ledger.DateKey) (State, error) {
	// A malformed key would make the Next() walk below spin forever.
	if !from.Valid() {
		return State{}, &ledger.InvalidEventError{Field: "from", Reason: "not a yyyy-MM-dd date: " + string(from)}
	}
	if !to.Valid() {
		return State{}, &ledger.InvalidEventError{Field: "to", Reason: "not a yyyy-MM-dd date: " + string(to)}
	}

	startedAt := e.clock()

	var days []DayStatus
	for d := from; !to.Before(d); d = d.Next() {
		state, err := e.ClassifyDay(ctx, userID, d)
		if err != nil {
			return State{}, err
		}
		days = append(days, DayStatus{Date: d, State: state})
	}
	computed := RecalculateFrom(userID, days)

	lock := e.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	stored, err := e.states.Load(ctx, userID)
	if err != nil {
		return State{}, err
	}

	result := computed
	if stored != nil {
		if stored.LongestStreak > result.LongestStreak {
			result.LongestStreak = stored.LongestStreak
		}
		if stored.UpdatedAt.After(startedAt) {
			// A racing incremental write post-dates this replay; keep it
			// authoritative except for the merged high-water mark.
			result.CurrentStreak = stored.CurrentStreak
			result.TotalCompleteDays = stored.TotalCompleteDays
			result.StreakHistory = stored.StreakHistory
			result.LastCompleteDate = stored.LastCompleteDate
		}
	}
	result.UpdatedAt = e.clock()

	if err := e.states.Save(ctx, result); err != nil {
		return State{}, err
	}
	return result, nil
}

// =============================================================================
// STATE ACCESS
// =============================================================================

// Current returns the stored aggregate, zero-valued when none exists yet.
func (e *Engine) Current(ctx context.Context, userID ledger.UserID) (State, error) {
	return e.load(ctx, userID)
}

func (e *Engine) load(ctx context.Context, userID ledger.UserID) (State, error) {
	s, err := e.states.Load(ctx, userID)
	if err != nil {
		return State{}, err
	}
	if s == nil {
		return State{UserID: userID}, nil
	}
	return *s, nil
}

func (e *Engine) loadOrCreate(ctx context.Context, userID ledger.UserID) (State, error) {
	return e.load(ctx, userID)
}
