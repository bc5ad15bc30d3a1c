/*
Package streak computes per-user streaks from derived daily completion.

PURPOSE:
  A state machine over calendar days. Each day a user either completed every
  scheduled habit, missed at least one, or was exempt (vacation). Complete
  days extend the current streak, vacation days bridge it, incomplete days
  break it. The longest streak is a high-water mark: recomputation from the
  event log may raise it but never lower it, which compensates for
  historical data gaps discovered later.

KEY CONCEPTS IN THIS FILE (types.go):
  - State: the persisted per-user streak aggregate (always reproducible
    from the event log)
  - DayState/DayStatus: one day's completion classification
  - VacationCalendar, ScheduleProvider, StateStore: injected collaborators

SEE ALSO:
  - engine.go: incremental updates and the authoritative full recompute
*/
package streak

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/progress-ledger/ledger"
)

// =============================================================================
// DAY CLASSIFICATION
// =============================================================================

type DayState int

const (
	// DayIncomplete: at least one scheduled habit missed its goal.
	DayIncomplete DayState = iota

	// DayComplete: every scheduled habit's derived completion is true.
	DayComplete

	// DayVacation: the vacation calendar marks the day exempt. Neither
	// increments nor resets; bridges two complete days.
	DayVacation

	// DayRest: no habits scheduled. Treated like vacation for streak
	// purposes so rest days never break a run.
	DayRest
)

func (s DayState) String() string {
	switch s {
	case DayComplete:
		return "complete"
	case DayVacation:
		return "vacation"
	case DayRest:
		return "rest"
	default:
		return "incomplete"
	}
}

// bridges reports whether the day is neutral for streak accounting.
func (s DayState) bridges() bool { return s == DayVacation || s == DayRest }

// DayStatus pairs a calendar day with its classification.
type DayStatus struct {
	Date  ledger.DateKey
	State DayState
}

// =============================================================================
// STREAK STATE - Persisted aggregate, reproducible from the log
// =============================================================================

// State is the per-user streak aggregate. Created on the first complete
// day, mutated incrementally on each day close, and fully rebuildable by
// replaying derived daily completion.
type State struct {
	UserID ledger.UserID

	CurrentStreak int

	// LongestStreak is a high-water mark: monotonically non-decreasing,
	// even across full recomputation.
	LongestStreak int

	TotalCompleteDays int

	// StreakHistory holds the lengths of closed (ended) streaks, oldest
	// first. The current run is not in it until it breaks.
	StreakHistory []int

	LastCompleteDate ledger.DateKey

	// UpdatedAt orders incremental writes against recompute results.
	UpdatedAt time.Time
}

// AverageStreak is the mean length over closed streaks plus the current
// run, exact to two decimal places. Zero when the user has no streaks.
func (s State) AverageStreak() decimal.Decimal {
	sum := int64(0)
	n := int64(0)
	for _, run := range s.StreakHistory {
		sum += int64(run)
		n++
	}
	if s.CurrentStreak > 0 {
		sum += int64(s.CurrentStreak)
		n++
	}
	if n == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(sum).Div(decimal.NewFromInt(n)).Round(2)
}

// =============================================================================
// COLLABORATOR CONTRACTS
// =============================================================================

// VacationCalendar marks days exempt from streak accounting.
type VacationCalendar interface {
	IsVacationActive() bool
	IsVacationDay(date ledger.DateKey) bool
}

// NoVacations is the calendar used when the vacation feature is disabled.
type NoVacations struct{}

func (NoVacations) IsVacationActive() bool            { return false }
func (NoVacations) IsVacationDay(ledger.DateKey) bool { return false }

// ScheduleProvider answers which habits a user is expected to do on a day
// and what each habit's goal is.
type ScheduleProvider interface {
	ScheduledHabits(ctx context.Context, userID ledger.UserID, date ledger.DateKey) ([]ledger.HabitID, error)
	GoalAmount(ctx context.Context, habitID ledger.HabitID) (int, error)
}

// StateStore persists streak aggregates.
type StateStore interface {
	// Load returns the stored state, or nil if the user has none yet.
	Load(ctx context.Context, userID ledger.UserID) (*State, error)
	Save(ctx context.Context, s State) error
}
