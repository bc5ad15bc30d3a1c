package streak

import (
	"context"
	"sync"

	"github.com/warp/progress-ledger/ledger"
)

// =============================================================================
// MEMORY STATE STORE - For testing/dev
// =============================================================================

type MemoryStates struct {
	mu     sync.RWMutex
	states map[ledger.UserID]State
}

func NewMemoryStates() *MemoryStates {
	return &MemoryStates{states: make(map[ledger.UserID]State)}
}

func (m *MemoryStates) Load(_ context.Context, userID ledger.UserID) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.states[userID]
	if !ok {
		return nil, nil
	}
	s.StreakHistory = append([]int(nil), s.StreakHistory...)
	return &s, nil
}

func (m *MemoryStates) Save(_ context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.StreakHistory = append([]int(nil), s.StreakHistory...)
	m.states[s.UserID] = s
	return nil
}

// =============================================================================
// STATIC SCHEDULE - Fixed habit set, same goals every day
// =============================================================================

// StaticSchedule is a ScheduleProvider backed by a fixed habit→goal map.
// Every habit is scheduled every day for every user. Useful for tests and
// single-user deployments.
type StaticSchedule struct {
	mu    sync.RWMutex
	goals map[ledger.HabitID]int
	order []ledger.HabitID
}

func NewStaticSchedule() *StaticSchedule {
	return &StaticSchedule{goals: make(map[ledger.HabitID]int)}
}

// Add registers a habit with its daily goal.
func (s *StaticSchedule) Add(habitID ledger.HabitID, goal int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.goals[habitID]; !ok {
		s.order = append(s.order, habitID)
	}
	s.goals[habitID] = goal
}

func (s *StaticSchedule) ScheduledHabits(_ context.Context, _ ledger.UserID, _ ledger.DateKey) ([]ledger.HabitID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ledger.HabitID(nil), s.order...), nil
}

func (s *StaticSchedule) GoalAmount(_ context.Context, habitID ledger.HabitID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.goals[habitID], nil
}

// =============================================================================
// FIXED VACATION CALENDAR
// =============================================================================

// FixedVacations marks an explicit set of days exempt.
type FixedVacations struct {
	Days map[ledger.DateKey]bool
}

func (v FixedVacations) IsVacationActive() bool { return len(v.Days) > 0 }

func (v FixedVacations) IsVacationDay(date ledger.DateKey) bool { return v.Days[date] }
