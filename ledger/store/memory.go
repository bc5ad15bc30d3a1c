// Package store provides EventStore implementations.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/warp/progress-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	byID    map[ledger.EventID]*ledger.Event
	byOpID  map[ledger.OperationID]ledger.EventID
	byDay   map[ledger.DayKey][]ledger.EventID
	ordered []ledger.EventID
}

func NewMemory() *Memory {
	return &Memory{
		byID:   make(map[ledger.EventID]*ledger.Event),
		byOpID: make(map[ledger.OperationID]ledger.EventID),
		byDay:  make(map[ledger.DayKey][]ledger.EventID),
	}
}

// Append inserts with insert-if-absent semantics on ID and OperationID.
func (m *Memory) Append(_ context.Context, e ledger.Event) (ledger.AppendOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[e.ID]; ok {
		return ledger.DuplicateIgnored, nil
	}
	if _, ok := m.byOpID[e.OperationID]; ok {
		return ledger.DuplicateIgnored, nil
	}

	stored := cloneEvent(e)
	m.byID[e.ID] = &stored
	m.byOpID[e.OperationID] = e.ID
	m.byDay[e.Key()] = append(m.byDay[e.Key()], e.ID)
	m.ordered = append(m.ordered, e.ID)
	return ledger.Inserted, nil
}

func (m *Memory) Query(_ context.Context, key ledger.DayKey, opts ledger.QueryOptions) ([]ledger.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Event
	for _, id := range m.byDay[key] {
		e := m.byID[id]
		if e.Deleted() && !opts.IncludeDeleted {
			continue
		}
		result = append(result, cloneEvent(*e))
	}
	ledger.SortEvents(result)
	return result, nil
}

func (m *Memory) QueryByOperationID(_ context.Context, opID ledger.OperationID) (*ledger.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byOpID[opID]
	if !ok {
		return nil, ledger.ErrEventNotFound
	}
	e := cloneEvent(*m.byID[id])
	return &e, nil
}

func (m *Memory) QueryUnsynced(_ context.Context) ([]ledger.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Event
	for _, id := range m.ordered {
		e := m.byID[id]
		if e.Synced || e.Deleted() {
			continue
		}
		result = append(result, cloneEvent(*e))
	}
	ledger.SortEvents(result)
	return result, nil
}

func (m *Memory) QueryDateRange(_ context.Context, userID ledger.UserID, start, end ledger.DateKey, opts ledger.QueryOptions) ([]ledger.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Event
	for _, id := range m.ordered {
		e := m.byID[id]
		if e.UserID != userID {
			continue
		}
		if e.DateKey.Before(start) || end.Before(e.DateKey) {
			continue
		}
		if e.Deleted() && !opts.IncludeDeleted {
			continue
		}
		result = append(result, cloneEvent(*e))
	}
	ledger.SortEvents(result)
	return result, nil
}

func (m *Memory) MarkSynced(_ context.Context, id ledger.EventID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.byID[id]
	if !ok {
		return ledger.ErrEventNotFound
	}
	e.Synced = true
	t := at
	e.LastSyncedAt = &t
	e.SyncVersion++
	return nil
}

func (m *Memory) SoftDelete(_ context.Context, id ledger.EventID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.byID[id]
	if !ok {
		return ledger.ErrEventNotFound
	}
	if e.DeletedAt == nil {
		t := at
		e.DeletedAt = &t
	}
	return nil
}

func cloneEvent(e ledger.Event) ledger.Event {
	if e.Metadata != nil {
		meta := make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			meta[k] = v
		}
		e.Metadata = meta
	}
	if e.LastSyncedAt != nil {
		t := *e.LastSyncedAt
		e.LastSyncedAt = &t
	}
	if e.DeletedAt != nil {
		t := *e.DeletedAt
		e.DeletedAt = &t
	}
	return e
}

// =============================================================================
// MEMORY SEQUENCE ALLOCATOR
// =============================================================================

// MemorySequences allocates per-(device, day) monotonic sequence numbers.
type MemorySequences struct {
	mu   sync.Mutex
	next map[seqKey]int64
}

type seqKey struct {
	DeviceID ledger.DeviceID
	DateKey  ledger.DateKey
}

func NewMemorySequences() *MemorySequences {
	return &MemorySequences{next: make(map[seqKey]int64)}
}

func (s *MemorySequences) NextSequence(_ context.Context, deviceID ledger.DeviceID, dateKey ledger.DateKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := seqKey{DeviceID: deviceID, DateKey: dateKey}
	s.next[k]++
	return s.next[k], nil
}

// =============================================================================
// MEMORY FLAG STORE
// =============================================================================

// MemoryFlags is an in-memory one-time flag store for backfill runs.
type MemoryFlags struct {
	mu    sync.RWMutex
	flags map[string]bool
}

func NewMemoryFlags() *MemoryFlags {
	return &MemoryFlags{flags: make(map[string]bool)}
}

func (f *MemoryFlags) IsSet(_ context.Context, name string) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.flags[name], nil
}

func (f *MemoryFlags) Set(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flags[name] = true
	return nil
}
