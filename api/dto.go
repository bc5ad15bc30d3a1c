/*
dto.go - Wire representations for the HTTP API

PURPOSE:
  JSON shapes exchanged with clients and with the sync transport. EventDTO
  is the external wire representation of a ledger event: encoding an event
  and decoding it back reproduces every field byte-for-byte, except the
  bookkeeping fields a remote ingest explicitly rewrites (synced, isRemote).

SEE ALSO:
  - handlers.go: handler implementations using these types
*/
package api

import (
	"time"

	"github.com/warp/progress-ledger/backfill"
	"github.com/warp/progress-ledger/ledger"
)

// =============================================================================
// EVENT WIRE REPRESENTATION
// =============================================================================

// EventDTO mirrors every ledger.Event field on the wire.
type EventDTO struct {
	ID            string            `json:"id"`
	OperationID   string            `json:"operationId"`
	HabitID       string            `json:"habitId"`
	UserID        string            `json:"userId"`
	DeviceID      string            `json:"deviceId"`
	DateKey       string            `json:"dateKey"`
	EventType     string            `json:"eventType"`
	ProgressDelta int               `json:"progressDelta"`
	CreatedAt     time.Time         `json:"createdAt"`
	OccurredAt    time.Time         `json:"occurredAt"`
	UTCDayStart   time.Time         `json:"utcDayStart"`
	UTCDayEnd     time.Time         `json:"utcDayEnd"`
	Timezone      string            `json:"timezoneIdentifier"`
	Synced        bool              `json:"synced"`
	LastSyncedAt  *time.Time        `json:"lastSyncedAt,omitempty"`
	SyncVersion   int64             `json:"syncVersion"`
	IsRemote      bool              `json:"isRemote"`
	DeletedAt     *time.Time        `json:"deletedAt,omitempty"`
	Note          string            `json:"note,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// EventToDTO encodes an event for the wire.
func EventToDTO(e ledger.Event) EventDTO {
	return EventDTO{
		ID:            string(e.ID),
		OperationID:   string(e.OperationID),
		HabitID:       string(e.HabitID),
		UserID:        string(e.UserID),
		DeviceID:      string(e.DeviceID),
		DateKey:       string(e.DateKey),
		EventType:     string(e.Type),
		ProgressDelta: e.ProgressDelta,
		CreatedAt:     e.CreatedAt,
		OccurredAt:    e.OccurredAt,
		UTCDayStart:   e.UTCDayStart,
		UTCDayEnd:     e.UTCDayEnd,
		Timezone:      e.Timezone,
		Synced:        e.Synced,
		LastSyncedAt:  e.LastSyncedAt,
		SyncVersion:   e.SyncVersion,
		IsRemote:      e.IsRemote,
		DeletedAt:     e.DeletedAt,
		Note:          e.Note,
		Metadata:      e.Metadata,
	}
}

// DTOToEvent decodes a wire event.
func DTOToEvent(d EventDTO) ledger.Event {
	return ledger.Event{
		ID:            ledger.EventID(d.ID),
		OperationID:   ledger.OperationID(d.OperationID),
		HabitID:       ledger.HabitID(d.HabitID),
		UserID:        ledger.UserID(d.UserID),
		DeviceID:      ledger.DeviceID(d.DeviceID),
		DateKey:       ledger.DateKey(d.DateKey),
		Type:          ledger.EventType(d.EventType),
		ProgressDelta: d.ProgressDelta,
		CreatedAt:     d.CreatedAt,
		OccurredAt:    d.OccurredAt,
		UTCDayStart:   d.UTCDayStart,
		UTCDayEnd:     d.UTCDayEnd,
		Timezone:      d.Timezone,
		Synced:        d.Synced,
		LastSyncedAt:  d.LastSyncedAt,
		SyncVersion:   d.SyncVersion,
		IsRemote:      d.IsRemote,
		DeletedAt:     d.DeletedAt,
		Note:          d.Note,
		Metadata:      d.Metadata,
	}
}

// =============================================================================
// REQUESTS
// =============================================================================

type CreateHabitRequest struct {
	ID         string `json:"id"`
	UserID     string `json:"userId"`
	Name       string `json:"name"`
	GoalAmount int    `json:"goalAmount"`
}

type AppendEventRequest struct {
	HabitID  string `json:"habitId"`
	UserID   string `json:"userId"`
	DeviceID string `json:"deviceId"`
	DateKey  string `json:"dateKey"`
	// EventType: increment, decrement, set, toggle_complete, system_reset.
	EventType string `json:"eventType"`
	// Delta is ignored for set (NewTotal is used) and system_reset.
	Delta    int `json:"delta"`
	NewTotal int `json:"newTotal"`
	// ClientMillis + Nonce form the idempotency key; a retry must resend
	// both unchanged. Nonce is generated server-side when omitted, which
	// forfeits retry idempotency for that request.
	ClientMillis int64             `json:"clientMillis"`
	Nonce        string            `json:"nonce"`
	OccurredAt   *time.Time        `json:"occurredAt,omitempty"`
	Timezone     string            `json:"timezoneIdentifier,omitempty"`
	Note         string            `json:"note,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

type RecalculateRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type AckRequest struct {
	EventID string `json:"eventId"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type AppendEventResponse struct {
	Event   EventDTO `json:"event"`
	Outcome string   `json:"outcome"`
}

type ProgressResponse struct {
	HabitID   string     `json:"habitId"`
	DateKey   string     `json:"dateKey"`
	UserID    string     `json:"userId"`
	Total     int        `json:"total"`
	Goal      int        `json:"goal"`
	Completed bool       `json:"completed"`
	Events    []EventDTO `json:"events"`
}

type StreakResponse struct {
	UserID            string `json:"userId"`
	CurrentStreak     int    `json:"currentStreak"`
	LongestStreak     int    `json:"longestStreak"`
	TotalCompleteDays int    `json:"totalCompleteDays"`
	StreakHistory     []int  `json:"streakHistory"`
	LastCompleteDate  string `json:"lastCompleteDate,omitempty"`
	AverageStreak     string `json:"averageStreak"`
}

type BackfillResponse struct {
	Runs []BackfillRunResult `json:"runs"`
}

type BackfillRunResult struct {
	Name     string `json:"name"`
	Migrated int    `json:"migrated"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	Complete bool   `json:"complete"`
}

func backfillRunResult(name string, r backfill.Result) BackfillRunResult {
	return BackfillRunResult{
		Name:     name,
		Migrated: r.Migrated,
		Skipped:  r.Skipped,
		Failed:   r.Failed,
		Complete: r.Complete(),
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}
