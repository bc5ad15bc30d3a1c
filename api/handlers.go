/*
handlers.go - HTTP handler implementations

PURPOSE:
  Thin HTTP adapters over the ledger, streak engine, backfill reconcilers,
  and replication surface. Handlers decode, delegate, and map errors; no
  business rule lives here.

ERROR MAPPING:
  ledger.IsClientError  -> 400 (deterministic validation failures)
  ledger.ErrEventNotFound -> 404
  everything else       -> 500 (transient store failures; caller retries)

SEE ALSO:
  - server.go: route wiring
  - dto.go: request/response shapes
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/progress-ledger/backfill"
	"github.com/warp/progress-ledger/ledger"
	"github.com/warp/progress-ledger/replica"
	"github.com/warp/progress-ledger/streak"
)

// Handler holds the wired components behind the HTTP surface.
type Handler struct {
	Ledger   *ledger.Ledger
	Streaks  *streak.Engine
	Replica  *replica.Replicator
	Schedule streak.ScheduleProvider

	// Backfills run in order when the admin endpoint fires; one reconciler
	// per legacy generation.
	Backfills []*backfill.Reconciler

	// RegisterHabit persists a habit; nil disables the habit endpoint.
	RegisterHabit func(ctx context.Context, id ledger.HabitID, userID ledger.UserID, name string, goal int) error
}

// =============================================================================
// HABITS
// =============================================================================

func (h *Handler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	var req CreateHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ID == "" || req.UserID == "" || req.GoalAmount <= 0 {
		writeError(w, http.StatusBadRequest, "id, userId and a positive goalAmount are required")
		return
	}
	if h.RegisterHabit == nil {
		writeError(w, http.StatusNotImplemented, "habit registry not configured")
		return
	}
	if err := h.RegisterHabit(r.Context(), ledger.HabitID(req.ID), ledger.UserID(req.UserID), req.Name, req.GoalAmount); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// =============================================================================
// EVENTS
// =============================================================================

func (h *Handler) AppendEvent(w http.ResponseWriter, r *http.Request) {
	var req AppendEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	loc := time.UTC
	if req.Timezone != "" {
		l, err := time.LoadLocation(req.Timezone)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown timezone: "+req.Timezone)
			return
		}
		loc = l
	}

	nonce := req.Nonce
	if nonce == "" {
		nonce = uuid.NewString()
	}
	clientMillis := req.ClientMillis
	if clientMillis == 0 {
		clientMillis = time.Now().UnixMilli()
	}

	change := ledger.Change{
		HabitID:      ledger.HabitID(req.HabitID),
		UserID:       ledger.UserID(req.UserID),
		DeviceID:     ledger.DeviceID(req.DeviceID),
		DateKey:      ledger.DateKey(req.DateKey),
		Type:         ledger.EventType(req.EventType),
		Delta:        req.Delta,
		ClientMillis: clientMillis,
		Nonce:        nonce,
		Timezone:     loc,
		Note:         req.Note,
		Metadata:     req.Metadata,
	}
	if req.OccurredAt != nil {
		change.OccurredAt = *req.OccurredAt
	}

	var (
		event   ledger.Event
		outcome ledger.AppendOutcome
		err     error
	)
	switch change.Type {
	case ledger.EventSet:
		event, outcome, err = h.Ledger.RecordSet(r.Context(), change, req.NewTotal)
	case ledger.EventSystemReset:
		event, outcome, err = h.Ledger.RecordReset(r.Context(), change)
	default:
		event, outcome, err = h.Ledger.Record(r.Context(), change)
	}
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	status := http.StatusCreated
	if outcome == ledger.DuplicateIgnored {
		status = http.StatusOK
	}
	writeJSON(w, status, AppendEventResponse{
		Event:   EventToDTO(event),
		Outcome: outcome.String(),
	})
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := ledger.EventID(chi.URLParam(r, "id"))
	if err := h.Ledger.SoftDelete(r.Context(), id); err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	habitID := ledger.HabitID(chi.URLParam(r, "habitID"))
	dateKey := ledger.DateKey(r.URL.Query().Get("date"))
	userID := ledger.UserID(r.URL.Query().Get("user"))

	if !dateKey.Valid() || userID == "" {
		writeError(w, http.StatusBadRequest, "date (yyyy-MM-dd) and user query params are required")
		return
	}

	goal, err := h.Schedule.GoalAmount(r.Context(), habitID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	key := ledger.DayKey{HabitID: habitID, DateKey: dateKey, UserID: userID}
	progress, err := h.Ledger.DailyProgress(r.Context(), key, goal)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	events := make([]EventDTO, 0, len(progress.Events))
	for _, e := range progress.Events {
		events = append(events, EventToDTO(e))
	}
	writeJSON(w, http.StatusOK, ProgressResponse{
		HabitID:   string(habitID),
		DateKey:   string(dateKey),
		UserID:    string(userID),
		Total:     progress.Total,
		Goal:      goal,
		Completed: progress.Completed,
		Events:    events,
	})
}

// =============================================================================
// STREAKS
// =============================================================================

func (h *Handler) GetStreak(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "userID"))
	state, err := h.Streaks.Current(r.Context(), userID)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, streakResponse(state))
}

func (h *Handler) CloseDay(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "userID"))
	date := ledger.DateKey(chi.URLParam(r, "date"))
	if !date.Valid() {
		writeError(w, http.StatusBadRequest, "date must be yyyy-MM-dd")
		return
	}
	state, err := h.Streaks.CloseDay(r.Context(), userID, date)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, streakResponse(state))
}

func (h *Handler) RecalculateStreak(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "userID"))

	var req RecalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	from, to := ledger.DateKey(req.From), ledger.DateKey(req.To)
	if !from.Valid() || !to.Valid() || to.Before(from) {
		writeError(w, http.StatusBadRequest, "from and to must be yyyy-MM-dd with from <= to")
		return
	}

	state, err := h.Streaks.Recalculate(r.Context(), userID, from, to)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, streakResponse(state))
}

func streakResponse(s streak.State) StreakResponse {
	return StreakResponse{
		UserID:            string(s.UserID),
		CurrentStreak:     s.CurrentStreak,
		LongestStreak:     s.LongestStreak,
		TotalCompleteDays: s.TotalCompleteDays,
		StreakHistory:     s.StreakHistory,
		LastCompleteDate:  string(s.LastCompleteDate),
		AverageStreak:     s.AverageStreak().String(),
	}
}

// =============================================================================
// BACKFILL
// =============================================================================

func (h *Handler) RunBackfill(w http.ResponseWriter, r *http.Request) {
	resp := BackfillResponse{Runs: []BackfillRunResult{}}
	for _, rec := range h.Backfills {
		result, err := rec.Run(r.Context())
		if err != nil {
			log.Printf("backfill %s aborted: %v", rec.FlagName, err)
			writeError(w, http.StatusInternalServerError, "backfill "+rec.FlagName+": "+err.Error())
			return
		}
		resp.Runs = append(resp.Runs, backfillRunResult(rec.FlagName, result))
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// SYNC SURFACE
// =============================================================================

func (h *Handler) GetOutbox(w http.ResponseWriter, r *http.Request) {
	events, err := h.Replica.Outbox(r.Context())
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	dtos := make([]EventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, EventToDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) AckSynced(w http.ResponseWriter, r *http.Request) {
	var req AckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.Replica.Ack(r.Context(), ledger.EventID(req.EventID)); err != nil {
		writeLedgerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) IngestRemote(w http.ResponseWriter, r *http.Request) {
	var dto EventDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	outcome, err := h.Replica.IngestRemote(r.Context(), DTOToEvent(dto))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": outcome.String()})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrEventNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
