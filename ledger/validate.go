/*
validate.go - Event validation before append

PURPOSE:
  Rejects malformed events before they reach the store. Validation is
  deterministic and synchronous: a bad event fails the same way every time
  and is never partially stored.

SEE ALSO:
  - errors.go: InvalidEventError
  - ledger.go: calls Validate on every append path
*/
package ledger

import "time"

// ClockSkewTolerance is how far in the future OccurredAt may sit before the
// event is rejected. Devices with mildly wrong clocks still get through;
// events "from tomorrow" do not.
const ClockSkewTolerance = 5 * time.Minute

// Validate checks the event invariants against now. Returns nil or an
// *InvalidEventError wrapping ErrInvalidEvent.
func Validate(e Event, now time.Time) error {
	if e.ID == "" {
		return &InvalidEventError{Field: "id", Reason: "empty"}
	}
	if e.OperationID == "" {
		return &InvalidEventError{Field: "operationId", Reason: "empty"}
	}
	if e.HabitID == "" {
		return &InvalidEventError{Field: "habitId", Reason: "empty"}
	}
	if e.UserID == "" {
		return &InvalidEventError{Field: "userId", Reason: "empty"}
	}
	if !e.DateKey.Valid() {
		return &InvalidEventError{Field: "dateKey", Reason: "not a yyyy-MM-dd date: " + string(e.DateKey)}
	}
	if !e.Type.Known() {
		return &InvalidEventError{Field: "eventType", Reason: "unknown type: " + string(e.Type)}
	}
	if !e.UTCDayEnd.After(e.UTCDayStart) {
		return &InvalidEventError{Field: "utcDayEnd", Reason: "must be after utcDayStart"}
	}
	if e.OccurredAt.After(now.Add(ClockSkewTolerance)) {
		return &InvalidEventError{Field: "occurredAt", Reason: "in the future beyond clock-skew tolerance"}
	}
	return nil
}
