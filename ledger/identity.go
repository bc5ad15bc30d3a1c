/*
identity.go - Deterministic event and operation identity

PURPOSE:
  Computes stable IDs so retried or concurrently-repeated writes collapse to
  the same record. A client that does not know whether its previous append
  succeeded can safely re-append: the store recognizes the duplicate ID (or
  operation ID) and discards it.

WHY DETERMINISTIC?
  Multiple devices write to the same ledger with no coordination. Random IDs
  would turn every retransmission into a duplicate event and double-count
  progress. Hashing the identity inputs makes the ID a pure function of what
  the event IS, not of when it was generated.

SEQUENCE NUMBERS:
  MakeEventID takes a per-(habit, date, device) sequence number maintained by
  an external SequenceAllocator (see store.go). The ledger never allocates
  sequences; it only relies on them being unique per scope so two distinct
  logical events on the same day and device get distinct IDs.

BACKFILL IDS:
  MakeBackfillEventID and MakeBackfillOperationID are derived from
  (migration, habitID, dateKey) with no time component, so reruns of one
  migration recognize the previously created backfill event and skip it,
  while a later migration generation topping up the same day derives fresh
  identity and is never swallowed as a duplicate of the earlier one.

SEE ALSO:
  - store.go: SequenceAllocator contract
  - backfill package: the only producer of backfill operation IDs
*/
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// =============================================================================
// IDENTITY DERIVATION
// =============================================================================

// identity inputs are joined with a separator that cannot appear in IDs or
// date keys, then hashed. Callers must never include the separator in raw
// identifier values.
const idSeparator = "\x1f"

func deriveID(prefix string, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, idSeparator)))
	return prefix + "-" + hex.EncodeToString(sum[:16])
}

// MakeEventID derives the stable event ID for a logical event.
// Pure, total, and stable: identical inputs always yield the identical ID.
// Two events with identical derivation inputs are the same event.
func MakeEventID(habitID HabitID, dateKey DateKey, deviceID DeviceID, sequence int64) EventID {
	return EventID(deriveID("evt",
		string(habitID), string(dateKey), string(deviceID),
		fmt.Sprintf("%d", sequence)))
}

// MakeOperationID derives the idempotency key for a logical write.
// clientMillis is the client wall-clock in milliseconds; nonce disambiguates
// writes issued in the same millisecond.
func MakeOperationID(deviceID DeviceID, clientMillis int64, nonce string) OperationID {
	return OperationID(deriveID("op",
		string(deviceID), fmt.Sprintf("%d", clientMillis), nonce))
}

// MakeBackfillEventID derives the stable event ID for a synthetic backfill
// event. Time-independent within one migration: reruns for the same
// (habit, day) produce the same ID and collapse to one event. The migration
// name keeps distinct legacy generations from colliding on the same day.
func MakeBackfillEventID(migration string, habitID HabitID, dateKey DateKey) EventID {
	return EventID(deriveID("evt-backfill", migration, string(habitID), string(dateKey)))
}

// MakeBackfillOperationID derives the stable operation ID for a synthetic
// backfill event, namespaced per migration like MakeBackfillEventID.
func MakeBackfillOperationID(migration string, habitID HabitID, dateKey DateKey) OperationID {
	return OperationID(deriveID("op-backfill", migration, string(habitID), string(dateKey)))
}

// BackfillDeviceID is the synthetic device provenance recorded on events the
// reconciler creates.
const BackfillDeviceID DeviceID = "backfill"
