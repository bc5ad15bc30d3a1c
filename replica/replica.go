/*
Package replica is the ledger's entire surface toward a sync transport.

PURPOSE:
  The ledger has no knowledge of any wire protocol. A transport component
  pulls the outbox, pushes it wherever it pushes, acknowledges durable
  events, and hands over events received from other devices. Merging two
  devices' event sets is a set union keyed by event ID - no last-writer-wins
  overwrite ever occurs, because derivation tolerates any number of events
  per day from any number of devices.

RULES:
  (a) A locally-created event is never marked synced until the transport
      confirms remote persistence.
  (b) An ingested remote event keeps its id/operationId/createdAt/occurredAt
      verbatim and is marked isRemote and synced immediately - it is already
      durable by definition.
  (c) Ingesting an event the store already holds is DuplicateIgnored.

SEE ALSO:
  - ledger/store.go: QueryUnsynced / MarkSynced on the EventStore contract
*/
package replica

import (
	"context"
	"time"

	"github.com/warp/progress-ledger/ledger"
)

// Replicator exposes outbox, acknowledgment, and remote ingest over a store.
type Replicator struct {
	store ledger.EventStore
	clock func() time.Time
}

func New(store ledger.EventStore) *Replicator {
	return &Replicator{store: store, clock: time.Now}
}

// WithClock overrides the wall clock, for tests.
func (r *Replicator) WithClock(clock func() time.Time) *Replicator {
	r.clock = clock
	return r
}

// Outbox returns local events awaiting remote persistence, oldest first.
func (r *Replicator) Outbox(ctx context.Context) ([]ledger.Event, error) {
	return r.store.QueryUnsynced(ctx)
}

// Ack records that the transport persisted the event remotely. Only now
// does the event leave the outbox.
func (r *Replicator) Ack(ctx context.Context, id ledger.EventID) error {
	return r.store.MarkSynced(ctx, id, r.clock())
}

// IngestRemote applies an event replicated from another device. Identity
// and timestamps are preserved verbatim; only the bookkeeping fields are
// rewritten for the local store.
func (r *Replicator) IngestRemote(ctx context.Context, e ledger.Event) (ledger.AppendOutcome, error) {
	e.IsRemote = true
	e.Synced = true
	if e.LastSyncedAt == nil {
		now := r.clock()
		e.LastSyncedAt = &now
	}
	return r.store.Append(ctx, e)
}
