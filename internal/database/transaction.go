package database

import (
	"errors"

	"github.com/paystream/ledger/internal/models"
)

// ErrTxnDone is returned when a transaction is used after Commit or Rollback.
var ErrTxnDone = errors.New("transaction already finished")

// Txn scopes the writes of one command. StageBalance and StageEvent queue
// records; Commit flushes them to the store in a single atomic batch and
// Rollback discards them. A Txn that is dropped without Commit writes
// nothing, so losing the reference is equivalent to Rollback.
type Txn struct {
	store       *Store
	wb          WriteBatch
	nextEventID models.EventID
	done        bool
}

// Begin opens a new write transaction. Transactions are not shared across
// writers; the single-writer command loop opens one per command.
func (s *Store) Begin() *Txn {
	return &Txn{store: s}
}

// StageBalance queues an upsert of the balance record under the balances
// partition.
func (t *Txn) StageBalance(b models.Balance) {
	t.wb.SetCF(CFBalances, Uint64Key(b.ID), b.EncodeBinary())
}

// StageEvent allocates the next event id, queues the event record under the
// events partition, and queues the last_event_id counter update, all in the
// same batch. The first allocation reads the counter from the store; the
// single-writer discipline makes the read-modify-write race free.
func (t *Txn) StageEvent(eventType models.EventType, payload []byte) (models.EventID, error) {
	if t.done {
		return 0, ErrTxnDone
	}
	if t.nextEventID == 0 {
		last, err := t.store.GetUint64CF(CFEvents, LastEventIDKey)
		if err != nil {
			return 0, err
		}
		t.nextEventID = last + 1
	} else {
		t.nextEventID++
	}
	id := t.nextEventID
	event := models.Event{ID: id, Type: eventType, Data: payload}
	t.wb.SetCF(CFEvents, Uint64Key(id), event.EncodeBinary())
	t.wb.SetCF(CFEvents, LastEventIDKey, Uint64Key(id))
	return id, nil
}

// Commit applies all staged writes atomically.
func (t *Txn) Commit() error {
	if t.done {
		return ErrTxnDone
	}
	t.done = true
	return t.store.Write(&t.wb)
}

// Rollback discards the staged writes.
func (t *Txn) Rollback() {
	t.done = true
	t.wb.Reset()
}
