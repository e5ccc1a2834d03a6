package database

import (
	"encoding/binary"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Column families, emulated as key prefixes on a single badger DB. The
// balances and events partitions hold the ledger proper; offsets holds the
// publisher's durable cursor.
const (
	CFBalances = "balances"
	CFEvents   = "events"
	CFOffsets  = "offsets"
)

// Literal counter keys inside their partitions.
var (
	LastEventIDKey = []byte("last_event_id")
	OffsetKey      = []byte("offset")
)

// Store wraps the embedded key-value engine. It supports point gets, prefix
// iteration per column family, and atomic multi-key batch writes; the
// command writer and the publisher's reader share it concurrently.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store at path.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// KeyWithCF prefixes a key with its column family name.
func KeyWithCF(cf string, key []byte) []byte {
	return append([]byte(cf+"_"), key...)
}

// Uint64Key returns the 8-byte big-endian key form of an id.
func Uint64Key(id uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, id)
}

// GetCF reads one value. A missing key returns (nil, nil).
func (s *Store) GetCF(cf string, key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(KeyWithCF(cf, key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%x: %w", cf, key, err)
	}
	return val, nil
}

// GetUint64CF reads an 8-byte big-endian counter; a missing key reads as 0.
func (s *Store) GetUint64CF(cf string, key []byte) (uint64, error) {
	val, err := s.GetCF(cf, key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return 0, nil
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("counter %s/%s: want 8 bytes, got %d", cf, key, len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

// SetUint64CF writes an 8-byte big-endian counter outside of any batch.
func (s *Store) SetUint64CF(cf string, key []byte, v uint64) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(KeyWithCF(cf, key), binary.BigEndian.AppendUint64(nil, v))
	})
}

// IterateCF walks every key of a column family in key order, invoking fn
// with the key (prefix stripped) and value.
func (s *Store) IterateCF(cf string, fn func(key, val []byte) error) error {
	prefix := []byte(cf + "_")
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := fn(item.Key()[len(prefix):], val); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteBatch is a set of staged writes applied in one atomic engine
// transaction: either every entry becomes visible or none does.
type WriteBatch struct {
	entries []batchEntry
}

type batchEntry struct {
	key []byte
	val []byte
}

func (wb *WriteBatch) SetCF(cf string, key, val []byte) {
	wb.entries = append(wb.entries, batchEntry{key: KeyWithCF(cf, key), val: val})
}

func (wb *WriteBatch) Len() int {
	return len(wb.entries)
}

func (wb *WriteBatch) Reset() {
	wb.entries = wb.entries[:0]
}

// Write applies the batch atomically. Entries are applied in stage order,
// so a later write to the same key wins.
func (s *Store) Write(wb *WriteBatch) error {
	if wb.Len() == 0 {
		return nil
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, e := range wb.entries {
			if err := txn.Set(e.key, e.val); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("batch write (%d entries): %w", wb.Len(), err)
	}
	return nil
}
