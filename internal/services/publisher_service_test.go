package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/paystream/ledger/internal/database"
	"github.com/paystream/ledger/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingProducer captures sends and can be told to start failing.
type recordingProducer struct {
	keys     []string
	payloads [][]byte
	failFrom int // fail once len(keys) reaches this value; -1 never fails
}

func (p *recordingProducer) Send(_ context.Context, key string, payload []byte) error {
	if p.failFrom >= 0 && len(p.keys) >= p.failFrom {
		return errors.New("broker unavailable")
	}
	p.keys = append(p.keys, key)
	p.payloads = append(p.payloads, append([]byte(nil), payload...))
	return nil
}

func newTestPublisher(t *testing.T, producer Producer, poolingSize uint64) (*PublisherService, *database.Store) {
	t.Helper()
	store, err := database.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	events := NewEventService(store)
	return NewPublisherService(events, store, producer, poolingSize, time.Millisecond, time.Second), store
}

func TestPublisher_DrainsLogInOrder(t *testing.T) {
	producer := &recordingProducer{failFrom: -1}
	publisher, store := newTestPublisher(t, producer, 100)
	seedEvents(t, store, 3)

	publisher.PublishOnce(context.Background())

	assert.Equal(t, []string{"1", "2", "3"}, producer.keys)
	offset, err := publisher.Offset()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), offset)

	var sent EventData
	require.NoError(t, json.Unmarshal(producer.payloads[1], &sent))
	assert.Equal(t, uint64(2), sent.ID)
	assert.Equal(t, models.EventBalanceDeposited, sent.EventType)

	// Nothing new, nothing sent.
	publisher.PublishOnce(context.Background())
	assert.Len(t, producer.keys, 3)
}

func TestPublisher_PoolingSizeWindows(t *testing.T) {
	producer := &recordingProducer{failFrom: -1}
	publisher, store := newTestPublisher(t, producer, 2)
	seedEvents(t, store, 5)

	publisher.PublishOnce(context.Background())
	assert.Equal(t, []string{"1", "2"}, producer.keys)

	publisher.PublishOnce(context.Background())
	publisher.PublishOnce(context.Background())
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, producer.keys)

	offset, err := publisher.Offset()
	require.NoError(t, err)
	assert.Equal(t, uint64(5), offset)
}

func TestPublisher_SendFailureKeepsOffset(t *testing.T) {
	producer := &recordingProducer{failFrom: 2}
	publisher, store := newTestPublisher(t, producer, 100)
	seedEvents(t, store, 4)

	publisher.PublishOnce(context.Background())
	assert.Equal(t, []string{"1", "2"}, producer.keys)

	// Offset covers only the acknowledged events.
	offset, err := publisher.Offset()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), offset)

	// Once the broker recovers, delivery resumes where it stopped. Events 1
	// and 2 are never re-sent because their offset write was durable.
	producer.failFrom = -1
	publisher.PublishOnce(context.Background())
	assert.Equal(t, []string{"1", "2", "3", "4"}, producer.keys)
}

func TestPublisher_HaltsOnGap(t *testing.T) {
	producer := &recordingProducer{failFrom: -1}
	publisher, store := newTestPublisher(t, producer, 100)
	seedEvents(t, store, 3)

	// Corrupt the middle record so the reader skips it.
	wb := &database.WriteBatch{}
	wb.SetCF(database.CFEvents, database.Uint64Key(2), []byte{0x00})
	require.NoError(t, store.Write(wb))

	publisher.PublishOnce(context.Background())
	assert.Equal(t, []string{"1"}, producer.keys)

	offset, err := publisher.Offset()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), offset)

	// Retrying does not jump the gap or advance past it.
	publisher.PublishOnce(context.Background())
	assert.Equal(t, []string{"1"}, producer.keys)
}

func TestPublisher_RedeliversAfterOffsetLoss(t *testing.T) {
	// At-least-once: if the offset write is lost after an ack, the event is
	// delivered again on the next iteration.
	producer := &recordingProducer{failFrom: -1}
	publisher, store := newTestPublisher(t, producer, 100)
	seedEvents(t, store, 2)

	publisher.PublishOnce(context.Background())
	assert.Equal(t, []string{"1", "2"}, producer.keys)

	// Roll the durable offset back, as if the last write never hit disk.
	require.NoError(t, store.SetUint64CF(database.CFOffsets, database.OffsetKey, 1))

	publisher.PublishOnce(context.Background())
	assert.Equal(t, []string{"1", "2", "2"}, producer.keys)
}
