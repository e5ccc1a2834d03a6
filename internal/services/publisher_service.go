package services

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/paystream/ledger/internal/database"
)

// Producer sends one record to the external message bus and returns once
// the bus has acknowledged it.
type Producer interface {
	Send(ctx context.Context, key string, payload []byte) error
}

// PublisherService drains the persisted event log to the bus. Each
// iteration loads the durable offset, reads the next pooling-size window of
// events, sends them in id order, and advances the offset only after each
// acknowledgment. A crash between ack and offset write re-delivers, giving
// at-least-once semantics.
type PublisherService struct {
	events      *EventService
	store       *database.Store
	producer    Producer
	poolingSize uint64
	interval    time.Duration
	sendTimeout time.Duration
}

func NewPublisherService(events *EventService, store *database.Store, producer Producer, poolingSize uint64, interval, sendTimeout time.Duration) *PublisherService {
	return &PublisherService{
		events:      events,
		store:       store,
		producer:    producer,
		poolingSize: poolingSize,
		interval:    interval,
		sendTimeout: sendTimeout,
	}
}

// Run loops with a fixed delay between iterations until ctx is cancelled.
func (s *PublisherService) Run(ctx context.Context) {
	log.Printf("[PUBLISHER] started, interval %s", s.interval)
	for {
		s.PublishOnce(ctx)
		select {
		case <-ctx.Done():
			log.Println("[PUBLISHER] stopped")
			return
		case <-time.After(s.interval):
		}
	}
}

// PublishOnce performs a single iteration. Any failure halts the iteration
// without advancing the offset; the next tick retries from the same place.
func (s *PublisherService) PublishOnce(ctx context.Context) {
	offset, err := s.store.GetUint64CF(database.CFOffsets, database.OffsetKey)
	if err != nil {
		log.Printf("[PUBLISHER] failed to load offset: %v", err)
		return
	}
	events, err := s.events.ReadEvents(offset+1, s.poolingSize)
	if err != nil {
		log.Printf("[PUBLISHER] failed to read events: %v", err)
		return
	}

	next := offset + 1
	for _, event := range events {
		if event.ID != next {
			// The reader skipped a record it could not decode. Delivery
			// must stay gap free, so stop here and keep retrying.
			log.Printf("[PUBLISHER] gap in event log: expected %d, got %d", next, event.ID)
			return
		}
		payload, err := json.Marshal(event)
		if err != nil {
			log.Printf("[PUBLISHER] failed to encode event %d: %v", event.ID, err)
			return
		}
		sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
		err = s.producer.Send(sendCtx, strconv.FormatUint(event.ID, 10), payload)
		cancel()
		if err != nil {
			log.Printf("[PUBLISHER] failed to send event %d: %v", event.ID, err)
			return
		}
		if err := s.store.SetUint64CF(database.CFOffsets, database.OffsetKey, event.ID); err != nil {
			log.Printf("[PUBLISHER] failed to advance offset to %d: %v", event.ID, err)
			return
		}
		next++
	}
}

// Offset reports the id of the last event acknowledged by the bus.
func (s *PublisherService) Offset() (uint64, error) {
	return s.store.GetUint64CF(database.CFOffsets, database.OffsetKey)
}
