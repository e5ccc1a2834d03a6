package services

import (
	"encoding/json"
	"log"

	"github.com/paystream/ledger/internal/database"
	"github.com/paystream/ledger/internal/models"
)

// EventData is the wire form of one event: the variant payload is decoded
// from its durable binary form and re-encoded as JSON.
type EventData struct {
	ID        models.EventID   `json:"id"`
	EventType models.EventType `json:"event_type"`
	Data      json.RawMessage  `json:"data"`
}

// EventService exposes paged reads of the persisted event log in id order.
type EventService struct {
	store *database.Store
}

func NewEventService(store *database.Store) *EventService {
	return &EventService{store: store}
}

// ReadEvents returns up to limit events starting at the given 1-based
// offset, in strictly ascending id order. The upper bound is clamped to the
// current last_event_id. Records that are missing or fail to decode are
// skipped with a log line; consumers that need a gap-free stream must check
// the returned ids themselves.
func (s *EventService) ReadEvents(offset, limit uint64) ([]EventData, error) {
	if offset == 0 {
		offset = 1
	}
	last, err := s.store.GetUint64CF(database.CFEvents, database.LastEventIDKey)
	if err != nil {
		return nil, err
	}
	if last < offset || limit == 0 {
		return nil, nil
	}
	upper := last
	if max := offset + limit - 1; max < upper && max >= offset {
		upper = max
	}

	events := make([]EventData, 0, upper-offset+1)
	for id := offset; id <= upper; id++ {
		val, err := s.store.GetCF(database.CFEvents, database.Uint64Key(id))
		if err != nil {
			return nil, err
		}
		if val == nil {
			log.Printf("[EVENTS] missing event record %d", id)
			continue
		}
		event, err := models.DecodeEvent(val)
		if err != nil {
			log.Printf("[EVENTS] skipping undecodable event %d: %v", id, err)
			continue
		}
		payload, err := models.DecodePayload(event.Type, event.Data)
		if err != nil {
			log.Printf("[EVENTS] skipping event %d with bad payload: %v", id, err)
			continue
		}
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("[EVENTS] skipping event %d: %v", id, err)
			continue
		}
		events = append(events, EventData{
			ID:        event.ID,
			EventType: event.Type,
			Data:      data,
		})
	}
	return events, nil
}

// LastEventID reports the highest committed event id.
func (s *EventService) LastEventID() (models.EventID, error) {
	return s.store.GetUint64CF(database.CFEvents, database.LastEventIDKey)
}
