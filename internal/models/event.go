package models

import (
	"encoding/binary"
	"fmt"
)

// EventID numbers committed events. Ids are dense and start at 1.
type EventID = uint64

// EventType discriminates the payload schema of an event. The numeric tags
// are part of the durable encoding: new types may be appended, existing tags
// must never be renumbered.
type EventType uint8

const (
	EventBalanceCreated EventType = iota
	EventBalanceDeposited
	EventBalanceWithdrawn
	EventBalanceTransferred
)

var eventTypeNames = map[EventType]string{
	EventBalanceCreated:     "BalanceCreated",
	EventBalanceDeposited:   "BalanceDeposited",
	EventBalanceWithdrawn:   "BalanceWithdrawn",
	EventBalanceTransferred: "BalanceTransferred",
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("EventType(%d)", uint8(t))
}

func (t EventType) MarshalJSON() ([]byte, error) {
	name, ok := eventTypeNames[t]
	if !ok {
		return nil, fmt.Errorf("unknown event type %d", uint8(t))
	}
	return []byte(`"` + name + `"`), nil
}

func (t *EventType) UnmarshalJSON(data []byte) error {
	for et, name := range eventTypeNames {
		if string(data) == `"`+name+`"` {
			*t = et
			return nil
		}
	}
	return fmt.Errorf("unknown event type %s", data)
}

// Event is an immutable record of one committed state change. Data holds the
// binary-encoded payload whose schema is determined by Type.
type Event struct {
	ID   EventID
	Type EventType
	Data []byte
}

// EncodeBinary returns the durable record form: 8-byte big-endian id, one
// type tag byte, then the payload bytes.
func (e Event) EncodeBinary() []byte {
	buf := make([]byte, 0, 9+len(e.Data))
	buf = binary.BigEndian.AppendUint64(buf, e.ID)
	buf = append(buf, byte(e.Type))
	buf = append(buf, e.Data...)
	return buf
}

func DecodeEvent(data []byte) (Event, error) {
	if len(data) < 9 {
		return Event{}, fmt.Errorf("event record: too short (%d bytes)", len(data))
	}
	t := EventType(data[8])
	if _, ok := eventTypeNames[t]; !ok {
		return Event{}, fmt.Errorf("event record: unknown type tag %d", data[8])
	}
	e := Event{
		ID:   binary.BigEndian.Uint64(data[:8]),
		Type: t,
	}
	if len(data) > 9 {
		e.Data = append([]byte(nil), data[9:]...)
	}
	return e, nil
}

// CreatedEvent is the payload of a BalanceCreated event.
type CreatedEvent struct {
	ID BalanceID `json:"id"`
}

func (e CreatedEvent) EncodeBinary() []byte {
	return binary.BigEndian.AppendUint64(nil, e.ID)
}

func DecodeCreated(data []byte) (CreatedEvent, error) {
	if len(data) != 8 {
		return CreatedEvent{}, fmt.Errorf("created payload: want 8 bytes, got %d", len(data))
	}
	return CreatedEvent{ID: binary.BigEndian.Uint64(data)}, nil
}

// DepositedEvent is the payload of a BalanceDeposited event.
type DepositedEvent struct {
	ID     BalanceID `json:"id"`
	Amount Amount    `json:"amount"`
}

func (e DepositedEvent) EncodeBinary() []byte {
	buf := binary.BigEndian.AppendUint64(nil, e.ID)
	return e.Amount.AppendBinary(buf)
}

func DecodeDeposited(data []byte) (DepositedEvent, error) {
	if len(data) != 8+amountBinaryLen {
		return DepositedEvent{}, fmt.Errorf("deposited payload: want %d bytes, got %d", 8+amountBinaryLen, len(data))
	}
	amount, err := AmountFromBinary(data[8:])
	if err != nil {
		return DepositedEvent{}, err
	}
	return DepositedEvent{ID: binary.BigEndian.Uint64(data[:8]), Amount: amount}, nil
}

// WithdrawnEvent is the payload of a BalanceWithdrawn event.
type WithdrawnEvent struct {
	ID     BalanceID `json:"id"`
	Amount Amount    `json:"amount"`
}

func (e WithdrawnEvent) EncodeBinary() []byte {
	buf := binary.BigEndian.AppendUint64(nil, e.ID)
	return e.Amount.AppendBinary(buf)
}

func DecodeWithdrawn(data []byte) (WithdrawnEvent, error) {
	if len(data) != 8+amountBinaryLen {
		return WithdrawnEvent{}, fmt.Errorf("withdrawn payload: want %d bytes, got %d", 8+amountBinaryLen, len(data))
	}
	amount, err := AmountFromBinary(data[8:])
	if err != nil {
		return WithdrawnEvent{}, err
	}
	return WithdrawnEvent{ID: binary.BigEndian.Uint64(data[:8]), Amount: amount}, nil
}

// TransferredEvent is the payload of a BalanceTransferred event.
type TransferredEvent struct {
	FromID BalanceID `json:"from_id"`
	ToID   BalanceID `json:"to_id"`
	Amount Amount    `json:"amount"`
}

func (e TransferredEvent) EncodeBinary() []byte {
	buf := binary.BigEndian.AppendUint64(nil, e.FromID)
	buf = binary.BigEndian.AppendUint64(buf, e.ToID)
	return e.Amount.AppendBinary(buf)
}

func DecodeTransferred(data []byte) (TransferredEvent, error) {
	if len(data) != 16+amountBinaryLen {
		return TransferredEvent{}, fmt.Errorf("transferred payload: want %d bytes, got %d", 16+amountBinaryLen, len(data))
	}
	amount, err := AmountFromBinary(data[16:])
	if err != nil {
		return TransferredEvent{}, err
	}
	return TransferredEvent{
		FromID: binary.BigEndian.Uint64(data[:8]),
		ToID:   binary.BigEndian.Uint64(data[8:16]),
		Amount: amount,
	}, nil
}

// DecodePayload decodes the binary payload of an event into the struct
// matching its type, ready for JSON wire encoding.
func DecodePayload(t EventType, data []byte) (any, error) {
	switch t {
	case EventBalanceCreated:
		return DecodeCreated(data)
	case EventBalanceDeposited:
		return DecodeDeposited(data)
	case EventBalanceWithdrawn:
		return DecodeWithdrawn(data)
	case EventBalanceTransferred:
		return DecodeTransferred(data)
	default:
		return nil, fmt.Errorf("unknown event type %d", uint8(t))
	}
}
