package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrUnknownEventType = errors.New("unknown event type")

// Envelope is the outbox row written for an event.
type Envelope struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	Type          string
	Payload       json.RawMessage
	Timestamp     time.Time
}

func NewEnvelope(evt Event) (Envelope, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s: %w", evt.MessageType(), err)
	}

	return Envelope{
		ID:            evt.MessageID(),
		AggregateType: evt.AggregateType(),
		AggregateID:   evt.AggregateID(),
		Type:          evt.MessageType(),
		Payload:       payload,
		Timestamp:     evt.CreatedAt(),
	}, nil
}

// Event decodes the payload back into the concrete event named by Type.
func (e Envelope) Event() (Event, error) {
	switch e.Type {
	case TypeAllocated:
		return decode[Allocated](e.Payload)
	case TypeDeallocated:
		return decode[Deallocated](e.Payload)
	case TypeOutOfStock:
		return decode[OutOfStock](e.Payload)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, e.Type)
	}
}

func decode[E Event](payload []byte) (Event, error) {
	var evt E
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", evt.MessageType(), err)
	}
	return evt, nil
}
