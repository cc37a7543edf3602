package domain

import (
	"time"

	"github.com/google/uuid"
)

// AggregateTypeProduct is the aggregate type carried by every event of this service.
const AggregateTypeProduct = "Product"

// Message is anything the bus can route.
type Message interface {
	MessageID() uuid.UUID
	CreatedAt() time.Time
	// MessageType is the discriminator used for handler lookup and payload decoding.
	MessageType() string
}

// Command is an intent handled by exactly one handler.
type Command interface {
	Message
	command()
}

// Event is a fact about an aggregate, handled by zero or more handlers.
type Event interface {
	Message
	AggregateType() string
	AggregateID() string
	event()
}

// Metadata is embedded by every message.
type Metadata struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"created_at"`
}

func newMetadata() Metadata {
	return Metadata{ID: uuid.New(), Timestamp: time.Now().UTC()}
}

func (m Metadata) MessageID() uuid.UUID { return m.ID }
func (m Metadata) CreatedAt() time.Time { return m.Timestamp }
