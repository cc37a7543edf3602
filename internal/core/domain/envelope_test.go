package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_PayloadDecodesToIssuedEvent(t *testing.T) {
	events := []Event{
		NewAllocated("o1", "sku1", 3, "b1"),
		NewDeallocated("o1", "sku1", 3),
		NewOutOfStock("sku1"),
	}

	for _, evt := range events {
		t.Run(evt.MessageType(), func(t *testing.T) {
			env, err := NewEnvelope(evt)
			require.NoError(t, err)

			assert.Equal(t, evt.MessageID(), env.ID)
			assert.Equal(t, AggregateTypeProduct, env.AggregateType)
			assert.Equal(t, "sku1", env.AggregateID)

			decoded, err := env.Event()
			require.NoError(t, err)
			assert.Equal(t, evt, decoded)
		})
	}
}

func TestEnvelope_UnknownType(t *testing.T) {
	_, err := Envelope{Type: "Shipped", Payload: []byte(`{}`)}.Event()
	assert.ErrorIs(t, err, ErrUnknownEventType)
}
