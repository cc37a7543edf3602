package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/rl1809/allocation/internal/core/domain"
)

type Outbox interface {
	// Put stages an envelope
	Put(ctx context.Context, env domain.Envelope) error

	// All returns every undelivered envelope, oldest first
	All(ctx context.Context) ([]domain.Envelope, error)

	// Delete removes envelopes by id; unknown ids are ignored
	Delete(ctx context.Context, ids ...uuid.UUID) error
}
