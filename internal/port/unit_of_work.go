package port

import (
	"context"
	"errors"

	"github.com/rl1809/allocation/internal/core/domain"
)

// ErrConcurrencyConflict is returned by Commit when another unit of work
// changed the same aggregate first. Callers may retry the whole command.
var ErrConcurrencyConflict = errors.New("concurrency conflict")

type UnitOfWork interface {
	// Products is the repository bound to this unit of work's transaction
	Products() ProductRepository

	// Events is the catcher aggregates issue into during this unit of work
	Events() *domain.Catcher

	// Commit writes state and outbox envelopes atomically, then removes the envelopes
	Commit(ctx context.Context) error

	// Rollback discards uncommitted changes; it is a no-op after Commit
	Rollback(ctx context.Context) error
}

type UnitOfWorkFactory interface {
	// Begin opens a unit of work bound to the catcher carried by ctx
	Begin(ctx context.Context) (UnitOfWork, error)
}
