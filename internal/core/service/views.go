package service

import (
	"context"

	"github.com/rl1809/allocation/internal/port"
)

// Allocations lists the batches an order was allocated to.
func Allocations(ctx context.Context, views port.AllocationsView, orderID string) ([]port.AllocationView, error) {
	return views.ForOrder(ctx, orderID)
}
