package port

import "context"

type AllocationView struct {
	Sku      string `json:"sku"`
	BatchRef string `json:"batchref"`
}

type AllocationsView interface {
	// Add upserts the row for (orderID, sku)
	Add(ctx context.Context, orderID, sku, batchRef string) error

	// Remove deletes the row for (orderID, sku)
	Remove(ctx context.Context, orderID, sku string) error

	// ForOrder lists the allocations of an order
	ForOrder(ctx context.Context, orderID string) ([]AllocationView, error)
}
