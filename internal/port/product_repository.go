package port

import (
	"context"

	"github.com/rl1809/allocation/internal/core/domain"
)

type ProductRepository interface {
	// Add tracks a new product for insertion on commit
	Add(ctx context.Context, product *domain.Product) error

	// Get returns the product for sku, or nil when absent
	Get(ctx context.Context, sku string) (*domain.Product, error)

	// GetByBatchRef returns the product owning the batch, or nil when absent
	GetByBatchRef(ctx context.Context, ref string) (*domain.Product, error)

	// Delete removes the product and its batches on commit
	Delete(ctx context.Context, product *domain.Product) error
}
