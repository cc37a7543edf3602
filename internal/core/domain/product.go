package domain

import (
	"errors"
	"fmt"
	"slices"
)

var ErrBatchNotFound = errors.New("batch not found")

// Product is the aggregate owning every batch of one sku.
type Product struct {
	Sku           string
	Batches       []*Batch
	VersionNumber int
}

func NewProduct(sku string, batches ...*Batch) *Product {
	return &Product{Sku: sku, Batches: batches}
}

func (p *Product) AddBatch(b *Batch) {
	p.Batches = append(p.Batches, b)
}

func (p *Product) Batch(ref string) *Batch {
	for _, b := range p.Batches {
		if b.Reference == ref {
			return b
		}
	}
	return nil
}

// Allocate places line on the preferred batch and returns its reference.
// When no batch can take the line it issues OutOfStock and returns "".
func (p *Product) Allocate(c *Catcher, line OrderLine) string {
	for _, b := range p.Batches {
		if b.Contains(line) {
			return b.Reference
		}
	}

	for _, b := range p.sortedBatches() {
		if !b.CanAllocate(line) {
			continue
		}
		b.Allocate(line)
		p.VersionNumber++
		c.Issue(NewAllocated(line.OrderID, line.Sku, line.Qty, b.Reference))
		return b.Reference
	}

	c.Issue(NewOutOfStock(line.Sku))
	return ""
}

// ChangeBatchQuantity resets the purchased quantity of ref and deallocates
// lines until the batch is no longer oversold.
func (p *Product) ChangeBatchQuantity(c *Catcher, ref string, qty int) error {
	b := p.Batch(ref)
	if b == nil {
		return fmt.Errorf("%w: %s", ErrBatchNotFound, ref)
	}

	b.PurchasedQuantity = qty
	for b.AvailableQuantity() < 0 {
		line, ok := b.DeallocateOne()
		if !ok {
			break
		}
		p.VersionNumber++
		c.Issue(NewDeallocated(line.OrderID, line.Sku, line.Qty))
	}
	return nil
}

func (p *Product) sortedBatches() []*Batch {
	sorted := slices.Clone(p.Batches)
	slices.SortStableFunc(sorted, func(a, b *Batch) int {
		switch {
		case a.before(b):
			return -1
		case b.before(a):
			return 1
		default:
			return 0
		}
	})
	return sorted
}
