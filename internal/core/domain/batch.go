package domain

import "time"

type Batch struct {
	Reference         string
	Sku               string
	ETA               *time.Time // nil means already in the warehouse
	PurchasedQuantity int
	allocations       map[OrderLine]struct{}
}

func NewBatch(ref, sku string, qty int, eta *time.Time) *Batch {
	return &Batch{
		Reference:         ref,
		Sku:               sku,
		ETA:               eta,
		PurchasedQuantity: qty,
		allocations:       make(map[OrderLine]struct{}),
	}
}

// RestoreBatch rebuilds a persisted batch without re-checking availability.
func RestoreBatch(ref, sku string, qty int, eta *time.Time, lines []OrderLine) *Batch {
	b := NewBatch(ref, sku, qty, eta)
	for _, line := range lines {
		b.allocations[line] = struct{}{}
	}
	return b
}

func (b *Batch) Allocations() []OrderLine {
	lines := make([]OrderLine, 0, len(b.allocations))
	for line := range b.allocations {
		lines = append(lines, line)
	}
	return lines
}

func (b *Batch) AllocatedQuantity() int {
	total := 0
	for line := range b.allocations {
		total += line.Qty
	}
	return total
}

func (b *Batch) AvailableQuantity() int {
	return b.PurchasedQuantity - b.AllocatedQuantity()
}

func (b *Batch) CanAllocate(line OrderLine) bool {
	return b.Sku == line.Sku && b.AvailableQuantity() >= line.Qty
}

func (b *Batch) Contains(line OrderLine) bool {
	_, ok := b.allocations[line]
	return ok
}

// Allocate adds the line if it fits. Allocating an equal line twice is a no-op.
func (b *Batch) Allocate(line OrderLine) {
	if b.CanAllocate(line) {
		b.allocations[line] = struct{}{}
	}
}

func (b *Batch) Deallocate(line OrderLine) {
	delete(b.allocations, line)
}

// DeallocateOne removes an arbitrary allocated line.
func (b *Batch) DeallocateOne() (OrderLine, bool) {
	for line := range b.allocations {
		delete(b.allocations, line)
		return line, true
	}
	return OrderLine{}, false
}

// before orders warehouse stock ahead of shipments, then shipments by eta.
func (b *Batch) before(other *Batch) bool {
	switch {
	case b.ETA == nil:
		return other.ETA != nil
	case other.ETA == nil:
		return false
	default:
		return b.ETA.Before(*other.ETA)
	}
}
