package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func makeBatchAndLine(sku string, batchQty, lineQty int) (*Batch, OrderLine) {
	return NewBatch("batch-001", sku, batchQty, nil),
		OrderLine{OrderID: "order-123", Sku: sku, Qty: lineQty}
}

func TestBatch_AllocatingReducesAvailableQuantity(t *testing.T) {
	batch, line := makeBatchAndLine("SMALL-TABLE", 20, 2)

	batch.Allocate(line)

	assert.Equal(t, 18, batch.AvailableQuantity())
}

func TestBatch_CanAllocate(t *testing.T) {
	tests := []struct {
		name     string
		batchQty int
		lineQty  int
		want     bool
	}{
		{name: "available greater than required", batchQty: 20, lineQty: 2, want: true},
		{name: "available smaller than required", batchQty: 2, lineQty: 20, want: false},
		{name: "available equal to required", batchQty: 2, lineQty: 2, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, line := makeBatchAndLine("ELEGANT-LAMP", tt.batchQty, tt.lineQty)
			assert.Equal(t, tt.want, batch.CanAllocate(line))
		})
	}
}

func TestBatch_CannotAllocateIfSkusDoNotMatch(t *testing.T) {
	batch := NewBatch("batch-001", "UNCOMFORTABLE-CHAIR", 100, nil)
	line := OrderLine{OrderID: "order-123", Sku: "EXPENSIVE-TOASTER", Qty: 10}

	assert.False(t, batch.CanAllocate(line))
}

func TestBatch_AllocationIsIdempotent(t *testing.T) {
	batch, line := makeBatchAndLine("ANGULAR-DESK", 20, 2)

	batch.Allocate(line)
	batch.Allocate(line)

	assert.Equal(t, 18, batch.AvailableQuantity())
}

func TestBatch_DeallocateOne(t *testing.T) {
	batch, line := makeBatchAndLine("ANGULAR-DESK", 20, 2)
	batch.Allocate(line)

	got, ok := batch.DeallocateOne()
	assert.True(t, ok)
	assert.Equal(t, line, got)
	assert.Equal(t, 20, batch.AvailableQuantity())

	_, ok = batch.DeallocateOne()
	assert.False(t, ok)
}
