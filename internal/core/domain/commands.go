package domain

import "time"

const (
	TypeCreateBatch         = "CreateBatch"
	TypeAllocate            = "Allocate"
	TypeChangeBatchQuantity = "ChangeBatchQuantity"
)

type CreateBatch struct {
	Metadata
	Ref string     `json:"ref"`
	Sku string     `json:"sku"`
	Qty int        `json:"qty"`
	ETA *time.Time `json:"eta,omitempty"`
}

func NewCreateBatch(ref, sku string, qty int, eta *time.Time) CreateBatch {
	return CreateBatch{Metadata: newMetadata(), Ref: ref, Sku: sku, Qty: qty, ETA: eta}
}

func (CreateBatch) MessageType() string { return TypeCreateBatch }
func (CreateBatch) command()            {}

type Allocate struct {
	Metadata
	OrderID string `json:"order_id"`
	Sku     string `json:"sku"`
	Qty     int    `json:"qty"`
}

func NewAllocate(orderID, sku string, qty int) Allocate {
	return Allocate{Metadata: newMetadata(), OrderID: orderID, Sku: sku, Qty: qty}
}

func (Allocate) MessageType() string { return TypeAllocate }
func (Allocate) command()            {}

type ChangeBatchQuantity struct {
	Metadata
	Ref string `json:"ref"`
	Qty int    `json:"qty"`
}

func NewChangeBatchQuantity(ref string, qty int) ChangeBatchQuantity {
	return ChangeBatchQuantity{Metadata: newMetadata(), Ref: ref, Qty: qty}
}

func (ChangeBatchQuantity) MessageType() string { return TypeChangeBatchQuantity }
func (ChangeBatchQuantity) command()            {}
