package domain

const (
	TypeAllocated   = "Allocated"
	TypeDeallocated = "Deallocated"
	TypeOutOfStock  = "OutOfStock"
)

// productEvent gives the aggregate accessors shared by all Product events.
type productEvent struct {
	Metadata
	Sku string `json:"sku"`
}

func (productEvent) AggregateType() string { return AggregateTypeProduct }
func (e productEvent) AggregateID() string { return e.Sku }
func (productEvent) event()                {}

type Allocated struct {
	productEvent
	OrderID  string `json:"order_id"`
	Qty      int    `json:"qty"`
	BatchRef string `json:"batchref"`
}

func NewAllocated(orderID, sku string, qty int, batchRef string) Allocated {
	return Allocated{
		productEvent: productEvent{Metadata: newMetadata(), Sku: sku},
		OrderID:      orderID,
		Qty:          qty,
		BatchRef:     batchRef,
	}
}

func (Allocated) MessageType() string { return TypeAllocated }

type Deallocated struct {
	productEvent
	OrderID string `json:"order_id"`
	Qty     int    `json:"qty"`
}

func NewDeallocated(orderID, sku string, qty int) Deallocated {
	return Deallocated{
		productEvent: productEvent{Metadata: newMetadata(), Sku: sku},
		OrderID:      orderID,
		Qty:          qty,
	}
}

func (Deallocated) MessageType() string { return TypeDeallocated }

type OutOfStock struct {
	productEvent
}

func NewOutOfStock(sku string) OutOfStock {
	return OutOfStock{productEvent: productEvent{Metadata: newMetadata(), Sku: sku}}
}

func (OutOfStock) MessageType() string { return TypeOutOfStock }
