package domain

// OrderLine is compared by value; equal lines are interchangeable.
type OrderLine struct {
	OrderID string
	Sku     string
	Qty     int
}
