// Package order defines the domain model for tracked purchase orders.
package order

import "time"

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Lifecycle is the ordered status sequence. StatusCancelled sits outside
// the sequence as a terminal side-state.
var Lifecycle = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered}

// Valid reports whether s is a recognized status value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions leave s under the
// strict forward-only policy.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Rank returns the position of s in the lifecycle sequence, or -1 for
// statuses outside it (cancelled).
func (s Status) Rank() int {
	for i, ls := range Lifecycle {
		if ls == s {
			return i
		}
	}
	return -1
}

// LineItem is a single product line within an order.
// Subtotal is always Quantity * UnitPrice, recomputed on every mutation.
type LineItem struct {
	ID         int64  `json:"id"`
	ProductRef string `json:"productRef"`
	Name       string `json:"name"`
	Quantity   int32  `json:"quantity"`
	UnitPrice  int64  `json:"unitPrice"` // minor units (cents)
	Subtotal   int64  `json:"subtotal"`
}

// StatusChange records the first time an order reached a status.
type StatusChange struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Order is the canonical order record. Total and ItemCount are derived
// from Items and never drift: every mutation goes through Recompute.
type Order struct {
	ID            int64          `json:"id"`
	Owner         string         `json:"owner"`
	Items         []LineItem     `json:"items"`
	Status        Status         `json:"status"`
	Total         int64          `json:"total"`
	ItemCount     int32          `json:"itemCount"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	StatusHistory []StatusChange `json:"statusHistory"`
}

// Recompute refreshes every derived field from Items.
func (o *Order) Recompute() {
	var total int64
	var count int32
	for i := range o.Items {
		o.Items[i].Subtotal = int64(o.Items[i].Quantity) * o.Items[i].UnitPrice
		total += o.Items[i].Subtotal
		count += o.Items[i].Quantity
	}
	o.Total = total
	o.ItemCount = count
}

// ItemIndex returns the index of the line item with the given ID, or -1.
func (o *Order) ItemIndex(itemID int64) int {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// ItemIndexByProduct returns the index of the line item with the given
// product reference, or -1.
func (o *Order) ItemIndexByProduct(productRef string) int {
	for i := range o.Items {
		if o.Items[i].ProductRef == productRef {
			return i
		}
	}
	return -1
}

// RecordStatus appends {s, at} to the history unless s was reached before.
// The history stays ordered by time and holds at most one entry per status.
func (o *Order) RecordStatus(s Status, at time.Time) {
	for _, c := range o.StatusHistory {
		if c.Status == s {
			return
		}
	}
	o.StatusHistory = append(o.StatusHistory, StatusChange{Status: s, Timestamp: at})
}

// Clone returns a deep copy, so callers can never mutate store state
// through a returned order.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = make([]LineItem, len(o.Items))
	copy(c.Items, o.Items)
	c.StatusHistory = make([]StatusChange, len(o.StatusHistory))
	copy(c.StatusHistory, o.StatusHistory)
	return &c
}
