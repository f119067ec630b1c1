// Package store provides an interface for order storage operations.
package store

import (
	"context"

	"github.com/ordertrack/ordertrack/internal/order"
)

// NewItem carries the fields needed to add a line item to an order.
type NewItem struct {
	ProductRef string
	Name       string
	Quantity   int32
	UnitPrice  int64
}

// OrderStore is an interface for order storage operations.
// It abstracts the underlying data store, allowing for different
// implementations (in-memory, database).
//
// All mutating operations are atomic with respect to each other: no
// caller ever observes a partially-updated order. Returned orders are
// snapshots; mutating them does not affect store state.
type OrderStore interface {
	// Create adds a new order for the given owner with the initial status.
	// Returns ErrOwnerConflict when the one-order-per-owner policy is
	// enabled and the owner already has a live order.
	Create(ctx context.Context, owner string) (*order.Order, error)

	// Get retrieves a single order by its unique identifier.
	// Returns ErrOrderNotFound if no order exists with the given ID.
	Get(ctx context.Context, id int64) (*order.Order, error)

	// GetByOwner retrieves the live order for an owner. Only meaningful
	// under the one-order-per-owner policy; without it the earliest live
	// order wins. Returns ErrOrderNotFound if the owner has none.
	GetByOwner(ctx context.Context, owner string) (*order.Order, error)

	// List returns a snapshot of all orders in insertion order.
	List(ctx context.Context) ([]order.Order, error)

	// AddItem adds a line item to an order. An item with the same product
	// reference is merged by summing quantities; otherwise a new line item
	// is appended with a fresh identifier. Totals are recomputed.
	// Returns ErrOrderNotFound or ErrInvalidQuantity.
	AddItem(ctx context.Context, id int64, item NewItem) (*order.Order, error)

	// UpdateItemQuantity sets a line item's quantity. Zero removes the
	// item; negative values fail with ErrInvalidQuantity and leave the
	// order unchanged. Returns ErrOrderNotFound or ErrItemNotFound.
	UpdateItemQuantity(ctx context.Context, id, itemID int64, quantity int32) (*order.Order, error)

	// RemoveItem removes a line item from an order.
	// Returns ErrOrderNotFound or ErrItemNotFound.
	RemoveItem(ctx context.Context, id, itemID int64) (*order.Order, error)

	// Clear empties an order's items and zeroes its totals. The returned
	// bool is false (with a nil order) when the order does not exist.
	Clear(ctx context.Context, id int64) (*order.Order, bool, error)

	// Delete permanently removes an order. Returns false when the order
	// does not exist. Identifiers are never reused after deletion.
	Delete(ctx context.Context, id int64) (bool, error)

	// UpdateStatus applies a status transition under the store's exclusion
	// domain. The returned bool is false for the idempotent no-op case
	// (new status equals the current one): no history entry is appended
	// and the updated timestamp is untouched.
	// Returns ErrOrderNotFound, ErrInvalidStatus or ErrTransitionNotAllowed.
	UpdateStatus(ctx context.Context, id int64, newStatus order.Status) (*order.Order, bool, error)
}
