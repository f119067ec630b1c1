// Package service provides the implementation of order-related business logic.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/ordertrack/ordertrack/internal/broadcast"
	"github.com/ordertrack/ordertrack/internal/order"
	"github.com/ordertrack/ordertrack/internal/status"
	"github.com/ordertrack/ordertrack/internal/store"
	"github.com/ordertrack/ordertrack/pkg/messaging"
	"github.com/ordertrack/ordertrack/pkg/messaging/events"
)

// OrderService defines the methods for managing orders. Every mutation
// is applied atomically by the store; on success the outcome is
// broadcast to subscribers, strictly after the mutation committed.
type OrderService interface {
	// Create adds a new order, optionally seeded with line items.
	// Returns ErrOwnerConflict under the one-order-per-owner policy.
	Create(ctx context.Context, dto OrderCreateDto) (*order.Order, error)

	// Get retrieves a single order by its unique identifier.
	// Returns ErrOrderNotFound if no order exists with the given ID.
	Get(ctx context.Context, id int64) (*order.Order, error)

	// GetByOwner retrieves the live order for an owner.
	// Returns ErrOrderNotFound if the owner has none.
	GetByOwner(ctx context.Context, owner string) (*order.Order, error)

	// List returns a snapshot of all orders in insertion order.
	List(ctx context.Context) ([]order.Order, error)

	// AddItem adds a line item to an order, merging by product reference.
	AddItem(ctx context.Context, id int64, dto ItemCreateDto) (*order.Order, error)

	// UpdateItemQuantity sets a line item's quantity; zero removes it.
	UpdateItemQuantity(ctx context.Context, id, itemID int64, quantity int32) (*order.Order, error)

	// RemoveItem removes a line item from an order.
	RemoveItem(ctx context.Context, id, itemID int64) (*order.Order, error)

	// Clear empties an order's items. Returns false if the order is absent.
	Clear(ctx context.Context, id int64) (bool, error)

	// Delete permanently removes an order. Returns false if absent.
	Delete(ctx context.Context, id int64) (bool, error)

	// UpdateStatus applies a status transition. Repeating the current
	// status is a no-op: no history entry, no broadcast.
	UpdateStatus(ctx context.Context, id int64, rawStatus string) (*order.Order, error)
}

// Service implements OrderService over an OrderStore and a broadcast
// dispatcher, with an optional broker relay.
type Service struct {
	orderStore    store.OrderStore
	dispatcher    *broadcast.Dispatcher
	relay         messaging.Publisher // nil when the relay is disabled
	logger        *slog.Logger
	ordersCounter metric.Int64Counter
}

// NewService creates a new instance of OrderService with the provided
// store and dispatcher. relay may be nil.
func NewService(orderStore store.OrderStore, dispatcher *broadcast.Dispatcher, relay messaging.Publisher, logger *slog.Logger) *Service {
	meter := otel.Meter("ordertrack")
	ordersCounter, err := meter.Int64Counter("orders_created", metric.WithDescription("Total number of created orders"))
	if err != nil {
		panic(fmt.Sprintf("failed to create orders_created counter: %v", err))
	}
	return &Service{
		orderStore:    orderStore,
		dispatcher:    dispatcher,
		relay:         relay,
		logger:        logger.With("component", "service"),
		ordersCounter: ordersCounter,
	}
}

// OrderCreateDto represents the data transfer object for creating a new order.
type OrderCreateDto struct {
	Owner string          `json:"owner" validate:"required"`
	Items []ItemCreateDto `json:"items" validate:"omitempty,dive"`
}

// ItemCreateDto represents the data transfer object for adding a line item.
type ItemCreateDto struct {
	ProductRef string `json:"productRef" validate:"required"`
	Name       string `json:"name" validate:"required"`
	Quantity   int32  `json:"quantity" validate:"required,min=1"`
	UnitPrice  int64  `json:"unitPrice" validate:"required,min=1"`
}

// ItemQuantityDto represents the data transfer object for a quantity update.
type ItemQuantityDto struct {
	Quantity int32 `json:"quantity" validate:"min=0"`
}

// StatusUpdateDto represents the data transfer object for a status change.
type StatusUpdateDto struct {
	Status string `json:"status" validate:"required"`
}

func (s *Service) Create(ctx context.Context, dto OrderCreateDto) (*order.Order, error) {
	created, err := s.orderStore.Create(ctx, dto.Owner)
	if err != nil {
		return nil, err
	}
	for _, item := range dto.Items {
		created, err = s.orderStore.AddItem(ctx, created.ID, store.NewItem{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
		})
		if err != nil {
			return nil, err
		}
	}

	s.ordersCounter.Add(ctx, 1)
	s.publish(ctx, broadcast.EventOrderCreated, created)
	return created, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*order.Order, error) {
	return s.orderStore.Get(ctx, id)
}

func (s *Service) GetByOwner(ctx context.Context, owner string) (*order.Order, error) {
	return s.orderStore.GetByOwner(ctx, owner)
}

func (s *Service) List(ctx context.Context) ([]order.Order, error) {
	return s.orderStore.List(ctx)
}

func (s *Service) AddItem(ctx context.Context, id int64, dto ItemCreateDto) (*order.Order, error) {
	updated, err := s.orderStore.AddItem(ctx, id, store.NewItem{
		ProductRef: dto.ProductRef,
		Name:       dto.Name,
		Quantity:   dto.Quantity,
		UnitPrice:  dto.UnitPrice,
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, broadcast.EventOrderUpdated, updated)
	return updated, nil
}

func (s *Service) UpdateItemQuantity(ctx context.Context, id, itemID int64, quantity int32) (*order.Order, error) {
	updated, err := s.orderStore.UpdateItemQuantity(ctx, id, itemID, quantity)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, broadcast.EventOrderUpdated, updated)
	return updated, nil
}

func (s *Service) RemoveItem(ctx context.Context, id, itemID int64) (*order.Order, error) {
	updated, err := s.orderStore.RemoveItem(ctx, id, itemID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, broadcast.EventOrderUpdated, updated)
	return updated, nil
}

func (s *Service) Clear(ctx context.Context, id int64) (bool, error) {
	cleared, ok, err := s.orderStore.Clear(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	s.publish(ctx, broadcast.EventOrderUpdated, cleared)
	return true, nil
}

func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	return s.orderStore.Delete(ctx, id)
}

func (s *Service) UpdateStatus(ctx context.Context, id int64, rawStatus string) (*order.Order, error) {
	newStatus, err := status.Parse(rawStatus)
	if err != nil {
		return nil, err
	}
	updated, changed, err := s.orderStore.UpdateStatus(ctx, id, newStatus)
	if err != nil {
		return nil, err
	}
	if changed {
		s.publish(ctx, broadcast.EventStatusUpdated, updated)
	}
	return updated, nil
}

// publish fans the committed mutation out to live subscribers and, when
// a relay is configured, to the broker. Neither path can fail the caller.
func (s *Service) publish(ctx context.Context, eventType broadcast.EventType, o *order.Order) {
	s.dispatcher.Publish(ctx, eventType, o)

	if s.relay == nil {
		return
	}
	event := events.OrderEvent{
		Type:      string(eventType),
		OrderID:   o.ID,
		Owner:     o.Owner,
		Status:    string(o.Status),
		Total:     o.Total,
		ItemCount: o.ItemCount,
		UpdatedAt: o.UpdatedAt,
	}
	if err := s.relay.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to relay order event", "type", eventType, "order_id", o.ID, "error", err)
	}
}
