package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/ordertrack/ordertrack/internal/order"
)

// EventType identifies the kind of change a broadcast message carries.
type EventType string

const (
	EventOrderCreated  EventType = "order-created"
	EventOrderUpdated  EventType = "order-updated"
	EventStatusUpdated EventType = "status-updated"
	EventInitialOrders EventType = "initial-orders"
)

// Envelope is the wire message pushed to subscribers.
// Exactly one of Order and Orders is set.
type Envelope struct {
	Type   EventType      `json:"type"`
	Order  *order.Order   `json:"order,omitempty"`
	Orders *[]order.Order `json:"orders,omitempty"`
}

// Dispatcher converts order mutation outcomes into typed events and
// delivers them best-effort to every live subscriber. A failed send
// never propagates back to the mutation caller: the dead handle is
// closed and unregistered, delivery to the others continues.
type Dispatcher struct {
	registry    *Registry
	logger      *slog.Logger
	sendCounter metric.Int64Counter
}

// NewDispatcher creates a Dispatcher over the given registry.
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	meter := otel.Meter("ordertrack")
	sendCounter, err := meter.Int64Counter("broadcast_sends",
		metric.WithDescription("Total number of broadcast send attempts"))
	if err != nil {
		panic(fmt.Sprintf("failed to create broadcast_sends counter: %v", err))
	}
	return &Dispatcher{
		registry:    registry,
		logger:      logger.With("component", "broadcast"),
		sendCounter: sendCounter,
	}
}

// Publish builds a single immutable envelope for the given event and
// pushes it to every live subscriber. Callers invoke it strictly after
// the store mutation has committed.
func (d *Dispatcher) Publish(ctx context.Context, eventType EventType, o *order.Order) {
	payload, err := json.Marshal(Envelope{Type: eventType, Order: o})
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to marshal broadcast envelope", "type", eventType, "error", err)
		return
	}
	for _, sub := range d.registry.Snapshot() {
		d.sendCounter.Add(ctx, 1)
		if err := sub.Send(payload); err != nil {
			d.logger.DebugContext(ctx, "Pruning dead subscriber",
				"subscriber_id", sub.ID(), "type", eventType, "error", err)
			d.registry.Unregister(sub)
			sub.Close()
		}
	}
}

// SendSnapshot delivers the initial-orders seed to a single, freshly
// registered subscriber so it starts from current state.
func (d *Dispatcher) SendSnapshot(ctx context.Context, sub Subscriber, orders []order.Order) {
	if orders == nil {
		orders = []order.Order{}
	}
	payload, err := json.Marshal(Envelope{Type: EventInitialOrders, Orders: &orders})
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to marshal initial-orders envelope", "error", err)
		return
	}
	d.sendCounter.Add(ctx, 1)
	if err := sub.Send(payload); err != nil {
		d.logger.DebugContext(ctx, "Pruning dead subscriber on seed",
			"subscriber_id", sub.ID(), "error", err)
		d.registry.Unregister(sub)
		sub.Close()
	}
}
