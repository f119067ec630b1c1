// Package messaging defines the event publishing abstraction used to
// relay order events to an external broker.
package messaging

import (
	"context"
)

// OrderEventsSubject is the subject prefix for relayed order events;
// the event type is appended as the final token.
const OrderEventsSubject = "orders.events"

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
