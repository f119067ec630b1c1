// Package events holds the event payloads relayed to the broker.
package events

import (
	"encoding/json"
	"time"

	"github.com/ordertrack/ordertrack/pkg/messaging"
)

// OrderEvent mirrors a broadcast envelope for broker consumers: the
// event type plus a summary of the order after the mutation committed.
type OrderEvent struct {
	Type      string    `json:"type"`
	OrderID   int64     `json:"order_id"`
	Owner     string    `json:"owner"`
	Status    string    `json:"status"`
	Total     int64     `json:"total"`
	ItemCount int32     `json:"item_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e OrderEvent) Subject() string {
	return messaging.OrderEventsSubject + "." + e.Type
}

func (e OrderEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
