package orders

import (
	"context"
	"time"
)

// Actions carried by Event.Action, one per service operation.
const (
	ActionGetAll = "getAll"
	ActionGet    = "get"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionRemove = "remove"
)

// Event describes a completed service operation. It is published after the
// operation commits.
type Event struct {
	EventID    string    `json:"eventId"`
	Action     string    `json:"action"`
	OrderID    string    `json:"orderId,omitempty"`
	Order      *Order    `json:"order,omitempty"`
	Orders     []Order   `json:"orders,omitempty"`
	Fields     *Fields   `json:"fields,omitempty"`
	Producer   string    `json:"producer,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Key is the partition/routing key for the event: the order id when there is
// one, so all events of an order stay in sequence.
func (e Event) Key() []byte {
	if e.OrderID != "" {
		return []byte(e.OrderID)
	}
	return []byte(e.Action)
}

type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
