package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/go-order-inventory/internal/orders"
)

const HeaderEventAction = "x-event-action"

func EncodeEvent(ev orders.Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return b, nil
}

func DecodeEvent(b []byte) (orders.Event, error) {
	var ev orders.Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return ev, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}
