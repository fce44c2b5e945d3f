package redisx

import "time"

const (
	// Cached order document: order:{order_id} -> JSON
	KeyOrder = "order:%s"
)

var TTLOrderCache = 5 * time.Minute
