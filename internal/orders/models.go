package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// totalAmount travels as a JSON number, not a quoted string.
	decimal.MarshalJSONWithoutQuotes = true
}

// Well-known order statuses. Status is free text; these are just the values
// clients commonly send.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusShipped   = "shipped"
)

// Item is one order line: a product and how many units of it.
type Item struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Fields is the client-supplied part of an order. It is what gets stored as
// the order document.
type Fields struct {
	Date        time.Time       `json:"date"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Items       []Item          `json:"items"`
}

type Order struct {
	ID string `json:"id"`
	Fields
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
