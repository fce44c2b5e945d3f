package httpx

import (
	"time"

	"github.com/ariefcatur/go-order-inventory/internal/orders"
	"github.com/shopspring/decimal"
)

// orderBody mirrors orders.Fields with pointers so absent keys can be told
// apart from zero values.
type orderBody struct {
	Date        *time.Time       `json:"date"`
	Status      *string          `json:"status"`
	TotalAmount *decimal.Decimal `json:"totalAmount"`
	Items       []itemBody       `json:"items"`
}

type itemBody struct {
	ProductID *string `json:"product_id"`
	Quantity  *int    `json:"quantity"`
}

// orderRequest accepts the order either flat or wrapped in "fields".
type orderRequest struct {
	orderBody
	Fields *orderBody `json:"fields"`
}

func (req orderRequest) toFields() (orders.Fields, error) {
	b := req.orderBody
	if req.Fields != nil {
		b = *req.Fields
	}
	return b.toFields()
}

func (b orderBody) toFields() (orders.Fields, error) {
	var f orders.Fields
	switch {
	case b.Date == nil:
		return f, &orders.ValidationError{Field: "date", Reason: "is required"}
	case b.Status == nil:
		return f, &orders.ValidationError{Field: "status", Reason: "is required"}
	case b.TotalAmount == nil:
		return f, &orders.ValidationError{Field: "totalAmount", Reason: "is required"}
	case b.Items == nil:
		return f, &orders.ValidationError{Field: "items", Reason: "is required"}
	}

	f = orders.Fields{
		Date:        *b.Date,
		Status:      *b.Status,
		TotalAmount: *b.TotalAmount,
		Items:       make([]orders.Item, 0, len(b.Items)),
	}
	for _, it := range b.Items {
		if it.ProductID == nil {
			return f, &orders.ValidationError{Field: "product_id", Reason: "is required"}
		}
		if it.Quantity == nil {
			return f, &orders.ValidationError{Field: "quantity", Reason: "is required"}
		}
		f.Items = append(f.Items, orders.Item{ProductID: *it.ProductID, Quantity: *it.Quantity})
	}
	return f, f.Validate()
}
