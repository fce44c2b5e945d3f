package orders

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxIDLen        = 100
	maxStatusLen    = 100
	maxProductIDLen = 100
)

// Validate checks the content rules of an order payload. Presence of the
// individual JSON keys is checked at the HTTP boundary.
func (f Fields) Validate() error {
	if f.Date.IsZero() {
		return invalid("date", "is required")
	}
	if strings.TrimSpace(f.Status) == "" {
		return invalid("status", "is required")
	}
	if utf8.RuneCountInString(f.Status) > maxStatusLen {
		return invalid("status", fmt.Sprintf("must be at most %d characters", maxStatusLen))
	}
	if f.TotalAmount.IsNegative() {
		return invalid("totalAmount", "must not be negative")
	}
	if f.Items == nil {
		return invalid("items", "is required")
	}
	for i, it := range f.Items {
		field := fmt.Sprintf("items[%d].product_id", i)
		if strings.TrimSpace(it.ProductID) == "" {
			return invalid(field, "is required")
		}
		if utf8.RuneCountInString(it.ProductID) > maxProductIDLen {
			return invalid(field, fmt.Sprintf("must be at most %d characters", maxProductIDLen))
		}
		if it.Quantity <= 0 {
			return invalid(fmt.Sprintf("items[%d].quantity", i), "must be positive")
		}
	}
	return nil
}

// ValidateID checks an order id taken from a request path.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("orderId", "is required")
	}
	if utf8.RuneCountInString(id) > maxIDLen {
		return invalid("orderId", fmt.Sprintf("must be at most %d characters", maxIDLen))
	}
	return nil
}
