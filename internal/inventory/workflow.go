package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-order-inventory/internal/orders"
	"go.uber.org/zap"
)

var ErrInsufficientStock = errors.New("insufficient stock")

// InsufficientStockError is returned when a decrement would take a product's
// stock below zero. It matches ErrInsufficientStock with errors.Is.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// Workflow adjusts product stock for order line items through the product
// service. Items are handled one at a time, in order, and the first failure
// stops the run. Items adjusted before the failure stay adjusted.
type Workflow struct {
	Products ProductClient
	Log      *zap.SugaredLogger
}

func NewWorkflow(products ProductClient, log *zap.SugaredLogger) *Workflow {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Workflow{Products: products, Log: log}
}

// ApplyDecrement takes each item's quantity out of stock.
func (w *Workflow) ApplyDecrement(ctx context.Context, items []orders.Item) error {
	return w.apply(ctx, "decrement", items, func(stock int, it orders.Item) (int, error) {
		if stock < it.Quantity {
			return 0, &InsufficientStockError{ProductID: it.ProductID, Requested: it.Quantity, Available: stock}
		}
		return stock - it.Quantity, nil
	})
}

// ApplyRestore puts each item's quantity back into stock. There is no upper
// bound.
func (w *Workflow) ApplyRestore(ctx context.Context, items []orders.Item) error {
	return w.apply(ctx, "restore", items, func(stock int, it orders.Item) (int, error) {
		return stock + it.Quantity, nil
	})
}

func (w *Workflow) apply(ctx context.Context, op string, items []orders.Item, next func(stock int, it orders.Item) (int, error)) error {
	adjusted := make([]string, 0, len(items))
	for _, it := range items {
		if err := w.adjust(ctx, it, next); err != nil {
			if len(adjusted) > 0 {
				w.Log.Warnw("stock adjustment partially applied",
					"op", op, "adjusted", adjusted, "failed_product", it.ProductID, "err", err)
			}
			return fmt.Errorf("product %s: %w", it.ProductID, err)
		}
		adjusted = append(adjusted, it.ProductID)
	}
	return nil
}

func (w *Workflow) adjust(ctx context.Context, it orders.Item, next func(stock int, it orders.Item) (int, error)) error {
	p, err := w.Products.GetProduct(ctx, it.ProductID)
	if err != nil {
		return err
	}
	n, err := next(int(p.StockQuantity), it)
	if err != nil {
		return err
	}
	return w.Products.SetProductStock(ctx, it.ProductID, p.Name, p.Description, p.Price, n)
}
