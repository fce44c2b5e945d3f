package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// StockAdjuster applies an order's line items to product stock.
type StockAdjuster interface {
	ApplyDecrement(ctx context.Context, items []Item) error
	ApplyRestore(ctx context.Context, items []Item) error
}

// Service orchestrates order storage and the matching stock adjustments. It
// holds no per-request state; one instance serves the whole process.
//
// Stock adjustments are a plain sequence of remote calls. Nothing is rolled
// back when a later step fails, and concurrent requests touching the same
// product can lose updates.
type Service struct {
	repo     Repository
	stock    StockAdjuster
	events   EventPublisher
	log      *zap.SugaredLogger
	producer string
}

// NewService wires a service. A nil stock adjuster turns off inventory
// coordination; a nil publisher drops events.
func NewService(repo Repository, stock StockAdjuster, events EventPublisher, log *zap.SugaredLogger, producer string) *Service {
	if events == nil {
		events = NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{repo: repo, stock: stock, events: events, log: log, producer: producer}
}

// GetAll returns every order. An empty store yields an empty slice, not
// ErrNotFound.
func (s *Service) GetAll(ctx context.Context) ([]Order, error) {
	list, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if list == nil {
		list = []Order{}
	}
	s.publish(ctx, Event{Action: ActionGetAll, Orders: list})
	return list, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*Order, error) {
	o, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, Event{Action: ActionGet, OrderID: id, Order: o})
	return o, nil
}

// Create takes the items out of stock and then stores the order. When the
// stock step fails the order is not stored.
func (s *Service) Create(ctx context.Context, f Fields) (*Order, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if s.stock != nil {
		if err := s.stock.ApplyDecrement(ctx, f.Items); err != nil {
			return nil, fmt.Errorf("decrement stock: %w", err)
		}
	}

	o, err := s.repo.Insert(ctx, f)
	if err != nil {
		if s.stock != nil {
			s.log.Errorw("order not stored after stock was decremented", "items", f.Items, "err", err)
		}
		return nil, fmt.Errorf("insert order: %w", err)
	}
	s.publish(ctx, Event{Action: ActionCreate, OrderID: o.ID, Order: o})
	return o, nil
}

// Update puts the current items back into stock, takes the new items out and
// then replaces the stored order. A missing order fails before any stock is
// touched.
func (s *Service) Update(ctx context.Context, id string, f Fields) (*Order, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	cur, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.stock != nil {
		if err := s.stock.ApplyRestore(ctx, cur.Items); err != nil {
			return nil, fmt.Errorf("restore stock: %w", err)
		}
		if err := s.stock.ApplyDecrement(ctx, f.Items); err != nil {
			s.log.Warnw("previous items restored but order left unchanged", "order_id", id, "err", err)
			return nil, fmt.Errorf("decrement stock: %w", err)
		}
	}

	o, err := s.repo.UpdateByID(ctx, id, f)
	if err != nil {
		return nil, fmt.Errorf("update order %s: %w", id, err)
	}
	if o == nil {
		return nil, ErrNotFound
	}
	s.publish(ctx, Event{Action: ActionUpdate, OrderID: id, Fields: &f, Order: o})
	return o, nil
}

// Remove puts the order's items back into stock and deletes it.
func (s *Service) Remove(ctx context.Context, id string) error {
	cur, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if s.stock != nil {
		if err := s.stock.ApplyRestore(ctx, cur.Items); err != nil {
			return fmt.Errorf("restore stock: %w", err)
		}
	}

	o, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	if o == nil {
		return ErrNotFound
	}
	s.publish(ctx, Event{Action: ActionRemove, OrderID: id})
	return nil
}

func (s *Service) find(ctx context.Context, id string) (*Order, error) {
	o, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find order %s: %w", id, err)
	}
	if o == nil {
		return nil, ErrNotFound
	}
	return o, nil
}

// publish is best effort. The operation has already committed, so a failed
// publish is logged and otherwise ignored.
func (s *Service) publish(ctx context.Context, ev Event) {
	ev.EventID = uuid.NewString()
	ev.OccurredAt = time.Now().UTC()
	ev.Producer = s.producer

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warnw("order event not published", "action", ev.Action, "order_id", ev.OrderID, "err", err)
	}
}
