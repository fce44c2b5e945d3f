// Package orderstest provides in-memory doubles for the orders package.
package orderstest

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ariefcatur/go-order-inventory/internal/orders"
	"github.com/google/uuid"
)

// MemoryRepo is an orders.Repository backed by a map. Setting Err makes every
// call fail with it.
type MemoryRepo struct {
	mu    sync.Mutex
	byID  map[string]orders.Order
	order []string

	Err error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[string]orders.Order{}}
}

func (m *MemoryRepo) FindAll(context.Context) ([]orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]orders.Order, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, clone(m.byID[id]))
	}
	return out, nil
}

func (m *MemoryRepo) FindByID(_ context.Context, id string) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	o, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	o = clone(o)
	return &o, nil
}

func (m *MemoryRepo) Insert(_ context.Context, f orders.Fields) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	now := time.Now().UTC()
	o := orders.Order{ID: uuid.NewString(), Fields: f, CreatedAt: now, UpdatedAt: now}
	o.Items = slices.Clone(f.Items)
	m.byID[o.ID] = o
	m.order = append(m.order, o.ID)
	o = clone(o)
	return &o, nil
}

func (m *MemoryRepo) UpdateByID(_ context.Context, id string, f orders.Fields) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	o, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	o.Fields = f
	o.Items = slices.Clone(f.Items)
	o.UpdatedAt = time.Now().UTC()
	m.byID[id] = o
	o = clone(o)
	return &o, nil
}

func (m *MemoryRepo) DeleteByID(_ context.Context, id string) (*orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	o, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	delete(m.byID, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	return &o, nil
}

// Len reports how many orders are stored.
func (m *MemoryRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func clone(o orders.Order) orders.Order {
	o.Items = slices.Clone(o.Items)
	return o
}

// RecordingPublisher keeps every published event. Setting Err makes Publish
// fail after recording.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []orders.Event

	Err error
}

func (p *RecordingPublisher) Publish(_ context.Context, ev orders.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.Err
}

func (p *RecordingPublisher) Events() []orders.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.events)
}

// Actions lists the actions of the published events in order.
func (p *RecordingPublisher) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Action)
	}
	return out
}
