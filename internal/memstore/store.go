// Package memstore keeps orders, movements and stock in process memory. Each Store is an
// independent instance; nothing is shared at package level.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type Store struct {
	mu        sync.RWMutex
	orders    map[string]*orders.Order // by id
	codes     map[string]string        // code -> id
	movements []inventory.Record
	stock     map[string]int
	seq       map[string]int64

	// FailStock makes AdjustVariantStock fail for the listed variants. Tests only.
	FailStock map[string]error
	// FailInsert makes InsertMovementRecord fail. Tests only.
	FailInsert error
}

func New() *Store {
	return &Store{
		orders: make(map[string]*orders.Order),
		codes:  make(map[string]string),
		stock:  make(map[string]int),
		seq:    make(map[string]int64),
	}
}

// PutOrder inserts or replaces an order, the way the checkout collaborator would.
func (s *Store) PutOrder(o orders.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := o.Clone()
	s.orders[o.ID] = &cp
	s.codes[strings.ToUpper(o.Code)] = o.ID
}

func (s *Store) GetOrder(_ context.Context, idOrCode string) (orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.lookup(idOrCode)
	if !ok {
		return orders.Order{}, fmt.Errorf("order %q: %w", idOrCode, orders.ErrNotFound)
	}
	return o.Clone(), nil
}

func (s *Store) lookup(idOrCode string) (*orders.Order, bool) {
	key := strings.TrimSpace(idOrCode)
	if o, ok := s.orders[key]; ok {
		return o, true
	}
	if id, ok := s.codes[strings.ToUpper(key)]; ok {
		o, ok := s.orders[id]
		return o, ok
	}
	return nil, false
}

func (s *Store) SetOrderFields(_ context.Context, id string, p orders.Patch) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[strings.TrimSpace(id)]
	if !ok {
		return orders.Order{}, fmt.Errorf("order %q: %w", id, orders.ErrNotFound)
	}
	if p.ExpectStatus != nil && o.Status != *p.ExpectStatus {
		return orders.Order{}, orders.ErrStaleStatus
	}
	p.Apply(o)
	return o.Clone(), nil
}

func (s *Store) InsertMovementRecord(_ context.Context, rec inventory.Record) (inventory.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailInsert != nil {
		return inventory.Record{}, s.FailInsert
	}
	for _, m := range s.movements {
		if m.Code == rec.Code || m.ID == rec.ID {
			return inventory.Record{}, fmt.Errorf("movement %s already exists", rec.Code)
		}
	}
	rec.Lines = append([]inventory.MovementLine(nil), rec.Lines...)
	s.movements = append(s.movements, rec)
	return rec, nil
}

func (s *Store) GetMovementRecord(_ context.Context, idOrCode string) (inventory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.movements {
		if m.ID == idOrCode || m.Code == idOrCode {
			m.Lines = append([]inventory.MovementLine(nil), m.Lines...)
			return m, nil
		}
	}
	return inventory.Record{}, fmt.Errorf("movement %q: %w", idOrCode, orders.ErrNotFound)
}

func (s *Store) ListMovementsByOrder(_ context.Context, orderCode string) ([]inventory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []inventory.Record
	for _, m := range s.movements {
		for _, l := range m.Lines {
			if l.OrderCode == orderCode {
				m.Lines = append([]inventory.MovementLine(nil), m.Lines...)
				out = append(out, m)
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// Movements returns every record, oldest first.
func (s *Store) Movements() []inventory.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]inventory.Record(nil), s.movements...)
}

func (s *Store) SetVariantStock(_ context.Context, variantID string, qty int) error {
	if qty < 0 {
		return fmt.Errorf("%w: stock must not be negative", orders.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[variantID] = qty
	return nil
}

func (s *Store) GetVariantStock(_ context.Context, variantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.stock[variantID]
	if !ok {
		return 0, fmt.Errorf("variant %q: %w", variantID, orders.ErrNotFound)
	}
	return n, nil
}

func (s *Store) AdjustVariantStock(_ context.Context, variantID string, next func(int) int) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.FailStock[variantID]; err != nil {
		return 0, 0, err
	}
	cur, ok := s.stock[variantID]
	if !ok {
		return 0, 0, fmt.Errorf("variant %q: %w", variantID, orders.ErrNotFound)
	}
	after := next(cur)
	s.stock[variantID] = after
	return cur, after, nil
}

// Next implements inventory.Sequencer.
func (s *Store) Next(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[key]++
	return s.seq[key], nil
}
