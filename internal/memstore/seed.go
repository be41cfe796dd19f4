package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

// Seed is the fixture format for running the API on the memory store.
type Seed struct {
	Orders []orders.Order `json:"orders"`
	Stock  map[string]int `json:"stock"`
}

// Load reads a Seed document from r into s.
func (s *Store) Load(ctx context.Context, r io.Reader) error {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}
	for variant, qty := range seed.Stock {
		if err := s.SetVariantStock(ctx, variant, qty); err != nil {
			return fmt.Errorf("seed variant %s: %w", variant, err)
		}
	}
	for _, o := range seed.Orders {
		if o.ID == "" || o.Code == "" {
			return fmt.Errorf("%w: seeded order needs id and code", orders.ErrValidation)
		}
		if !o.Status.Valid() {
			return fmt.Errorf("%w: order %s has unknown status %q", orders.ErrValidation, o.Code, o.Status)
		}
		s.PutOrder(o)
	}
	return nil
}
