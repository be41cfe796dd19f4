package orders

import "context"

// Store is the order persistence contract the lifecycle core depends on.
type Store interface {
	// GetOrder looks an order up by id or by code. Missing orders yield ErrNotFound.
	GetOrder(ctx context.Context, idOrCode string) (Order, error)
	// SetOrderFields applies p and returns the updated order. When p.ExpectStatus is set and
	// does not match the stored status, nothing is written and ErrStaleStatus is returned.
	SetOrderFields(ctx context.Context, id string, p Patch) (Order, error)
}
