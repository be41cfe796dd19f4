package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

// Entry is the outcome of one ledger write.
type Entry struct {
	VariantID string `json:"variant_id"`
	Delta     int    `json:"delta"`
	Before    int    `json:"before"`
	After     int    `json:"after"`
	// Shortfall is the part of a negative delta that could not be taken because stock hit zero.
	Shortfall int `json:"shortfall,omitempty"`
}

// Ledger owns variant stock quantities. It has no replay protection: applying the same
// delta twice changes stock twice.
type Ledger struct {
	stock StockStore
}

func NewLedger(stock StockStore) *Ledger {
	return &Ledger{stock: stock}
}

// Clamp computes max(0, current+delta) and the deficit lost to clamping.
func Clamp(current, delta int) (next, shortfall int) {
	next = current + delta
	if next < 0 {
		return 0, -next
	}
	return next, 0
}

func (l *Ledger) ApplyDelta(ctx context.Context, variantID string, delta int) (Entry, error) {
	variantID = strings.TrimSpace(variantID)
	if variantID == "" {
		return Entry{}, fmt.Errorf("%w: variant id is required", orders.ErrValidation)
	}
	var shortfall int
	before, after, err := l.stock.AdjustVariantStock(ctx, variantID, func(cur int) int {
		var next int
		next, shortfall = Clamp(cur, delta)
		return next
	})
	if err != nil {
		return Entry{}, fmt.Errorf("apply %+d to variant %s: %w", delta, variantID, err)
	}
	return Entry{VariantID: variantID, Delta: delta, Before: before, After: after, Shortfall: shortfall}, nil
}

func (l *Ledger) Level(ctx context.Context, variantID string) (int, error) {
	return l.stock.GetVariantStock(ctx, strings.TrimSpace(variantID))
}
