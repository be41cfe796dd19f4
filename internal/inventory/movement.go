package inventory

import (
	"context"
	"time"
)

type Direction string

const (
	DirectionReceipt Direction = "RECEIPT" // stok masuk
	DirectionIssue   Direction = "ISSUE"   // stok keluar
)

const (
	PrefixReceipt = "PNK"
	PrefixIssue   = "PXK"
)

func (d Direction) Prefix() string {
	if d == DirectionIssue {
		return PrefixIssue
	}
	return PrefixReceipt
}

// Delta converts a line quantity into the signed ledger delta for this direction.
func (d Direction) Delta(qty int) int {
	if d == DirectionIssue {
		return -qty
	}
	return qty
}

type MovementLine struct {
	VariantID   string `json:"variant_id"`
	Quantity    int    `json:"quantity"`
	ProductName string `json:"product_name"`
	VariantName string `json:"variant_name,omitempty"`
	OrderCode   string `json:"order_code,omitempty"`
}

// Record is one physical stock movement. It is never edited after insert;
// corrections are made with a new offsetting record.
type Record struct {
	ID        string         `json:"id"`
	Code      string         `json:"code"`
	Direction Direction      `json:"direction"`
	CreatedAt time.Time      `json:"created_at"`
	ActorID   string         `json:"actor_id"`
	ActorName string         `json:"actor_name"`
	Note      string         `json:"note,omitempty"`
	Lines     []MovementLine `json:"lines"`
}

type MovementStore interface {
	InsertMovementRecord(ctx context.Context, rec Record) (Record, error)
	GetMovementRecord(ctx context.Context, idOrCode string) (Record, error)
	ListMovementsByOrder(ctx context.Context, orderCode string) ([]Record, error)
}

type StockStore interface {
	// GetVariantStock returns orders.ErrNotFound for unknown variants.
	GetVariantStock(ctx context.Context, variantID string) (int, error)
	SetVariantStock(ctx context.Context, variantID string, qty int) error
	// AdjustVariantStock atomically replaces the stock of one variant with next(current).
	AdjustVariantStock(ctx context.Context, variantID string, next func(current int) int) (before, after int, err error)
}
