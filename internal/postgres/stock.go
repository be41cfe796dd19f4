package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type StockStore struct{ DB *pgxpool.Pool }

func (s *StockStore) GetVariantStock(ctx context.Context, variantID string) (int, error) {
	variantID = strings.TrimSpace(variantID)
	var n int
	if err := s.DB.QueryRow(ctx, `SELECT stock FROM variants WHERE id=$1`, variantID).Scan(&n); err != nil {
		return 0, notFound(err, "variant", variantID)
	}
	return n, nil
}

func (s *StockStore) SetVariantStock(ctx context.Context, variantID string, qty int) error {
	if qty < 0 {
		return fmt.Errorf("%w: stock must not be negative", orders.ErrValidation)
	}
	_, err := s.DB.Exec(ctx, `
		INSERT INTO variants(id, stock) VALUES ($1,$2)
		ON CONFLICT (id) DO UPDATE SET stock=EXCLUDED.stock, updated_at=now()`,
		strings.TrimSpace(variantID), qty)
	return err
}

// AdjustVariantStock: lock baris variant (FOR UPDATE) -> hitung nilai baru -> update, satu tx.
func (s *StockStore) AdjustVariantStock(ctx context.Context, variantID string, next func(int) int) (int, int, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var before int
	if err := tx.QueryRow(ctx, `SELECT stock FROM variants WHERE id=$1 FOR UPDATE`, variantID).Scan(&before); err != nil {
		return 0, 0, notFound(err, "variant", variantID)
	}
	after := next(before)
	if _, err := tx.Exec(ctx, `UPDATE variants SET stock=$2, updated_at=now() WHERE id=$1`, variantID, after); err != nil {
		return 0, 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, err
	}
	return before, after, nil
}
