package inventory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/memstore"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

func TestClamp(t *testing.T) {
	cases := []struct {
		cur, delta, next, short int
	}{
		{10, -3, 7, 0},
		{2, -5, 0, 3},
		{0, -1, 0, 1},
		{0, 4, 4, 0},
		{5, -5, 0, 0},
	}
	for _, c := range cases {
		next, short := inventory.Clamp(c.cur, c.delta)
		require.Equal(t, c.next, next, "%d%+d", c.cur, c.delta)
		require.Equal(t, c.short, short, "%d%+d", c.cur, c.delta)
	}
}

func TestApplyDeltaNeverNegative(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	require.NoError(t, store.SetVariantStock(ctx, "V1", 2))
	ledger := inventory.NewLedger(store)

	e, err := ledger.ApplyDelta(ctx, "V1", -5)
	require.NoError(t, err)
	require.Equal(t, 0, e.After)
	require.Equal(t, 2, e.Before)
	require.Equal(t, 3, e.Shortfall)

	n, err := ledger.Level(ctx, "V1")
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestApplyDeltaErrors(t *testing.T) {
	ctx := context.Background()
	ledger := inventory.NewLedger(memstore.New())

	_, err := ledger.ApplyDelta(ctx, " ", 1)
	require.ErrorIs(t, err, orders.ErrValidation)

	_, err = ledger.ApplyDelta(ctx, "ghost", 1)
	require.ErrorIs(t, err, orders.ErrNotFound)

	_, err = ledger.Level(ctx, "ghost")
	require.ErrorIs(t, err, orders.ErrNotFound)
}
