package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

func mustTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping postgres integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, EnsureSchema(ctx, pool))
	return pool
}

func seedOrder(t *testing.T, store *OrderStore, variantID string) orders.Order {
	t.Helper()
	id := uuid.NewString()
	o := orders.Order{
		ID:            id,
		Code:          "ORD-" + id[:8],
		CustomerName:  "Lan",
		Phone:         "0912345678",
		Total:         decimal.RequireFromString("250000.50"),
		ShippingFee:   decimal.RequireFromString("30000"),
		PaymentMethod: orders.PaymentCOD,
		PaymentStatus: orders.PaymentUnpaid,
		Status:        orders.StatusPacking,
		Items: []orders.LineItem{
			{ProductID: "p1", VariantID: variantID, Name: "Ao thun", Quantity: 2, UnitPrice: decimal.RequireFromString("110000.25")},
		},
	}
	require.NoError(t, store.PutOrder(context.Background(), o))
	return o
}

func TestOrderStoreRoundTripAndCAS(t *testing.T) {
	pool := mustTestPool(t)
	ctx := context.Background()
	store := &OrderStore{DB: pool}
	o := seedOrder(t, store, "v-"+uuid.NewString())

	byCode, err := store.GetOrder(ctx, o.Code)
	require.NoError(t, err)
	require.Equal(t, o.ID, byCode.ID)
	require.True(t, o.Total.Equal(byCode.Total))
	require.Len(t, byCode.Items, 1)
	require.True(t, byCode.Items[0].UnitPrice.Equal(decimal.RequireFromString("110000.25")))

	updated, err := store.SetOrderFields(ctx, o.ID, orders.Patch{
		ExpectStatus: orders.Ptr(orders.StatusPacking),
		Status:       orders.Ptr(orders.StatusShipping),
		Courier:      orders.Ptr("GHN"),
		Refund:       &orders.Refund{RequestID: "rf_1", Status: orders.RefundPending},
		UpdatedBy:    "staff-1",
		UpdatedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)
	require.Equal(t, orders.StatusShipping, updated.Status)
	require.Equal(t, "GHN", updated.Courier)
	require.NotNil(t, updated.Refund)

	_, err = store.SetOrderFields(ctx, o.ID, orders.Patch{
		ExpectStatus: orders.Ptr(orders.StatusPacking),
		Status:       orders.Ptr(orders.StatusShipping),
	})
	require.ErrorIs(t, err, orders.ErrInvalidTransition)

	_, err = store.GetOrder(ctx, "missing-"+uuid.NewString())
	require.ErrorIs(t, err, orders.ErrNotFound)
}

func TestStockStoreAdjustIsSerialised(t *testing.T) {
	pool := mustTestPool(t)
	ctx := context.Background()
	stock := &StockStore{DB: pool}
	variant := "v-" + uuid.NewString()
	require.NoError(t, stock.SetVariantStock(ctx, variant, 10))

	ledger := inventory.NewLedger(stock)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.ApplyDelta(ctx, variant, -3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	n, err := stock.GetVariantStock(ctx, variant)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	_, _, err = stock.AdjustVariantStock(ctx, "missing-"+uuid.NewString(), func(c int) int { return c })
	require.ErrorIs(t, err, orders.ErrNotFound)
}

func TestMovementStoreInsertAndList(t *testing.T) {
	pool := mustTestPool(t)
	ctx := context.Background()
	store := &MovementStore{DB: pool}
	orderCode := "ORD-" + uuid.NewString()[:8]
	rec := inventory.Record{
		ID:        uuid.NewString(),
		Code:      "PXK-9999-" + uuid.NewString()[:6],
		Direction: inventory.DirectionIssue,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
		ActorID:   "staff-1",
		ActorName: "Staff",
		Lines: []inventory.MovementLine{
			{VariantID: "v1", Quantity: 2, ProductName: "Ao", OrderCode: orderCode},
			{VariantID: "v2", Quantity: 1, ProductName: "Quan", OrderCode: orderCode},
		},
	}
	_, err := store.InsertMovementRecord(ctx, rec)
	require.NoError(t, err)

	_, err = store.InsertMovementRecord(ctx, rec)
	require.Error(t, err)

	got, err := store.GetMovementRecord(ctx, rec.Code)
	require.NoError(t, err)
	require.Equal(t, rec.Lines, got.Lines)

	list, err := store.ListMovementsByOrder(ctx, orderCode)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, rec.ID, list[0].ID)
}
