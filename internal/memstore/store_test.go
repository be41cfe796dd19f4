package memstore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

func TestStoresAreIndependent(t *testing.T) {
	ctx := context.Background()
	a, b := New(), New()
	a.PutOrder(orders.Order{ID: "o1", Code: "ORD-1", Status: orders.StatusPacking})
	require.NoError(t, a.SetVariantStock(ctx, "V1", 3))

	_, err := b.GetOrder(ctx, "o1")
	require.ErrorIs(t, err, orders.ErrNotFound)
	_, err = b.GetVariantStock(ctx, "V1")
	require.ErrorIs(t, err, orders.ErrNotFound)
}

func TestGetOrderByIDOrCode(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutOrder(orders.Order{ID: "o1", Code: "ORD-1", Items: []orders.LineItem{{VariantID: "V1", Quantity: 1}}})

	byCode, err := s.GetOrder(ctx, "ord-1")
	require.NoError(t, err)
	require.Equal(t, "o1", byCode.ID)

	// callers get copies
	byCode.Items[0].Quantity = 50
	again, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, 1, again.Items[0].Quantity)
}

func TestSetOrderFieldsCAS(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutOrder(orders.Order{ID: "o1", Code: "ORD-1", Status: orders.StatusPacking})

	_, err := s.SetOrderFields(ctx, "o1", orders.Patch{ExpectStatus: orders.Ptr(orders.StatusShipping), Status: orders.Ptr(orders.StatusCompleted)})
	require.ErrorIs(t, err, orders.ErrInvalidTransition)

	o, err := s.SetOrderFields(ctx, "o1", orders.Patch{ExpectStatus: orders.Ptr(orders.StatusPacking), Status: orders.Ptr(orders.StatusShipping)})
	require.NoError(t, err)
	require.Equal(t, orders.StatusShipping, o.Status)

	_, err = s.SetOrderFields(ctx, "nope", orders.Patch{})
	require.ErrorIs(t, err, orders.ErrNotFound)
}

func TestMovementRecordsAreAppendOnly(t *testing.T) {
	ctx := context.Background()
	s := New()
	rec := inventory.Record{ID: "m1", Code: "PXK-2025-000001", Lines: []inventory.MovementLine{{VariantID: "V1", Quantity: 1, OrderCode: "ORD-1"}}}
	_, err := s.InsertMovementRecord(ctx, rec)
	require.NoError(t, err)

	dup := rec
	dup.ID = "m2"
	_, err = s.InsertMovementRecord(ctx, dup)
	require.Error(t, err)

	list, err := s.ListMovementsByOrder(ctx, "ORD-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	list[0].Lines[0].Quantity = 99

	got, err := s.GetMovementRecord(ctx, "PXK-2025-000001")
	require.NoError(t, err)
	require.Equal(t, 1, got.Lines[0].Quantity)
}

func TestSequencePerKey(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, _ := s.Next(ctx, "movement:PXK:2025")
	b, _ := s.Next(ctx, "movement:PXK:2025")
	c, _ := s.Next(ctx, "movement:PNK:2025")
	require.Equal(t, []int64{1, 2, 1}, []int64{a, b, c})
}

func TestLoadSeed(t *testing.T) {
	ctx := context.Background()
	s := New()
	doc := `{
		"stock": {"V1": 4},
		"orders": [{"id": "o1", "code": "ORD-1", "status": "PACKING", "payment_method": "COD",
			"payment_status": "UNPAID", "total": "150000", "shipping_fee": "0",
			"items": [{"variant_id": "V1", "quantity": 2, "unit_price": "75000"}]}]
	}`
	require.NoError(t, s.Load(ctx, strings.NewReader(doc)))

	o, err := s.GetOrder(ctx, "ORD-1")
	require.NoError(t, err)
	require.Equal(t, orders.StatusPacking, o.Status)
	require.Equal(t, "150000", o.Total.String())
	n, err := s.GetVariantStock(ctx, "V1")
	require.NoError(t, err)
	require.Equal(t, 4, n)

	bad := `{"orders": [{"id": "o2", "code": "ORD-2", "status": "LOST"}]}`
	require.ErrorIs(t, s.Load(ctx, strings.NewReader(bad)), orders.ErrValidation)
}
