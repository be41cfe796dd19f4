package fulfillment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"0912345678":      "0912345678",
		"+84 912-345-678": "0912345678",
		"84912345678":     "0912345678",
		"(091) 234.5678":  "0912345678",
		"":                "",
		"84":              "84",
		"abc":             "",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizePhone(in), in)
	}
}

func TestTrackOrderMatchesCodeAndPhone(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.put(t, orders.Order{
		Code:   "ORD-777",
		Phone:  "0912345678",
		Status: orders.StatusShipping,
		Refund: &orders.Refund{RequestID: "rf_1", Bank: bank},
	})

	v, err := h.svc.TrackOrder(ctx, "ord-777", "+84 912 345 678")
	require.NoError(t, err)
	require.Equal(t, "ORD-777", v.Code)
	require.Equal(t, orders.StatusShipping, v.Status)
	require.Len(t, v.Items, 2)

	// second lookup is served from the cache
	_, _, ok, _ := h.cache.Get(ctx, "ORD-777")
	require.True(t, ok)
	v2, err := h.svc.TrackOrder(ctx, "ORD-777", "0912345678")
	require.NoError(t, err)
	require.Equal(t, v, v2)
}

func TestTrackOrderNeverSaysWhichPartWasWrong(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.put(t, orders.Order{Code: "ORD-777", Phone: "0912345678", Status: orders.StatusShipping})

	_, wrongPhone := h.svc.TrackOrder(ctx, "ORD-777", "0999999999")
	_, wrongCode := h.svc.TrackOrder(ctx, "ORD-000", "0912345678")
	_, empty := h.svc.TrackOrder(ctx, "", "")
	// the internal id must not work as a tracking code
	_, byID := h.svc.TrackOrder(ctx, "id-ORD-777", "0912345678")

	for _, err := range []error{wrongPhone, wrongCode, empty, byID} {
		require.ErrorIs(t, err, orders.ErrNotFound)
		require.Equal(t, wrongPhone.Error(), err.Error())
	}
}

func TestTrackOrderSeesTransitions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	o := h.put(t, orders.Order{Code: "ORD-5", Phone: "0912345678", Status: orders.StatusShipping})

	v, err := h.svc.TrackOrder(ctx, "ORD-5", "0912345678")
	require.NoError(t, err)
	require.Equal(t, orders.StatusShipping, v.Status)

	_, err = h.svc.ConfirmDelivered(ctx, o.ID, staff)
	require.NoError(t, err)

	v, err = h.svc.TrackOrder(ctx, "ORD-5", "0912345678")
	require.NoError(t, err)
	require.Equal(t, orders.StatusCompleted, v.Status)
}

func TestTrackOrderSurvivesCacheErrors(t *testing.T) {
	h := newHarness(t)
	h.put(t, orders.Order{Code: "ORD-6", Phone: "0912345678", Status: orders.StatusPacking})
	h.cache.getErr = errors.New("redis timeout")

	v, err := h.svc.TrackOrder(context.Background(), "ORD-6", "0912345678")
	require.NoError(t, err)
	require.Equal(t, orders.StatusPacking, v.Status)
}

func TestTrackOrderDoesNotCacheSnapshotOlderThanTransition(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{}
	h := newHarnessWith(t, store)
	store.Store = h.store
	o := h.put(t, orders.Order{Code: "ORD-8", Phone: "0912345678", Status: orders.StatusShipping})

	// the order gets delivered after the lookup read it but before the snapshot is cached
	store.getFn = func(ctx context.Context, idOrCode string) (orders.Order, error) {
		store.getFn = nil
		old, err := h.store.GetOrder(ctx, idOrCode)
		require.NoError(t, err)
		_, err = h.svc.ConfirmDelivered(ctx, o.ID, staff)
		require.NoError(t, err)
		return old, nil
	}

	v, err := h.svc.TrackOrder(ctx, "ORD-8", "0912345678")
	require.NoError(t, err)
	require.Equal(t, orders.StatusShipping, v.Status)
	_, _, ok, _ := h.cache.Get(ctx, "ORD-8")
	require.False(t, ok)

	v, err = h.svc.TrackOrder(ctx, "ORD-8", "0912345678")
	require.NoError(t, err)
	require.Equal(t, orders.StatusCompleted, v.Status)
}
