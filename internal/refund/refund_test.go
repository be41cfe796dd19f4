package refund

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-order-fulfillment/internal/memstore"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

var (
	now   = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	staff = orders.Actor{ID: "staff-1", Name: "Linh"}
	bank  = orders.BankAccount{BankName: "VCB", AccountNumber: "0011002233", AccountHolder: "NGUYEN VAN A"}
)

func newManager(t *testing.T, store orders.Store) *Manager {
	t.Helper()
	m, err := NewManager(Deps{
		Orders:      store,
		Clock:       func() time.Time { return now },
		IDGenerator: func() string { return "rf_test" },
	})
	require.NoError(t, err)
	return m
}

func TestOpenOnlyForCapturedOnlinePayments(t *testing.T) {
	m := newManager(t, memstore.New())
	cases := []struct {
		method orders.PaymentMethod
		status orders.PaymentStatus
		opens  bool
	}{
		{orders.PaymentOnline, orders.PaymentPaid, true},
		{orders.PaymentOnline, orders.PaymentPendingRefund, true},
		{orders.PaymentOnline, orders.PaymentUnpaid, false},
		{orders.PaymentCOD, orders.PaymentUnpaid, false},
		{orders.PaymentCOD, orders.PaymentPaid, false},
	}
	for _, c := range cases {
		var p orders.Patch
		o := orders.Order{PaymentMethod: c.method, PaymentStatus: c.status}
		require.NoError(t, m.Open(o, Request{Reason: "changed mind", Bank: bank}, now, &p))
		require.Equal(t, c.opens, p.Refund != nil, "%s/%s", c.method, c.status)
		if c.opens {
			require.Equal(t, orders.RefundPending, p.Refund.Status)
			require.Equal(t, "rf_test", p.Refund.RequestID)
			require.Equal(t, orders.PaymentPendingRefund, *p.PaymentStatus)
		} else {
			require.Nil(t, p.PaymentStatus)
		}
	}
}

func TestOpenWithoutBankDetails(t *testing.T) {
	m := newManager(t, memstore.New())
	var p orders.Patch
	o := orders.Order{PaymentMethod: orders.PaymentOnline, PaymentStatus: orders.PaymentPaid}

	require.NoError(t, m.Open(o, Request{Reason: " late ", Bank: orders.BankAccount{BankName: " VCB "}}, now, &p))
	require.NotNil(t, p.Refund)
	require.Equal(t, "late", p.Refund.Reason)
	require.Equal(t, "VCB", p.Refund.Bank.BankName)
	require.Empty(t, p.Refund.Bank.AccountNumber)
	require.Equal(t, orders.RefundPending, p.Refund.Status)
	require.Equal(t, orders.PaymentPendingRefund, *p.PaymentStatus)
}

func TestAttachBank(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	store.PutOrder(orders.Order{
		ID:            "o-1",
		Code:          "ORD-1",
		Status:        orders.StatusCancelled,
		PaymentMethod: orders.PaymentOnline,
		PaymentStatus: orders.PaymentPendingRefund,
		Refund:        &orders.Refund{RequestID: "rf_1", Status: orders.RefundPending},
	})
	store.PutOrder(orders.Order{ID: "o-2", Code: "ORD-2", Status: orders.StatusCancelled, PaymentStatus: orders.PaymentUnpaid})
	m := newManager(t, store)

	_, err := m.AttachBank(ctx, "ORD-1", orders.BankAccount{AccountNumber: "1"}, staff)
	require.ErrorIs(t, err, orders.ErrValidation)
	_, err = m.AttachBank(ctx, "ORD-1", bank, orders.Actor{})
	require.ErrorIs(t, err, orders.ErrValidation)
	_, err = m.AttachBank(ctx, "ORD-2", bank, staff)
	require.ErrorIs(t, err, orders.ErrInvalidTransition)
	_, err = m.AttachBank(ctx, "ORD-404", bank, staff)
	require.ErrorIs(t, err, orders.ErrNotFound)

	o, err := m.AttachBank(ctx, "ORD-1", bank, staff)
	require.NoError(t, err)
	require.Equal(t, bank, o.Refund.Bank)
	require.Equal(t, "rf_1", o.Refund.RequestID)
	require.Equal(t, orders.PaymentPendingRefund, o.PaymentStatus)
	require.Equal(t, "staff-1", o.UpdatedBy)
}

func TestOpenKeepsPendingRefund(t *testing.T) {
	m := newManager(t, memstore.New())
	existing := &orders.Refund{RequestID: "rf_old", Status: orders.RefundPending, Bank: bank}
	o := orders.Order{PaymentMethod: orders.PaymentOnline, PaymentStatus: orders.PaymentPendingRefund, Refund: existing}

	var p orders.Patch
	require.NoError(t, m.Open(o, Request{}, now, &p))
	require.Nil(t, p.Refund)
	require.Equal(t, orders.PaymentPendingRefund, *p.PaymentStatus)
}

func TestOpenForReturnIgnoresMethod(t *testing.T) {
	m := newManager(t, memstore.New())
	var p orders.Patch
	o := orders.Order{PaymentMethod: orders.PaymentCOD, PaymentStatus: orders.PaymentPaid}
	require.NoError(t, m.OpenForReturn(o, Request{Reason: "wrong size", Bank: bank}, now, &p))
	require.NotNil(t, p.Refund)

	var none orders.Patch
	unpaid := orders.Order{PaymentMethod: orders.PaymentCOD, PaymentStatus: orders.PaymentUnpaid}
	require.NoError(t, m.OpenForReturn(unpaid, Request{}, now, &none))
	require.Nil(t, none.Refund)
}

func TestConfirm(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	store.PutOrder(orders.Order{
		ID:            "o-1",
		Code:          "ORD-1",
		Status:        orders.StatusCancelled,
		PaymentMethod: orders.PaymentOnline,
		PaymentStatus: orders.PaymentPendingRefund,
		Refund:        &orders.Refund{RequestID: "rf_1", Status: orders.RefundPending, Bank: bank},
	})
	m := newManager(t, store)

	o, err := m.Confirm(ctx, "ORD-1", staff)
	require.NoError(t, err)
	require.Equal(t, orders.PaymentRefunded, o.PaymentStatus)
	require.Equal(t, orders.RefundConfirmed, o.Refund.Status)
	require.Equal(t, "Linh", o.Refund.ConfirmedBy)
	require.Equal(t, now, *o.Refund.ConfirmedAt)
	require.Equal(t, orders.StatusCancelled, o.Status)

	_, err = m.Confirm(ctx, "ORD-404", staff)
	require.ErrorIs(t, err, orders.ErrNotFound)
	_, err = m.Confirm(ctx, "ORD-1", orders.Actor{})
	require.ErrorIs(t, err, orders.ErrValidation)
}
