// Package refund tracks money owed back to customers of cancelled or returned online orders.
// Payment status moves UNPAID/PAID -> PENDING_REFUND -> REFUNDED independently of order status.
package refund

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type Request struct {
	Reason string
	Bank   orders.BankAccount
}

type Deps struct {
	Orders      orders.Store
	Events      orders.Publisher
	Logger      *zap.Logger
	Clock       func() time.Time
	IDGenerator func() string
}

type Manager struct {
	orders orders.Store
	events orders.Publisher
	log    *zap.Logger
	clock  func() time.Time
	newID  func() string
}

func NewManager(deps Deps) (*Manager, error) {
	if deps.Orders == nil {
		return nil, errors.New("refund: order store is required")
	}
	m := &Manager{
		orders: deps.Orders,
		events: deps.Events,
		log:    deps.Logger,
		clock:  deps.Clock,
		newID:  deps.IDGenerator,
	}
	if m.events == nil {
		m.events = orders.NopPublisher{}
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	if m.newID == nil {
		m.newID = func() string {
			return "rf_" + ulid.Make().String()
		}
	}
	return m, nil
}

// Applies reports whether money was captured online and may have to go back.
func (m *Manager) Applies(o orders.Order) bool {
	if o.PaymentMethod != orders.PaymentOnline {
		return false
	}
	return o.PaymentStatus == orders.PaymentPaid || o.PaymentStatus == orders.PaymentPendingRefund
}

// Open builds the pending refund for o and folds it into p, so the refund lands in the same
// write as the status change. Bank details may still be missing. An already pending record
// is kept as is.
func (m *Manager) Open(o orders.Order, req Request, now time.Time, p *orders.Patch) error {
	if !m.Applies(o) {
		return nil
	}
	return m.open(o, req, now, p)
}

// OpenForReturn is Open for goods coming back after delivery. Cash collected by the courier
// is owed back too, so the payment method does not matter, only that money was taken.
func (m *Manager) OpenForReturn(o orders.Order, req Request, now time.Time, p *orders.Patch) error {
	if o.PaymentStatus != orders.PaymentPaid && o.PaymentStatus != orders.PaymentPendingRefund {
		return nil
	}
	return m.open(o, req, now, p)
}

func cleanBank(b orders.BankAccount) orders.BankAccount {
	return orders.BankAccount{
		BankName:      strings.TrimSpace(b.BankName),
		AccountNumber: strings.TrimSpace(b.AccountNumber),
		AccountHolder: strings.TrimSpace(b.AccountHolder),
	}
}

func (m *Manager) open(o orders.Order, req Request, now time.Time, p *orders.Patch) error {
	if o.Refund != nil && o.Refund.Status == orders.RefundPending {
		p.PaymentStatus = orders.Ptr(orders.PaymentPendingRefund)
		return nil
	}
	// rekening boleh kosong dulu, dilengkapi lewat AttachBank sebelum transfer
	p.Refund = &orders.Refund{
		RequestID:   m.newID(),
		Reason:      strings.TrimSpace(req.Reason),
		Bank:        cleanBank(req.Bank),
		Status:      orders.RefundPending,
		RequestedAt: now,
	}
	p.PaymentStatus = orders.Ptr(orders.PaymentPendingRefund)
	return nil
}

// AttachBank fills in where a pending refund goes. It only touches the refund record, never
// the order or payment status.
func (m *Manager) AttachBank(ctx context.Context, orderID string, bank orders.BankAccount, actor orders.Actor) (orders.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return orders.Order{}, fmt.Errorf("%w: order id is required", orders.ErrValidation)
	}
	if !actor.Valid() {
		return orders.Order{}, fmt.Errorf("%w: actor is required", orders.ErrValidation)
	}
	bank = cleanBank(bank)
	if bank.BankName == "" || bank.AccountNumber == "" {
		return orders.Order{}, fmt.Errorf("%w: bank name and account number are required", orders.ErrValidation)
	}
	o, err := m.orders.GetOrder(ctx, orderID)
	if err != nil {
		return orders.Order{}, err
	}
	if o.Refund == nil || o.Refund.Status != orders.RefundPending {
		return orders.Order{}, fmt.Errorf("%w: order %s has no pending refund", orders.ErrInvalidTransition, o.Code)
	}

	r := *o.Refund
	r.Bank = bank
	updated, err := m.orders.SetOrderFields(ctx, o.ID, orders.Patch{
		Refund:    &r,
		UpdatedAt: m.clock().UTC(),
		UpdatedBy: strings.TrimSpace(actor.ID),
	})
	if err != nil {
		return orders.Order{}, err
	}
	m.log.Info("refund bank attached", zap.String("order", updated.Code), zap.String("actor", actor.ID))
	return updated, nil
}

// Confirm records that an operator made the bank transfer out of band. There is no way to
// verify the transfer, so only the order has to exist.
func (m *Manager) Confirm(ctx context.Context, orderID string, actor orders.Actor) (orders.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return orders.Order{}, fmt.Errorf("%w: order id is required", orders.ErrValidation)
	}
	if !actor.Valid() {
		return orders.Order{}, fmt.Errorf("%w: actor is required", orders.ErrValidation)
	}
	o, err := m.orders.GetOrder(ctx, orderID)
	if err != nil {
		return orders.Order{}, err
	}

	now := m.clock().UTC()
	p := orders.Patch{
		PaymentStatus: orders.Ptr(orders.PaymentRefunded),
		UpdatedAt:     now,
		UpdatedBy:     strings.TrimSpace(actor.ID),
	}
	if o.Refund != nil {
		r := *o.Refund
		if r.Status != orders.RefundConfirmed {
			r.Status = orders.RefundConfirmed
			r.ConfirmedAt = &now
			r.ConfirmedBy = actor.DisplayName()
		}
		p.Refund = &r
	}
	updated, err := m.orders.SetOrderFields(ctx, o.ID, p)
	if err != nil {
		return orders.Order{}, err
	}

	m.log.Info("refund confirmed",
		zap.String("order", updated.Code),
		zap.String("actor", actor.ID),
	)
	requestID := ""
	if updated.Refund != nil {
		requestID = updated.Refund.RequestID
	}
	m.Announce(ctx, updated, orders.EventRefundConfirmed, requestID, orders.RefundConfirmed, actor)
	return updated, nil
}

// Announce publishes a refund event; failures are logged only.
func (m *Manager) Announce(ctx context.Context, o orders.Order, eventType, requestID string, status orders.RefundStatus, actor orders.Actor) {
	err := m.events.Publish(ctx, orders.TopicRefund, orders.PartitionKey(o.Code), eventType, orders.RefundPayload{
		OrderID:   o.ID,
		OrderCode: o.Code,
		RequestID: requestID,
		Status:    status,
		ActorID:   actor.ID,
	})
	if err != nil {
		m.log.Warn("publish refund event", zap.String("order", o.Code), zap.String("event", eventType), zap.Error(err))
	}
}
