// Package fulfillment drives orders through their lifecycle. Every operation checks the
// transition table in package orders, writes the new status with a compare-and-swap and
// performs the side effects tied to that transition.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/refund"
)

// TrackingCache keeps order snapshots for the unauthenticated tracking lookup.
// Get also returns the generation of the code; Put must present it and is dropped when an
// Evict happened in between.
type TrackingCache interface {
	Get(ctx context.Context, code string) (snap orders.Order, gen int64, ok bool, err error)
	Put(ctx context.Context, o orders.Order, gen int64) error
	Evict(ctx context.Context, code string) error
}

type Deps struct {
	Orders   orders.Store
	Recorder *inventory.Recorder
	Refunds  *refund.Manager
	Cache    TrackingCache
	Events   orders.Publisher
	Logger   *zap.Logger
	Clock    func() time.Time
}

type Service struct {
	orders   orders.Store
	recorder *inventory.Recorder
	refunds  *refund.Manager
	cache    TrackingCache
	events   orders.Publisher
	log      *zap.Logger
	clock    func() time.Time
}

func NewService(deps Deps) (*Service, error) {
	if deps.Orders == nil {
		return nil, errors.New("fulfillment: order store is required")
	}
	if deps.Recorder == nil {
		return nil, errors.New("fulfillment: movement recorder is required")
	}
	if deps.Refunds == nil {
		return nil, errors.New("fulfillment: refund manager is required")
	}
	s := &Service{
		orders:   deps.Orders,
		recorder: deps.Recorder,
		refunds:  deps.Refunds,
		cache:    deps.Cache,
		events:   deps.Events,
		log:      deps.Logger,
		clock:    deps.Clock,
	}
	if s.events == nil {
		s.events = orders.NopPublisher{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s, nil
}

type HandoverInput struct {
	Courier        string
	TrackingNumber string
	DeliveryPerson string
}

type CancelInput struct {
	Reason string
	// Bank is where an online payment goes back to. Ignored when nothing was paid online.
	Bank orders.BankAccount
}

type ReturnInput struct {
	Reason string
	Bank   orders.BankAccount
}

// Transition is the result of an operation that moved goods.
type Transition struct {
	Order    orders.Order
	Movement inventory.Result
}

func (s *Service) Approve(ctx context.Context, orderID string, actor orders.Actor) (orders.Order, error) {
	if err := requireBasics(orderID, actor); err != nil {
		return orders.Order{}, err
	}
	o, to, err := s.load(ctx, orderID, orders.OpApprove)
	if err != nil {
		return orders.Order{}, err
	}
	return s.commit(ctx, o, orders.OpApprove, to, actor, orders.Patch{})
}

// Handover gives a packed order to the courier and takes its goods out of stock.
func (s *Service) Handover(ctx context.Context, orderID string, in HandoverInput, actor orders.Actor) (Transition, error) {
	if err := requireBasics(orderID, actor); err != nil {
		return Transition{}, err
	}
	in.Courier = strings.TrimSpace(in.Courier)
	in.TrackingNumber = strings.TrimSpace(in.TrackingNumber)
	in.DeliveryPerson = strings.TrimSpace(in.DeliveryPerson)
	var missing []string
	if in.Courier == "" {
		missing = append(missing, "courier")
	}
	if in.TrackingNumber == "" {
		missing = append(missing, "tracking number")
	}
	if in.DeliveryPerson == "" {
		missing = append(missing, "delivery person")
	}
	if len(missing) > 0 {
		return Transition{}, fmt.Errorf("%w: %s required for handover", orders.ErrValidation, strings.Join(missing, ", "))
	}

	o, to, err := s.load(ctx, orderID, orders.OpHandover)
	if err != nil {
		return Transition{}, err
	}
	if err := s.recorder.CheckOrder(ctx, o); err != nil {
		return Transition{}, err
	}
	p := orders.Patch{
		Courier:        orders.Ptr(in.Courier),
		TrackingNumber: orders.Ptr(in.TrackingNumber),
		DeliveryPerson: orders.Ptr(in.DeliveryPerson),
	}
	return s.moveGoods(ctx, o, orders.OpHandover, to, actor, p, s.recorder.RecordIssueForOrder)
}

func (s *Service) ConfirmDelivered(ctx context.Context, orderID string, actor orders.Actor) (orders.Order, error) {
	if err := requireBasics(orderID, actor); err != nil {
		return orders.Order{}, err
	}
	o, to, err := s.load(ctx, orderID, orders.OpConfirmDelivered)
	if err != nil {
		return orders.Order{}, err
	}
	now := s.now()
	p := orders.Patch{DeliveredAt: &now}
	if o.PaymentMethod == orders.PaymentCOD {
		// kurir sudah terima uang tunai
		p.PaymentStatus = orders.Ptr(orders.PaymentPaid)
	}
	return s.commit(ctx, o, orders.OpConfirmDelivered, to, actor, p)
}

func (s *Service) MarkFailed(ctx context.Context, orderID string, actor orders.Actor) (orders.Order, error) {
	if err := requireBasics(orderID, actor); err != nil {
		return orders.Order{}, err
	}
	o, to, err := s.load(ctx, orderID, orders.OpMarkFailed)
	if err != nil {
		return orders.Order{}, err
	}
	return s.commit(ctx, o, orders.OpMarkFailed, to, actor, orders.Patch{})
}

// Cancel ends an order that has not been packed yet. Money captured online turns into a
// pending refund; everything else about the payment is left alone.
func (s *Service) Cancel(ctx context.Context, orderID string, in CancelInput, actor orders.Actor) (orders.Order, error) {
	if err := requireBasics(orderID, actor); err != nil {
		return orders.Order{}, err
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return orders.Order{}, fmt.Errorf("%w: cancellation reason is required", orders.ErrValidation)
	}
	o, to, err := s.load(ctx, orderID, orders.OpCancel)
	if err != nil {
		return orders.Order{}, err
	}
	p := orders.Patch{AppendNote: "Cancelled: " + reason}
	if err := s.refunds.Open(o, refund.Request{Reason: reason, Bank: in.Bank}, s.now(), &p); err != nil {
		return orders.Order{}, err
	}
	updated, err := s.commit(ctx, o, orders.OpCancel, to, actor, p)
	if err != nil {
		return orders.Order{}, err
	}
	if p.Refund != nil {
		s.refunds.Announce(ctx, updated, orders.EventRefundRequested, p.Refund.RequestID, orders.RefundPending, actor)
	}
	return updated, nil
}

// ConfirmRefund marks the money of a cancelled or returned order as sent back.
func (s *Service) ConfirmRefund(ctx context.Context, orderID string, actor orders.Actor) (orders.Order, error) {
	o, err := s.refunds.Confirm(ctx, orderID, actor)
	if err != nil {
		return orders.Order{}, err
	}
	s.evict(ctx, o.Code)
	return o, nil
}

// AttachRefundBank records where the pending refund of an order should be sent.
func (s *Service) AttachRefundBank(ctx context.Context, orderID string, bank orders.BankAccount, actor orders.Actor) (orders.Order, error) {
	o, err := s.refunds.AttachBank(ctx, orderID, bank, actor)
	if err != nil {
		return orders.Order{}, err
	}
	s.evict(ctx, o.Code)
	return o, nil
}

func (s *Service) RequestReturn(ctx context.Context, orderID string, in ReturnInput, actor orders.Actor) (orders.Order, error) {
	if err := requireBasics(orderID, actor); err != nil {
		return orders.Order{}, err
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return orders.Order{}, fmt.Errorf("%w: return reason is required", orders.ErrValidation)
	}
	o, to, err := s.load(ctx, orderID, orders.OpRequestReturn)
	if err != nil {
		return orders.Order{}, err
	}
	return s.commit(ctx, o, orders.OpRequestReturn, to, actor, orders.Patch{AppendNote: "Return requested: " + reason})
}

func (s *Service) AcceptReturn(ctx context.Context, orderID string, actor orders.Actor) (orders.Order, error) {
	if err := requireBasics(orderID, actor); err != nil {
		return orders.Order{}, err
	}
	o, to, err := s.load(ctx, orderID, orders.OpAcceptReturn)
	if err != nil {
		return orders.Order{}, err
	}
	return s.commit(ctx, o, orders.OpAcceptReturn, to, actor, orders.Patch{})
}

// CompleteReturn puts the returned goods back into stock and opens the refund for whatever
// the customer paid.
func (s *Service) CompleteReturn(ctx context.Context, orderID string, in ReturnInput, actor orders.Actor) (Transition, error) {
	if err := requireBasics(orderID, actor); err != nil {
		return Transition{}, err
	}
	o, to, err := s.load(ctx, orderID, orders.OpCompleteReturn)
	if err != nil {
		return Transition{}, err
	}
	if err := s.recorder.CheckOrder(ctx, o); err != nil {
		return Transition{}, err
	}
	p := orders.Patch{}
	if err := s.refunds.OpenForReturn(o, refund.Request{Reason: strings.TrimSpace(in.Reason), Bank: in.Bank}, s.now(), &p); err != nil {
		return Transition{}, err
	}
	t, err := s.moveGoods(ctx, o, orders.OpCompleteReturn, to, actor, p, s.recorder.RecordReturnReceipt)
	if p.Refund != nil && t.Order.Status == to {
		s.refunds.Announce(ctx, t.Order, orders.EventRefundRequested, p.Refund.RequestID, orders.RefundPending, actor)
	}
	return t, err
}

func requireBasics(orderID string, actor orders.Actor) error {
	if strings.TrimSpace(orderID) == "" {
		return fmt.Errorf("%w: order id is required", orders.ErrValidation)
	}
	if !actor.Valid() {
		return fmt.Errorf("%w: actor is required", orders.ErrValidation)
	}
	return nil
}

func (s *Service) now() time.Time { return s.clock().UTC() }

// load fetches the order and resolves op against the transition table.
func (s *Service) load(ctx context.Context, orderID string, op orders.Operation) (orders.Order, orders.Status, error) {
	o, err := s.orders.GetOrder(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return orders.Order{}, "", err
	}
	to, ok := orders.Next(o.Status, op)
	if !ok {
		return orders.Order{}, "", fmt.Errorf("%w: cannot %s order %s while it is %s", orders.ErrInvalidTransition, op, o.Code, o.Status)
	}
	return o, to, nil
}

// commit writes the new status with a compare-and-swap against the status o was loaded with.
func (s *Service) commit(ctx context.Context, o orders.Order, op orders.Operation, to orders.Status, actor orders.Actor, p orders.Patch) (orders.Order, error) {
	updated, err := s.write(ctx, o, to, actor, p)
	if err != nil {
		return orders.Order{}, fmt.Errorf("%s order %s: %w", op, o.Code, err)
	}
	s.after(ctx, o.Status, updated, op, actor, "")
	return updated, nil
}

func (s *Service) write(ctx context.Context, o orders.Order, to orders.Status, actor orders.Actor, p orders.Patch) (orders.Order, error) {
	from := o.Status
	p.ExpectStatus = &from
	p.Status = &to
	p.UpdatedAt = s.now()
	p.UpdatedBy = strings.TrimSpace(actor.ID)
	return s.orders.SetOrderFields(ctx, o.ID, p)
}

type moveFunc func(context.Context, orders.Order, orders.Actor) (inventory.Result, error)

// moveGoods claims the status first so only one caller can move the goods of an order,
// then records the movement. A movement that never got persisted undoes the claim; one
// that got persisted but not fully applied is reported as a partial apply. A process that
// dies between the claim and the insert leaves the new status without its movement and no
// caller ever sees an error; CheckMovements finds such orders.
func (s *Service) moveGoods(ctx context.Context, o orders.Order, op orders.Operation, to orders.Status, actor orders.Actor, p orders.Patch, move moveFunc) (Transition, error) {
	claimed, err := s.write(ctx, o, to, actor, p)
	if err != nil {
		return Transition{}, fmt.Errorf("%s order %s: %w", op, o.Code, err)
	}

	res, err := move(ctx, claimed, actor)
	if err == nil {
		s.after(ctx, o.Status, claimed, op, actor, res.Record.Code)
		return Transition{Order: claimed, Movement: res}, nil
	}

	var partial *orders.PartialApplyError
	if errors.As(err, &partial) {
		partial.OrderCode = claimed.Code
		s.log.Error("order moved but stock not fully applied",
			zap.String("order", claimed.Code),
			zap.String("operation", string(op)),
			zap.String("movement", partial.MovementCode),
			zap.Error(err),
		)
		s.after(ctx, o.Status, claimed, op, actor, res.Record.Code)
		return Transition{Order: claimed, Movement: res}, partial
	}

	if rerr := s.revert(ctx, o, to, actor, op); rerr != nil {
		s.log.Error("order status claimed but movement missing",
			zap.String("order", claimed.Code),
			zap.String("operation", string(op)),
			zap.NamedError("movement_error", err),
			zap.NamedError("revert_error", rerr),
		)
		return Transition{Order: claimed}, &orders.PartialApplyError{
			OrderCode: claimed.Code,
			Err:       fmt.Errorf("%s: %v; reverting status to %s: %w", op, err, o.Status, rerr),
		}
	}
	if errors.Is(err, orders.ErrValidation) || errors.Is(err, orders.ErrNotFound) {
		return Transition{}, fmt.Errorf("%s order %s: %w", op, o.Code, err)
	}
	return Transition{}, fmt.Errorf("%s order %s: record movement: %w", op, o.Code, err)
}

// revert puts back every field the claim may have touched.
func (s *Service) revert(ctx context.Context, prev orders.Order, claimed orders.Status, actor orders.Actor, op orders.Operation) error {
	p := orders.Patch{
		ExpectStatus:   &claimed,
		Status:         orders.Ptr(prev.Status),
		PaymentStatus:  orders.Ptr(prev.PaymentStatus),
		Courier:        orders.Ptr(prev.Courier),
		TrackingNumber: orders.Ptr(prev.TrackingNumber),
		DeliveryPerson: orders.Ptr(prev.DeliveryPerson),
		AppendNote:     fmt.Sprintf("Reverted %s: stock movement could not be recorded", op),
		UpdatedAt:      s.now(),
		UpdatedBy:      strings.TrimSpace(actor.ID),
	}
	if prev.Refund != nil {
		r := *prev.Refund
		p.Refund = &r
	} else {
		p.ClearRefund = true
	}
	_, err := s.orders.SetOrderFields(ctx, prev.ID, p)
	return err
}

func (s *Service) after(ctx context.Context, from orders.Status, o orders.Order, op orders.Operation, actor orders.Actor, movementCode string) {
	s.log.Info("order transition",
		zap.String("order", o.Code),
		zap.String("operation", string(op)),
		zap.String("from", string(from)),
		zap.String("to", string(o.Status)),
		zap.String("actor", actor.ID),
		zap.String("movement", movementCode),
	)
	s.evict(ctx, o.Code)
	err := s.events.Publish(ctx, orders.TopicOrderStatus, orders.PartitionKey(o.Code), orders.EventOrderStatusChanged, orders.OrderStatusChangedPayload{
		OrderID:        o.ID,
		OrderCode:      o.Code,
		Operation:      op,
		PreviousStatus: from,
		Status:         o.Status,
		PaymentStatus:  o.PaymentStatus,
		ActorID:        actor.ID,
		MovementCode:   movementCode,
	})
	if err != nil {
		s.log.Warn("publish status change", zap.String("order", o.Code), zap.Error(err))
	}
}

func (s *Service) evict(ctx context.Context, code string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Evict(ctx, code); err != nil {
		s.log.Warn("evict tracking cache", zap.String("order", code), zap.Error(err))
	}
}

// Movements lists the stock movements linked to an order.
func (s *Service) Movements(ctx context.Context, orderID string) ([]inventory.Record, error) {
	o, err := s.orders.GetOrder(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return nil, err
	}
	return s.recorder.MovementsForOrder(ctx, o.Code)
}

// movedBy lists the movement directions an order in st must already have on record.
func movedBy(st orders.Status) []inventory.Direction {
	switch st {
	case orders.StatusShipping, orders.StatusCompleted, orders.StatusDeliveryFailed,
		orders.StatusReturnRequested, orders.StatusReturnProcessing:
		return []inventory.Direction{inventory.DirectionIssue}
	case orders.StatusReturnCompleted:
		return []inventory.Direction{inventory.DirectionIssue, inventory.DirectionReceipt}
	}
	return nil
}

// CheckMovements reports, as a partial apply, an order whose status says goods left or came
// back but which has no linked movement record for it.
func (s *Service) CheckMovements(ctx context.Context, orderID string) error {
	o, err := s.orders.GetOrder(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return err
	}
	want := movedBy(o.Status)
	if len(want) == 0 {
		return nil
	}
	recs, err := s.recorder.MovementsForOrder(ctx, o.Code)
	if err != nil {
		return err
	}
	have := make(map[inventory.Direction]bool, len(recs))
	for _, r := range recs {
		have[r.Direction] = true
	}
	var missing []string
	for _, d := range want {
		if !have[d] {
			missing = append(missing, d.Prefix())
		}
	}
	if len(missing) == 0 {
		return nil
	}
	s.log.Error("order status without movement",
		zap.String("order", o.Code),
		zap.String("status", string(o.Status)),
		zap.Strings("missing", missing),
	)
	return &orders.PartialApplyError{
		OrderCode: o.Code,
		Err:       fmt.Errorf("order is %s but has no %s movement", o.Status, strings.Join(missing, "/")),
	}
}
