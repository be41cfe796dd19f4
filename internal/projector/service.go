// Package projector follows the order event stream and keeps read-side state in step:
// it drops stale tracking snapshots and surfaces stock discrepancies to operators.
package projector

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

// Topics the projector subscribes to.
var Topics = []string{orders.TopicOrderStatus, orders.TopicRefund, orders.TopicStock}

type Evictor interface {
	Evict(ctx context.Context, code string) error
}

type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type Service struct {
	Cache  Evictor
	Dedup  Deduper
	Logger *zap.Logger
}

// Handle dipasang sebagai handler consumer. Error berarti offset tidak di-commit.
func (s *Service) Handle(ctx context.Context, m kafkago.Message) error {
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}

	switch kafkax.EventType(m) {
	case "", orders.EventOrderStatusChanged, orders.EventRefundRequested, orders.EventRefundConfirmed, orders.EventStockDiscrepancy:
	default:
		return nil
	}

	env, err := kafkax.DecodeEnvelope(m)
	if err != nil {
		// pesan rusak tidak akan pernah sukses; commit saja
		log.Error("drop undecodable event", zap.String("topic", m.Topic), zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}

	if s.Dedup != nil && env.EventID != "" {
		first, err := s.Dedup.Claim(ctx, env.EventID)
		if err != nil {
			return err
		}
		if !first {
			return nil
		}
	}

	if err := s.apply(ctx, log, env); err != nil {
		if s.Dedup != nil && env.EventID != "" {
			if rerr := s.Dedup.Release(ctx, env.EventID); rerr != nil {
				log.Warn("release dedup key", zap.String("event_id", env.EventID), zap.Error(rerr))
			}
		}
		return err
	}
	return nil
}

func (s *Service) apply(ctx context.Context, log *zap.Logger, env orders.Envelope) error {
	switch env.EventType {
	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return nil
		}
		log.Info("order status projected",
			zap.String("order", p.OrderCode),
			zap.String("from", string(p.PreviousStatus)),
			zap.String("to", string(p.Status)),
		)
		return s.evict(ctx, p.OrderCode)

	case orders.EventRefundRequested, orders.EventRefundConfirmed:
		p, err := kafkax.UnwrapPayload[orders.RefundPayload](env.Payload)
		if err != nil {
			return nil
		}
		return s.evict(ctx, p.OrderCode)

	case orders.EventStockDiscrepancy:
		p, err := kafkax.UnwrapPayload[orders.StockDiscrepancyPayload](env.Payload)
		if err != nil {
			return nil
		}
		log.Warn("stock discrepancy needs reconciliation",
			zap.String("movement", p.MovementCode),
			zap.String("variant", p.VariantID),
			zap.Int("requested", p.Requested),
			zap.Int("available", p.Available),
			zap.Int("shortfall", p.Shortfall),
		)
	}
	return nil
}

func (s *Service) evict(ctx context.Context, code string) error {
	if s.Cache == nil || code == "" {
		return nil
	}
	if err := s.Cache.Evict(ctx, code); err != nil {
		return fmt.Errorf("evict tracking snapshot %s: %w", code, err)
	}
	return nil
}
