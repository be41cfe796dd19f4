package projector

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

type stubEvictor struct {
	evictFn func(ctx context.Context, code string) error
	codes   []string
}

func (s *stubEvictor) Evict(ctx context.Context, code string) error {
	s.codes = append(s.codes, code)
	if s.evictFn != nil {
		return s.evictFn(ctx, code)
	}
	return nil
}

type memDedup struct {
	seen     map[string]bool
	released []string
}

func (d *memDedup) Claim(_ context.Context, id string) (bool, error) {
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memDedup) Release(_ context.Context, id string) error {
	delete(d.seen, id)
	d.released = append(d.released, id)
	return nil
}

func message(t *testing.T, eventID, eventType string, payload any) kafkago.Message {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	value, err := json.Marshal(orders.Envelope{EventID: eventID, EventType: eventType, EventVersion: 1, Payload: body})
	require.NoError(t, err)
	return kafkago.Message{
		Topic:   orders.TopicOrderStatus,
		Value:   value,
		Headers: []kafkago.Header{{Key: kafkax.HeaderEventType, Value: []byte(eventType)}},
	}
}

func TestHandleStatusChangeEvictsOnce(t *testing.T) {
	cache := &stubEvictor{}
	svc := &Service{Cache: cache, Dedup: &memDedup{seen: map[string]bool{}}}
	m := message(t, "ev-1", orders.EventOrderStatusChanged, orders.OrderStatusChangedPayload{OrderCode: "ORD-1", Status: orders.StatusShipping})

	require.NoError(t, svc.Handle(context.Background(), m))
	require.NoError(t, svc.Handle(context.Background(), m))
	require.Equal(t, []string{"ORD-1"}, cache.codes)
}

func TestHandleRefundEventEvicts(t *testing.T) {
	cache := &stubEvictor{}
	svc := &Service{Cache: cache}
	m := message(t, "ev-2", orders.EventRefundConfirmed, orders.RefundPayload{OrderCode: "ORD-9"})

	require.NoError(t, svc.Handle(context.Background(), m))
	require.Equal(t, []string{"ORD-9"}, cache.codes)
}

func TestHandleFailureReleasesDedupKey(t *testing.T) {
	cache := &stubEvictor{evictFn: func(context.Context, string) error { return errors.New("redis down") }}
	dedup := &memDedup{seen: map[string]bool{}}
	svc := &Service{Cache: cache, Dedup: dedup}
	m := message(t, "ev-3", orders.EventOrderStatusChanged, orders.OrderStatusChangedPayload{OrderCode: "ORD-2"})

	require.Error(t, svc.Handle(context.Background(), m))
	require.Equal(t, []string{"ev-3"}, dedup.released)

	cache.evictFn = nil
	require.NoError(t, svc.Handle(context.Background(), m))
	require.Equal(t, []string{"ORD-2", "ORD-2"}, cache.codes)
}

func TestHandleSkipsUnrelatedAndBrokenMessages(t *testing.T) {
	cache := &stubEvictor{}
	svc := &Service{Cache: cache}

	require.NoError(t, svc.Handle(context.Background(), message(t, "ev-4", orders.EventStockMoved, orders.StockMovedPayload{})))
	require.NoError(t, svc.Handle(context.Background(), kafkago.Message{Value: []byte("not json")}))
	require.NoError(t, svc.Handle(context.Background(), message(t, "ev-5", orders.EventStockDiscrepancy, orders.StockDiscrepancyPayload{VariantID: "v1", Shortfall: 3})))
	require.Empty(t, cache.codes)
}
