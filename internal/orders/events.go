package orders

import (
	"context"
	"encoding/json"
	"time"
)

const (
	EventOrderStatusChanged = "OrderStatusChanged"
	EventStockMoved         = "StockMoved"
	EventStockDiscrepancy   = "StockDiscrepancy"
	EventRefundRequested    = "RefundRequested"
	EventRefundConfirmed    = "RefundConfirmed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "fulfillment-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya order code
	Payload       json.RawMessage `json:"payload"`                  // payload spesifik
}

// ---- Payload tipe per event ----

type OrderStatusChangedPayload struct {
	OrderID        string        `json:"order_id"`
	OrderCode      string        `json:"order_code"`
	Operation      Operation     `json:"operation"`
	PreviousStatus Status        `json:"previous_status"`
	Status         Status        `json:"status"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	ActorID        string        `json:"actor_id"`
	MovementCode   string        `json:"movement_code,omitempty"`
}

type MovementLinePayload struct {
	VariantID string `json:"variant_id"`
	Qty       int    `json:"qty"`
	StockNow  int    `json:"stock_now"`
}

type StockMovedPayload struct {
	MovementCode string                `json:"movement_code"`
	Direction    string                `json:"direction"` // RECEIPT | ISSUE
	OrderCode    string                `json:"order_code,omitempty"`
	Lines        []MovementLinePayload `json:"lines"`
}

type StockDiscrepancyPayload struct {
	MovementCode string `json:"movement_code"`
	VariantID    string `json:"variant_id"`
	Requested    int    `json:"requested"`
	Available    int    `json:"available"`
	Shortfall    int    `json:"shortfall"`
}

type RefundPayload struct {
	OrderID   string       `json:"order_id"`
	OrderCode string       `json:"order_code"`
	RequestID string       `json:"request_id"`
	Status    RefundStatus `json:"status"`
	ActorID   string       `json:"actor_id"`
}

// Publisher ships domain events to downstream consumers. Delivery is best effort:
// callers log a failed publish and carry on.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, eventType string, payload any) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, []byte, string, any) error { return nil }
