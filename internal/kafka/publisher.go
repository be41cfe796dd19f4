package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

const eventVersion = 1

// EventPublisher wraps domain payloads in the versioned envelope and hands them to a Producer.
type EventPublisher struct {
	producer *Producer
	service  string
	clock    func() time.Time
}

func NewEventPublisher(p *Producer, service string) *EventPublisher {
	return &EventPublisher{producer: p, service: service, clock: time.Now}
}

func (e *EventPublisher) Publish(ctx context.Context, topic string, key []byte, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  eventVersion,
		OccurredAt:    e.clock().UTC(),
		Producer:      e.service,
		TraceID:       middleware.GetReqID(ctx),
		CorrelationID: string(key),
		Payload:       body,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", eventType, err)
	}
	return e.producer.Publish(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(eventType)},
			{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(eventVersion))},
		},
	})
}
