package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/pkg/logger"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

const (
	OrderCreated       = "order.created"
	OrderPaid          = "order.paid"
	OrderStatusChanged = "order.status_changed"
	OrderCancelled     = "order.cancelled"
	OrderRefunded      = "order.refunded"

	DefaultTopic = "order-events"
)

type Event struct {
	ID             string             `json:"event_id"`
	Type           string             `json:"event_type"`
	OrderID        string             `json:"order_id"`
	OrderNumber    int64              `json:"order_number"`
	UserID         string             `json:"user_id"`
	Status         domain.OrderStatus `json:"status"`
	PreviousStatus domain.OrderStatus `json:"previous_status,omitempty"`
	Total          float64            `json:"total"`
	Currency       string             `json:"currency"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

// NewOrderEvent snapshots o for eventType.
func NewOrderEvent(eventType string, o *domain.Order, previous domain.OrderStatus) Event {
	return Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		UserID:         o.UserID,
		Status:         o.Status,
		PreviousStatus: previous,
		Total:          o.Total,
		Currency:       o.Currency,
		OccurredAt:     o.UpdatedAt,
	}
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes order events to Kafka keyed by order id, so one order's events stay ordered.
type Publisher struct {
	writer  MessageWriter
	timeout time.Duration
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
	}
}

func NewPublisher(writer MessageWriter, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Publisher{writer: writer, timeout: timeout}
}

// Publish is best effort: it outlives the caller's cancellation but not its own timeout,
// and failures are logged, never returned to the transition that produced the event.
func (p *Publisher) Publish(ctx context.Context, evt Event) {
	if p == nil || p.writer == nil {
		return
	}
	if err := p.write(ctx, evt); err != nil {
		logger.FromContext(ctx).WithError(err).WithFields(log.Fields{
			"event_type": evt.Type,
			"order_id":   evt.OrderID,
		}).Error("failed to publish order event")
	}
}

func (p *Publisher) write(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(evt.OrderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	}
	return p.writer.WriteMessages(writeCtx, msg)
}

func (p *Publisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
