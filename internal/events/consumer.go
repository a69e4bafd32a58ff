package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/pkg/logger"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type Handler func(ctx context.Context, evt Event) error

// Consumer reads order events and dispatches them by type. Unknown types are skipped.
type Consumer struct {
	reader     MessageReader
	handlers   map[string]Handler
	retryDelay time.Duration
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

func NewConsumer(reader MessageReader) *Consumer {
	return &Consumer{reader: reader, handlers: map[string]Handler{}, retryDelay: time.Second}
}

func (c *Consumer) Handle(eventType string, h Handler) {
	c.handlers[eventType] = h
}

// Run consumes until ctx is cancelled. After a failed read it waits retryDelay before reading again.
func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.consumeOne(ctx); err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.retryDelay):
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// consumeOne returns an error only when the read itself failed.
func (c *Consumer) consumeOne(ctx context.Context) error {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.FromContext(ctx).WithError(err).Error("error reading order event")
		}
		return err
	}

	var evt Event
	if err := json.Unmarshal(m.Value, &evt); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("offset", m.Offset).Error("error parsing order event")
		return nil
	}

	h, ok := c.handlers[evt.Type]
	if !ok {
		return nil
	}
	if err := h(ctx, evt); err != nil {
		logger.FromContext(ctx).WithError(err).WithFields(log.Fields{
			"event_type": evt.Type,
			"order_id":   evt.OrderID,
		}).Error("order event handler failed")
	}
	return nil
}

// CartClearer is implemented by the cart service.
type CartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

// ClearCartOnPaid empties the buyer's cart once an order is paid. The order service clears
// it synchronously too; this catches the cases where that attempt failed.
func ClearCartOnPaid(carts CartClearer) Handler {
	return func(ctx context.Context, evt Event) error {
		if evt.UserID == "" {
			return domain.Invalid("user_id", "missing user_id")
		}
		return carts.ClearCart(ctx, evt.UserID)
	}
}
