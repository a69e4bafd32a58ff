package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockWriter struct {
	Messages []kafka.Message
	Err      error
	Closed   bool
	CtxErr   error
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.CtxErr = ctx.Err()
	if m.Err != nil {
		return m.Err
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockWriter) Close() error {
	m.Closed = true
	return nil
}

func testOrder() *domain.Order {
	return &domain.Order{
		ID:          "ord-1",
		OrderNumber: 1001,
		UserID:      "u1",
		Status:      domain.OrderStatusPaid,
		Total:       118,
		Currency:    "INR",
		UpdatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPublish_WritesKeyedMessage(t *testing.T) {
	w := &MockWriter{}
	p := NewPublisher(w, time.Second)

	p.Publish(context.Background(), NewOrderEvent(OrderPaid, testOrder(), domain.OrderStatusCreated))

	require.Len(t, w.Messages, 1)
	msg := w.Messages[0]
	assert.Equal(t, "ord-1", string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, OrderPaid, string(msg.Headers[0].Value))

	var evt Event
	require.NoError(t, json.Unmarshal(msg.Value, &evt))
	assert.Equal(t, OrderPaid, evt.Type)
	assert.Equal(t, domain.OrderStatusCreated, evt.PreviousStatus)
	assert.Equal(t, int64(1001), evt.OrderNumber)
	assert.NotEmpty(t, evt.ID)
}

func TestPublish_SurvivesCallerCancellation(t *testing.T) {
	w := &MockWriter{}
	p := NewPublisher(w, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p.Publish(ctx, NewOrderEvent(OrderCreated, testOrder(), ""))

	assert.NoError(t, w.CtxErr)
	assert.Len(t, w.Messages, 1)
}

func TestPublish_ErrorIsSwallowed(t *testing.T) {
	w := &MockWriter{Err: errors.New("broker down")}
	p := NewPublisher(w, time.Second)

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), NewOrderEvent(OrderCreated, testOrder(), ""))
	})
}

func TestPublish_NilPublisherIsNoop(t *testing.T) {
	var p *Publisher
	assert.NotPanics(t, func() {
		p.Publish(context.Background(), NewOrderEvent(OrderCreated, testOrder(), ""))
	})
	assert.NoError(t, p.Close())
}
