package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockReader struct {
	messages []kafka.Message
	cancel   context.CancelFunc
	closed   bool
}

func (m *MockReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(m.messages) == 0 {
		m.cancel()
		return kafka.Message{}, ctx.Err()
	}
	msg := m.messages[0]
	m.messages = m.messages[1:]
	return msg, nil
}

func (m *MockReader) Close() error {
	m.closed = true
	return nil
}

type MockCarts struct {
	cleared []string
	err     error
}

func (m *MockCarts) ClearCart(_ context.Context, userID string) error {
	m.cleared = append(m.cleared, userID)
	return m.err
}

func message(t *testing.T, evt Event) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(evt)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(evt.OrderID), Value: payload}
}

func TestConsumer_ClearsCartOnPaidOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &MockReader{cancel: cancel, messages: []kafka.Message{
		message(t, Event{Type: OrderCreated, OrderID: "o1", UserID: "u1"}),
		{Value: []byte("not json")},
		message(t, Event{Type: OrderPaid, OrderID: "o1", UserID: "u1"}),
		message(t, Event{Type: OrderPaid, OrderID: "o2", UserID: "u2"}),
	}}
	carts := &MockCarts{}

	c := NewConsumer(reader)
	c.Handle(OrderPaid, ClearCartOnPaid(carts))
	c.Run(ctx)

	assert.Equal(t, []string{"u1", "u2"}, carts.cleared)
	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
}

func TestConsumer_HandlerErrorDoesNotStopLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &MockReader{cancel: cancel, messages: []kafka.Message{
		message(t, Event{Type: OrderPaid, OrderID: "o1", UserID: "u1"}),
		message(t, Event{Type: OrderPaid, OrderID: "o2", UserID: "u2"}),
	}}
	carts := &MockCarts{err: errors.New("mongo down")}

	c := NewConsumer(reader)
	c.Handle(OrderPaid, ClearCartOnPaid(carts))
	c.Run(ctx)

	assert.Len(t, carts.cleared, 2)
}

func TestClearCartOnPaid_RequiresUser(t *testing.T) {
	err := ClearCartOnPaid(&MockCarts{})(context.Background(), Event{Type: OrderPaid})

	assert.Error(t, err)
}

type failingReader struct {
	reads atomic.Int32
}

func (r *failingReader) ReadMessage(context.Context) (kafka.Message, error) {
	r.reads.Add(1)
	return kafka.Message{}, errors.New("broker unavailable")
}

func (r *failingReader) Close() error { return nil }

func TestConsumer_WaitsBetweenFailedReads(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	reader := &failingReader{}

	c := NewConsumer(reader)
	c.retryDelay = 100 * time.Millisecond
	start := time.Now()
	c.Run(ctx)

	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
	assert.LessOrEqual(t, reader.reads.Load(), int32(3))
	assert.GreaterOrEqual(t, reader.reads.Load(), int32(2))
}
