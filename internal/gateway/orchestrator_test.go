package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockGateway implements PaymentGateway for testing
type MockGateway struct {
	OrderReq   *OrderRequest
	RefundRef  string
	RefundReq  *RefundRequest
	OrderResp  *OrderResponse
	RefundResp *RefundResponse
	Err        error
	Deadline   bool
}

func (m *MockGateway) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	_, m.Deadline = ctx.Deadline()
	m.OrderReq = &req
	return m.OrderResp, m.Err
}

func (m *MockGateway) Refund(_ context.Context, paymentRef string, req RefundRequest) (*RefundResponse, error) {
	m.RefundRef = paymentRef
	m.RefundReq = &req
	return m.RefundResp, m.Err
}

func newTestOrchestrator(gw PaymentGateway) *Orchestrator {
	return NewOrchestrator(gw, signature.NewCallbackVerifier("whsec"), "INR", time.Second)
}

func TestCreateGatewayOrder_ConvertsToMinorUnits(t *testing.T) {
	gw := &MockGateway{OrderResp: &OrderResponse{ID: "order_X", Currency: "INR"}}
	o := newTestOrchestrator(gw)

	res, err := o.CreateGatewayOrder(context.Background(), 1179.99, "ord-1", CustomerInfo{UserID: "u1", Email: "a@b.c"})

	require.NoError(t, err)
	assert.Equal(t, "order_X", res.GatewayOrderRef)
	assert.Equal(t, int64(117999), res.AmountMinorUnits)
	assert.Equal(t, int64(117999), gw.OrderReq.Amount)
	assert.Equal(t, "ord-1", gw.OrderReq.Receipt)
	assert.Equal(t, "INR", gw.OrderReq.Currency)
	assert.True(t, gw.Deadline, "gateway call must carry a deadline")
}

func TestCreateGatewayOrder_RejectsNonPositive(t *testing.T) {
	gw := &MockGateway{}
	o := newTestOrchestrator(gw)

	_, err := o.CreateGatewayOrder(context.Background(), 0, "ord-1", CustomerInfo{})

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Nil(t, gw.OrderReq)
}

func TestCreateGatewayOrder_PropagatesGatewayError(t *testing.T) {
	gerr := &Error{Kind: KindTimeout, Op: "create_order", Err: context.DeadlineExceeded}
	o := newTestOrchestrator(&MockGateway{Err: gerr})

	_, err := o.CreateGatewayOrder(context.Background(), 10, "ord-1", CustomerInfo{})

	assert.True(t, IsTimeout(err))
}

func TestVerifyCallback(t *testing.T) {
	o := newTestOrchestrator(&MockGateway{})
	sig := signature.NewCallbackVerifier("whsec").Sign("order_X", "pay_Y")

	assert.True(t, o.VerifyCallback(context.Background(), "order_X", "pay_Y", sig))
	assert.False(t, o.VerifyCallback(context.Background(), "order_X", "pay_Z", sig))
	assert.False(t, o.VerifyCallback(context.Background(), "order_X", "pay_Y", "garbage"))
}

func TestRefund_FullAndPartial(t *testing.T) {
	gw := &MockGateway{RefundResp: &RefundResponse{ID: "rfnd_1"}}
	o := newTestOrchestrator(gw)

	ref, err := o.Refund(context.Background(), "pay_Y", "o-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "rfnd_1", ref)
	assert.Nil(t, gw.RefundReq.Amount)
	assert.Equal(t, "o-1", gw.RefundReq.IdempotencyKey)

	partial := 25.5
	_, err = o.Refund(context.Background(), "pay_Y", "o-1", &partial)
	require.NoError(t, err)
	require.NotNil(t, gw.RefundReq.Amount)
	assert.Equal(t, int64(2550), *gw.RefundReq.Amount)
	assert.Equal(t, "pay_Y", gw.RefundRef)
}

func TestRefund_GatewayFailure(t *testing.T) {
	o := newTestOrchestrator(&MockGateway{Err: &Error{Kind: KindRejected, Op: "refund", Err: errors.New("already refunded")}})

	_, err := o.Refund(context.Background(), "pay_Y", "o-1", nil)

	assert.ErrorIs(t, err, domain.ErrGateway)
}
