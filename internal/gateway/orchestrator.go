package gateway

import (
	"context"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/metrics"
	"github.com/fjod/go_cart/internal/pricing"
	"github.com/fjod/go_cart/internal/signature"
	"github.com/fjod/go_cart/pkg/logger"
	log "github.com/sirupsen/logrus"
)

// PaymentGateway is the remote API the orchestrator drives.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error)
	Refund(ctx context.Context, paymentRef string, req RefundRequest) (*RefundResponse, error)
}

type CustomerInfo struct {
	UserID string
	Name   string
	Email  string
	Phone  string
}

// GatewayOrder is the remote payment session opened for one order.
type GatewayOrder struct {
	GatewayOrderRef  string `json:"gateway_order_ref"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
	Currency         string `json:"currency"`
}

type Orchestrator struct {
	gateway  PaymentGateway
	verifier *signature.CallbackVerifier
	currency string
	timeout  time.Duration
}

func NewOrchestrator(gw PaymentGateway, verifier *signature.CallbackVerifier, currency string, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Orchestrator{gateway: gw, verifier: verifier, currency: currency, timeout: timeout}
}

// CreateGatewayOrder opens a remote payment session for amount, receipted as orderRef.
func (o *Orchestrator) CreateGatewayOrder(ctx context.Context, amount float64, orderRef string, customer CustomerInfo) (*GatewayOrder, error) {
	minor := pricing.ToMinorUnits(amount)
	if minor <= 0 {
		return nil, domain.Invalid("amount", "amount must be positive")
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.gateway.CreateOrder(callCtx, OrderRequest{
		Amount:   minor,
		Currency: o.currency,
		Receipt:  orderRef,
		Notes: map[string]string{
			"order_id": orderRef,
			"user_id":  customer.UserID,
			"email":    customer.Email,
		},
	})
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithFields(log.Fields{
			"order_id": orderRef,
			"amount":   minor,
		}).Error("gateway order creation failed")
		return nil, err
	}

	currency := resp.Currency
	if currency == "" {
		currency = o.currency
	}
	return &GatewayOrder{GatewayOrderRef: resp.ID, AmountMinorUnits: minor, Currency: currency}, nil
}

// VerifyCallback authenticates a completion callback. Failures are counted and logged.
func (o *Orchestrator) VerifyCallback(ctx context.Context, gatewayOrderRef, gatewayPaymentRef, providedSignature string) bool {
	if o.verifier.Verify(gatewayOrderRef, gatewayPaymentRef, providedSignature) {
		return true
	}
	metrics.SignatureFailures.WithLabelValues(gatewayName).Inc()
	logger.FromContext(ctx).WithFields(log.Fields{
		"gateway_order_ref":   gatewayOrderRef,
		"gateway_payment_ref": gatewayPaymentRef,
	}).Warn("payment callback signature mismatch")
	return false
}

// Refund refunds a captured payment. A nil amount refunds in full. The gateway deduplicates
// refunds sharing idempotencyKey.
func (o *Orchestrator) Refund(ctx context.Context, gatewayPaymentRef, idempotencyKey string, amount *float64) (string, error) {
	req := RefundRequest{IdempotencyKey: idempotencyKey}
	if amount != nil {
		minor := pricing.ToMinorUnits(*amount)
		if minor <= 0 {
			return "", domain.Invalid("amount", "refund amount must be positive")
		}
		req.Amount = &minor
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.gateway.Refund(callCtx, gatewayPaymentRef, req)
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField("gateway_payment_ref", gatewayPaymentRef).
			Error("gateway refund failed")
		return "", err
	}
	return resp.ID, nil
}
