package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fjod/go_cart/internal/metrics"
	"github.com/fjod/go_cart/pkg/circuitbreaker"
	"github.com/go-resty/resty/v2"
)

const (
	gatewayName          = "payments"
	idempotencyKeyHeader = "Idempotency-Key"
)

type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// OrderRequest is the gateway's order-creation body. Amount is in minor units.
type OrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type OrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// RefundRequest is the gateway's refund body. IdempotencyKey travels as a header so a
// repeated refund for the same order is not paid out twice.
type RefundRequest struct {
	Amount         *int64 `json:"amount,omitempty"`
	IdempotencyKey string `json:"-"`
}

type RefundResponse struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// Client talks to the card payment gateway. Calls are never retried here.
type Client struct {
	http    *resty.Client
	breaker *circuitbreaker.Breaker[*resty.Response]
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetBasicAuth(cfg.KeyID, cfg.KeySecret).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout).
		SetRetryCount(0)

	return &Client{
		http:    httpClient,
		breaker: newBreaker(gatewayName),
	}
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	var out OrderResponse
	if err := c.post(ctx, "create_order", "/v1/orders", nil, req, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, &Error{Kind: KindDecode, Op: "create_order", Err: errors.New("response has no order id")}
	}
	return &out, nil
}

func (c *Client) Refund(ctx context.Context, paymentRef string, req RefundRequest) (*RefundResponse, error) {
	var out RefundResponse
	path := fmt.Sprintf("/v1/payments/%s/refund", paymentRef)
	var headers map[string]string
	if req.IdempotencyKey != "" {
		headers = map[string]string{idempotencyKeyHeader: req.IdempotencyKey}
	}
	if err := c.post(ctx, "refund", path, headers, req, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, &Error{Kind: KindDecode, Op: "refund", Err: errors.New("response has no refund id")}
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, op, path string, headers map[string]string, body, out any) error {
	resp, err := c.breaker.Execute(func() (*resty.Response, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeaders(headers).
			SetBody(body).
			Post(path)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, statusError(op, resp.StatusCode(), resp.String())
		}
		return resp, nil
	})
	if err != nil {
		var gerr *Error
		if !errors.As(err, &gerr) {
			gerr = transportError(op, err)
		}
		metrics.GatewayCalls.WithLabelValues(gatewayName, op, string(gerr.Kind)).Inc()
		return gerr
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		gerr := statusError(op, resp.StatusCode(), resp.String())
		metrics.GatewayCalls.WithLabelValues(gatewayName, op, string(gerr.Kind)).Inc()
		return gerr
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		metrics.GatewayCalls.WithLabelValues(gatewayName, op, string(KindDecode)).Inc()
		return &Error{Kind: KindDecode, Op: op, Status: resp.StatusCode(), Err: err}
	}
	metrics.GatewayCalls.WithLabelValues(gatewayName, op, "ok").Inc()
	return nil
}

func newBreaker(name string) *circuitbreaker.Breaker[*resty.Response] {
	return circuitbreaker.New[*resty.Response](name, circuitbreaker.Settings{
		OnStateChange: func(cbName string, state int) {
			metrics.CircuitBreakerState.WithLabelValues(cbName).Set(float64(state))
		},
	})
}
