package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/metrics"
	"github.com/fjod/go_cart/internal/signature"
	"github.com/fjod/go_cart/pkg/circuitbreaker"
	"github.com/go-resty/resty/v2"
)

const (
	payPageName     = "paypage"
	payPageEndpoint = "/pg/v1/pay"

	PayPageSuccess  = "PAYMENT_SUCCESS"
	PayPageError    = "PAYMENT_ERROR"
	PayPageDeclined = "PAYMENT_DECLINED"
	PayPagePending  = "PAYMENT_PENDING"
)

type PayPageConfig struct {
	BaseURL     string
	MerchantID  string
	SaltKey     string
	SaltIndex   string
	RedirectURL string
	CallbackURL string
	Timeout     time.Duration
}

// PayPageResult is the decoded, verified callback body.
type PayPageResult struct {
	Success               bool   `json:"success"`
	Code                  string `json:"code"`
	Message               string `json:"message"`
	MerchantTransactionID string `json:"-"`
	TransactionID         string `json:"-"`
	Amount                int64  `json:"-"`
}

type payPageRequest struct {
	MerchantID            string            `json:"merchantId"`
	MerchantTransactionID string            `json:"merchantTransactionId"`
	MerchantUserID        string            `json:"merchantUserId"`
	Amount                int64             `json:"amount"`
	RedirectURL           string            `json:"redirectUrl"`
	RedirectMode          string            `json:"redirectMode"`
	CallbackURL           string            `json:"callbackUrl"`
	MobileNumber          string            `json:"mobileNumber,omitempty"`
	PaymentInstrument     map[string]string `json:"paymentInstrument"`
}

type payPageResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		MerchantTransactionID string `json:"merchantTransactionId"`
		TransactionID         string `json:"transactionId"`
		Amount                int64  `json:"amount"`
		InstrumentResponse    struct {
			RedirectInfo struct {
				URL string `json:"url"`
			} `json:"redirectInfo"`
		} `json:"instrumentResponse"`
	} `json:"data"`
}

// PayPageClient integrates the hosted pay-page gateway, which signs with the checksum scheme.
type PayPageClient struct {
	cfg     PayPageConfig
	http    *resty.Client
	signer  *signature.ChecksumSigner
	breaker *circuitbreaker.Breaker[*resty.Response]
}

func NewPayPageClient(cfg PayPageConfig) *PayPageClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &PayPageClient{
		cfg: cfg,
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(cfg.Timeout).
			SetRetryCount(0),
		signer:  signature.NewChecksumSigner(cfg.SaltKey, cfg.SaltIndex),
		breaker: newBreaker(payPageName),
	}
}

// Initiate opens a pay-page session for merchantTxnID and returns the URL to send the customer to.
func (c *PayPageClient) Initiate(ctx context.Context, merchantTxnID string, amountMinor int64, userID, phone string) (string, error) {
	const op = "initiate"
	if amountMinor <= 0 {
		return "", domain.Invalid("amount", "amount must be positive")
	}
	raw, err := json.Marshal(payPageRequest{
		MerchantID:            c.cfg.MerchantID,
		MerchantTransactionID: merchantTxnID,
		MerchantUserID:        userID,
		Amount:                amountMinor,
		RedirectURL:           c.cfg.RedirectURL,
		RedirectMode:          "POST",
		CallbackURL:           c.cfg.CallbackURL,
		MobileNumber:          phone,
		PaymentInstrument:     map[string]string{"type": "PAY_PAGE"},
	})
	if err != nil {
		return "", fmt.Errorf("marshal pay page request: %w", err)
	}
	payload := base64.StdEncoding.EncodeToString(raw)

	resp, err := c.breaker.Execute(func() (*resty.Response, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("X-VERIFY", c.signer.Generate(payload, payPageEndpoint)).
			SetBody(map[string]string{"request": payload}).
			Post(payPageEndpoint)
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
		metrics.GatewayCalls.WithLabelValues(payPageName, op, string(gerr.Kind)).Inc()
		return "", gerr
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		gerr := statusError(op, resp.StatusCode(), resp.String())
		metrics.GatewayCalls.WithLabelValues(payPageName, op, string(gerr.Kind)).Inc()
		return "", gerr
	}

	var out payPageResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		metrics.GatewayCalls.WithLabelValues(payPageName, op, string(KindDecode)).Inc()
		return "", &Error{Kind: KindDecode, Op: op, Status: resp.StatusCode(), Err: err}
	}
	if !out.Success || out.Data.InstrumentResponse.RedirectInfo.URL == "" {
		metrics.GatewayCalls.WithLabelValues(payPageName, op, string(KindRejected)).Inc()
		return "", &Error{Kind: KindRejected, Op: op, Status: resp.StatusCode(), Err: fmt.Errorf("%s: %s", out.Code, out.Message)}
	}
	metrics.GatewayCalls.WithLabelValues(payPageName, op, "ok").Inc()
	return out.Data.InstrumentResponse.RedirectInfo.URL, nil
}

// ParseCallback verifies the X-VERIFY header against the base64 response payload and decodes it.
func (c *PayPageClient) ParseCallback(xVerify, encodedResponse string) (*PayPageResult, error) {
	if !c.signer.Verify(xVerify, encodedResponse) {
		metrics.SignatureFailures.WithLabelValues(payPageName).Inc()
		return nil, domain.ErrSignatureMismatch
	}
	raw, err := base64.StdEncoding.DecodeString(encodedResponse)
	if err != nil {
		return nil, domain.Invalid("response", "payload is not base64")
	}
	var body payPageResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, domain.Invalid("response", "payload is not valid JSON")
	}
	if body.Data.MerchantTransactionID == "" {
		return nil, domain.Invalid("response", "merchantTransactionId is missing")
	}
	return &PayPageResult{
		Success:               body.Success,
		Code:                  body.Code,
		Message:               body.Message,
		MerchantTransactionID: body.Data.MerchantTransactionID,
		TransactionID:         body.Data.TransactionID,
		Amount:                body.Data.Amount,
	}, nil
}
