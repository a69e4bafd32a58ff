package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/internal/order"
)

const xVerifyHeader = "X-VERIFY"

type PaymentsHandler struct {
	orders  OrderService
	timeout time.Duration
}

func NewPaymentsHandler(orders OrderService, timeout time.Duration) *PaymentsHandler {
	return &PaymentsHandler{
		orders:  orders,
		timeout: timeout,
	}
}

type PaymentFailureRequestDTO struct {
	GatewayOrderRef string `json:"gateway_order_ref"`
	Reason          string `json:"reason"`
}

type PayPageCallbackDTO struct {
	Response string `json:"response"`
}

// POST /api/v1/payments/callback
func (h *PaymentsHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var cb order.Callback
	if err := decodeJSON(r, &cb); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if cb.GatewayOrderRef == "" || cb.GatewayPaymentRef == "" || cb.Signature == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "gateway_order_ref, gateway_payment_ref and signature are required")
		return
	}

	o, err := h.orders.ConfirmPayment(ctx, cb)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// POST /api/v1/payments/paypage/callback
func (h *PaymentsHandler) PayPageCallback(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var body PayPageCallbackDTO
	if err := decodeJSON(r, &body); err != nil || body.Response == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "response is required")
		return
	}

	o, err := h.orders.ConfirmPayPage(ctx, r.Header.Get(xVerifyHeader), body.Response)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// POST /api/v1/payments/failure
func (h *PaymentsHandler) Failure(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req PaymentFailureRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	o, err := h.orders.ReportPaymentFailure(ctx, getUserIDFromContext(r.Context()), req.GatewayOrderRef, req.Reason)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}
