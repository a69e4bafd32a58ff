package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/internal/checkout"
	"github.com/go-chi/chi/v5"
)

type CheckoutService interface {
	Checkout(ctx context.Context, userID string, req checkout.Request) (*checkout.Result, error)
	RetryPayment(ctx context.Context, userID, orderID string) (*checkout.Result, error)
	ValidateCoupon(ctx context.Context, userID, code string) (*checkout.CouponPreview, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	timeout  time.Duration
}

func NewCheckoutHandler(svc CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: svc,
		timeout:  timeout,
	}
}

type ValidateCouponRequestDTO struct {
	Code string `json:"code"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req checkout.Request
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	res, err := h.checkout.Checkout(ctx, getUserIDFromContext(r.Context()), req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// POST /api/v1/checkout/coupon
func (h *CheckoutHandler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ValidateCouponRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	preview, err := h.checkout.ValidateCoupon(ctx, getUserIDFromContext(r.Context()), req.Code)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, preview)
}

// POST /api/v1/orders/{order_id}/retry-payment
func (h *CheckoutHandler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.checkout.RetryPayment(ctx, getUserIDFromContext(r.Context()), chi.URLParam(r, "order_id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
