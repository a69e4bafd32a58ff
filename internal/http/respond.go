package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/internal/checkout"
	"github.com/fjod/go_cart/internal/coupon"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/gateway"
	"github.com/fjod/go_cart/pkg/circuitbreaker"
	"github.com/fjod/go_cart/pkg/logger"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
	OrderID string `json:"order_id,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContext(context.Background()).WithError(err).Error("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps service errors onto status codes and stable error codes.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		couponErr  *coupon.Error
		validErr   *domain.ValidationError
		paymentErr *checkout.PaymentError
	)

	switch {
	case errors.As(err, &couponErr):
		respondError(w, http.StatusUnprocessableEntity, string(couponErr.Reason), couponErr.Message())
	case errors.As(err, &validErr):
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   validErr.Message,
			Code:    "validation_failed",
			Details: validErr.Field,
		})
	case errors.As(err, &paymentErr):
		logger.FromContext(r.Context()).WithError(err).Warn("order created but payment not started")
		status := http.StatusBadGateway
		if gateway.IsTimeout(err) {
			status = http.StatusGatewayTimeout
		}
		respondJSON(w, status, ErrorResponse{
			Error:   "payment could not be started, retry payment or cancel the order",
			Code:    "payment_not_started",
			OrderID: paymentErr.Order.ID,
		})
	case errors.Is(err, domain.ErrValidation):
		respondError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", "not allowed")
	case errors.Is(err, domain.ErrSignatureMismatch):
		respondError(w, http.StatusUnauthorized, "signature_mismatch", "callback signature could not be verified")
	case errors.Is(err, domain.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, domain.ErrConcurrencyConflict):
		respondError(w, http.StatusConflict, "conflict", "order was modified concurrently, retry")
	case gateway.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "upstream timed out")
	case errors.Is(err, circuitbreaker.ErrOpen), errors.Is(err, domain.ErrUpstreamUnavailable):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "upstream unavailable")
	case errors.Is(err, domain.ErrGateway):
		logger.FromContext(r.Context()).WithError(err).Error("payment gateway error")
		respondError(w, http.StatusBadGateway, "gateway_error", "payment gateway error")
	default:
		logger.FromContext(r.Context()).WithError(err).Error("request failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
