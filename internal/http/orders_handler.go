package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/order"
	"github.com/go-chi/chi/v5"
)

// OrderService is everything the customer, callback and admin routes need from orders.
type OrderService interface {
	GetMine(ctx context.Context, userID, id string) (*domain.Order, error)
	ListMine(ctx context.Context, userID string, page, limit int) (*order.Page, error)
	CancelMine(ctx context.Context, userID, id string) (*domain.Order, error)
	ReportPaymentFailure(ctx context.Context, userID, gatewayOrderRef, reason string) (*domain.Order, error)

	ConfirmPayment(ctx context.Context, cb order.Callback) (*domain.Order, error)
	ConfirmPayPage(ctx context.Context, xVerify, encodedResponse string) (*domain.Order, error)

	Get(ctx context.Context, id string) (*domain.Order, error)
	GetByNumber(ctx context.Context, number int64) (*domain.Order, error)
	List(ctx context.Context, filter order.ListFilter) (*order.Page, error)
	UpdateStatus(ctx context.Context, id string, to domain.OrderStatus) (*domain.Order, error)
	Refund(ctx context.Context, id string, amount *float64) (*domain.Order, error)
	AddNote(ctx context.Context, id, note string) (*domain.Order, error)
	Delete(ctx context.Context, id string) error
}

type OrdersHandler struct {
	orders  OrderService
	timeout time.Duration
}

func NewOrdersHandler(orders OrderService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

// GET /api/v1/orders
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, limit, ok := pagination(w, r)
	if !ok {
		return
	}

	resp, err := h.orders.ListMine(ctx, getUserIDFromContext(r.Context()), page, limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	o, err := h.orders.GetMine(ctx, getUserIDFromContext(r.Context()), orderID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// POST /api/v1/orders/{order_id}/cancel
func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	o, err := h.orders.CancelMine(ctx, getUserIDFromContext(r.Context()), chi.URLParam(r, "order_id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// pagination reads page/limit query parameters. Zero values fall back to service defaults.
func pagination(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	q := r.URL.Query()
	page, limit := 0, 0
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid_page", "page must be a positive integer")
			return 0, 0, false
		}
		page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return 0, 0, false
		}
		limit = n
	}
	return page, limit, true
}
