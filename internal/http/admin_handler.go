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

type CouponAdmin interface {
	Create(ctx context.Context, c *domain.Coupon) error
	List(ctx context.Context) ([]domain.Coupon, error)
	SetActive(ctx context.Context, code string, active bool) error
}

type AdminHandler struct {
	orders  OrderService
	coupons CouponAdmin
	timeout time.Duration
}

func NewAdminHandler(orders OrderService, coupons CouponAdmin, timeout time.Duration) *AdminHandler {
	return &AdminHandler{
		orders:  orders,
		coupons: coupons,
		timeout: timeout,
	}
}

type UpdateStatusRequestDTO struct {
	Status domain.OrderStatus `json:"status"`
}

// RefundRequestDTO refunds the full total when Amount is omitted.
type RefundRequestDTO struct {
	Amount *float64 `json:"amount,omitempty"`
}

type AddNoteRequestDTO struct {
	Note string `json:"note"`
}

type SetCouponActiveRequestDTO struct {
	Active bool `json:"active"`
}

// GET /api/v1/admin/orders?status=&page=&limit=
func (h *AdminHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, limit, ok := pagination(w, r)
	if !ok {
		return
	}
	filter := order.ListFilter{
		UserID: r.URL.Query().Get("user_id"),
		Status: domain.OrderStatus(r.URL.Query().Get("status")),
		Page:   page,
		Limit:  limit,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_status", "unknown order status")
		return
	}

	resp, err := h.orders.List(ctx, filter)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// GET /api/v1/admin/orders/{order_id}
func (h *AdminHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	o, err := h.orders.Get(ctx, chi.URLParam(r, "order_id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// GET /api/v1/admin/orders/by-number/{number}
func (h *AdminHandler) GetOrderByNumber(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	number, err := strconv.ParseInt(chi.URLParam(r, "number"), 10, 64)
	if err != nil || number <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_order_number", "order number must be a positive integer")
		return
	}

	o, err := h.orders.GetByNumber(ctx, number)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// PATCH /api/v1/admin/orders/{order_id}/status
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateStatusRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	o, err := h.orders.UpdateStatus(ctx, chi.URLParam(r, "order_id"), req.Status)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// POST /api/v1/admin/orders/{order_id}/refund
func (h *AdminHandler) Refund(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req RefundRequestDTO
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
	}

	o, err := h.orders.Refund(ctx, chi.URLParam(r, "order_id"), req.Amount)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// POST /api/v1/admin/orders/{order_id}/notes
func (h *AdminHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddNoteRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	o, err := h.orders.AddNote(ctx, chi.URLParam(r, "order_id"), req.Note)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// DELETE /api/v1/admin/orders/{order_id}
func (h *AdminHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.orders.Delete(ctx, chi.URLParam(r, "order_id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/admin/coupons
func (h *AdminHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var c domain.Coupon
	if err := decodeJSON(r, &c); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.coupons.Create(ctx, &c); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// GET /api/v1/admin/coupons
func (h *AdminHandler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	coupons, err := h.coupons.List(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, coupons)
}

// PATCH /api/v1/admin/coupons/{code}
func (h *AdminHandler) SetCouponActive(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SetCouponActiveRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.coupons.SetActive(ctx, chi.URLParam(r, "code"), req.Active); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
