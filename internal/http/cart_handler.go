package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/internal/cart"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CartService interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddItem(ctx context.Context, userID string, req cart.AddItemRequest) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, userID, productID, variant string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID, productID, variant string) (*domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

type CartHandler struct {
	carts   CartService
	timeout time.Duration
}

func NewCartHandler(carts CartService, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
	}
}

type UpdateQuantityRequestDTO struct {
	Variant  string `json:"variant"`
	Quantity int    `json:"quantity"`
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	c, err := h.carts.GetCart(ctx, getUserIDFromContext(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req cart.AddItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	c, err := h.carts.AddItem(ctx, getUserIDFromContext(r.Context()), req)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	var req UpdateQuantityRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Variant == "" {
		req.Variant = r.URL.Query().Get("variant")
	}

	c, err := h.carts.UpdateQuantity(ctx, getUserIDFromContext(r.Context()), productID, req.Variant, req.Quantity)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// DELETE /api/v1/cart/items/{product_id}?variant=
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	variant := r.URL.Query().Get("variant")

	c, err := h.carts.RemoveItem(ctx, getUserIDFromContext(r.Context()), productID, variant)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.carts.ClearCart(ctx, getUserIDFromContext(r.Context())); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
