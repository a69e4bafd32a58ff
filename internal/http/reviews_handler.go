package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/internal/reviews"
)

type ReviewReader interface {
	Get(ctx context.Context) reviews.Response
}

type ReviewsHandler struct {
	reviews ReviewReader
	timeout time.Duration
}

func NewReviewsHandler(r ReviewReader, timeout time.Duration) *ReviewsHandler {
	return &ReviewsHandler{reviews: r, timeout: timeout}
}

// GET /api/v1/reviews
func (h *ReviewsHandler) GetReviews(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	respondJSON(w, http.StatusOK, h.reviews.Get(ctx))
}
