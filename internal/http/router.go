package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Orders   *OrdersHandler
	Payments *PaymentsHandler
	Admin    *AdminHandler
	Reviews  *ReviewsHandler
}

// NewRouter builds the public, callback and admin API.
func NewRouter(h Handlers, maxBodyBytes int64) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(middleware.RequestSize(maxBodyBytes))
	r.Use(IdentityMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Gateways and anonymous shoppers
		r.Post("/payments/callback", h.Payments.Callback)
		r.Post("/payments/paypage/callback", h.Payments.PayPageCallback)
		r.Get("/reviews", h.Reviews.GetReviews)

		r.Group(func(r chi.Router) {
			r.Use(RequireUser)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Delete("/", h.Cart.ClearCart)
				r.Post("/items", h.Cart.AddItem)
				r.Put("/items/{product_id}", h.Cart.UpdateQuantity)
				r.Delete("/items/{product_id}", h.Cart.RemoveItem)
			})

			r.Post("/checkout", h.Checkout.Checkout)
			r.Post("/checkout/coupon", h.Checkout.ValidateCoupon)
			r.Post("/payments/failure", h.Payments.Failure)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.Orders.ListOrders)
				r.Get("/{order_id}", h.Orders.GetOrder)
				r.Post("/{order_id}/cancel", h.Orders.CancelOrder)
				r.Post("/{order_id}/retry-payment", h.Checkout.RetryPayment)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", h.Admin.ListOrders)
				r.Get("/by-number/{number}", h.Admin.GetOrderByNumber)
				r.Get("/{order_id}", h.Admin.GetOrder)
				r.Patch("/{order_id}/status", h.Admin.UpdateStatus)
				r.Post("/{order_id}/refund", h.Admin.Refund)
				r.Post("/{order_id}/notes", h.Admin.AddNote)
				r.Delete("/{order_id}", h.Admin.DeleteOrder)
			})
			r.Route("/coupons", func(r chi.Router) {
				r.Get("/", h.Admin.ListCoupons)
				r.Post("/", h.Admin.CreateCoupon)
				r.Patch("/{code}", h.Admin.SetCouponActive)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}

// NewServer wraps handler with the server timeouts used in every environment.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
