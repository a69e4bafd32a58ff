package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration tracks HTTP request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// OrderTransitions counts committed order status changes
	OrderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_order_transitions_total",
			Help: "Committed order status transitions",
		},
		[]string{"from", "to"},
	)

	// GatewayCalls counts outbound payment gateway calls by outcome
	GatewayCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_gateway_calls_total",
			Help: "Payment gateway calls by operation and outcome",
		},
		[]string{"gateway", "operation", "outcome"},
	)

	// SignatureFailures counts callbacks that failed authentication
	SignatureFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_signature_failures_total",
			Help: "Gateway callbacks rejected because the signature did not verify",
		},
		[]string{"gateway"},
	)

	// CacheResults tracks resilient cache outcomes (fresh, cached, stale, error, disabled)
	CacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_results_total",
			Help: "Resilient read cache results",
		},
		[]string{"cache", "result"},
	)

	// CircuitBreakerState tracks circuit breaker state (0=closed, 1=open, 2=half-open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"circuit_name"},
	)

	// CouponRedemptions counts coupons bound to new orders
	CouponRedemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_coupon_redemptions_total",
			Help: "Coupon redemptions bound to created orders",
		},
		[]string{"code"},
	)
)

// Middleware records request count and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		RequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
