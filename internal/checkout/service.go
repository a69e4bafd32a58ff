package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/coupon"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/events"
	"github.com/fjod/go_cart/internal/gateway"
	"github.com/fjod/go_cart/internal/metrics"
	"github.com/fjod/go_cart/internal/pricing"
	"github.com/fjod/go_cart/pkg/logger"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const maxNotesLength = 500

// ErrPaymentNotStarted means the order exists but no payment session could be opened.
// The order stays created; the customer can retry payment or cancel it.
var ErrPaymentNotStarted = errors.New("payment could not be started")

// CartReader returns the user's persisted cart, never a cached copy.
type CartReader interface {
	CurrentCart(ctx context.Context, userID string) (*domain.Cart, error)
}

// OrderStore creates orders. Create must redeem order.CouponCode in the same transaction,
// returning a coupon.Error when the coupon can no longer be used.
type OrderStore interface {
	NextOrderNumber(ctx context.Context) (int64, error)
	Create(ctx context.Context, order *domain.Order) error
}

type OrderBinder interface {
	GetMine(ctx context.Context, userID, id string) (*domain.Order, error)
	BindGatewayOrder(ctx context.Context, id, provider, gatewayOrderRef string) (*domain.Order, error)
}

type GatewayOrders interface {
	CreateGatewayOrder(ctx context.Context, amount float64, orderRef string, customer gateway.CustomerInfo) (*gateway.GatewayOrder, error)
}

type PayPage interface {
	Initiate(ctx context.Context, merchantTxnID string, amountMinor int64, userID, phone string) (string, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, evt events.Event)
}

type Request struct {
	CouponCode string              `json:"coupon_code"`
	Shipping   domain.ShippingInfo `json:"shipping"`
	Notes      string              `json:"notes"`
	Provider   string              `json:"provider"`
}

// Result is a created order plus whatever the client needs to complete payment.
type Result struct {
	Order       *domain.Order         `json:"order"`
	Gateway     *gateway.GatewayOrder `json:"gateway,omitempty"`
	RedirectURL string                `json:"redirect_url,omitempty"`
}

// PaymentError carries the created order when opening the payment session failed.
type PaymentError struct {
	Order *domain.Order
	Err   error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("order %s: %v: %v", e.Order.ID, ErrPaymentNotStarted, e.Err)
}

func (e *PaymentError) Unwrap() []error {
	return []error{ErrPaymentNotStarted, e.Err}
}

type CouponPreview struct {
	Code     string             `json:"code"`
	Discount float64            `json:"discount"`
	Summary  domain.CartSummary `json:"summary"`
}

type Service struct {
	carts    CartReader
	pricing  *pricing.Engine
	coupons  *coupon.Validator
	store    OrderStore
	orders   OrderBinder
	gateway  GatewayOrders
	paypage  PayPage
	events   EventPublisher
	currency string
	now      func() time.Time
}

func NewService(
	carts CartReader,
	engine *pricing.Engine,
	coupons *coupon.Validator,
	store OrderStore,
	orders OrderBinder,
	gw GatewayOrders,
	paypage PayPage,
	publisher EventPublisher,
	currency string,
) *Service {
	return &Service{
		carts:    carts,
		pricing:  engine,
		coupons:  coupons,
		store:    store,
		orders:   orders,
		gateway:  gw,
		paypage:  paypage,
		events:   publisher,
		currency: currency,
		now:      time.Now,
	}
}

func (s *Service) validate(req *Request) error {
	if err := req.Shipping.Validate(); err != nil {
		return err
	}
	if len(req.Notes) > maxNotesLength {
		return domain.Invalid("notes", fmt.Sprintf("notes must be at most %d characters", maxNotesLength))
	}
	switch req.Provider {
	case "":
		req.Provider = domain.ProviderCard
	case domain.ProviderCard:
	case domain.ProviderPayPage:
		if s.paypage == nil {
			return domain.Invalid("provider", "pay page payments are not available")
		}
	default:
		return domain.Invalid("provider", "provider must be card or paypage")
	}
	return nil
}

// Checkout turns the user's cart into a created order and opens a payment session for it.
// Totals are always recomputed from the stored cart. The cart is left intact; it is cleared
// only when payment is confirmed.
func (s *Service) Checkout(ctx context.Context, userID string, req Request) (*Result, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	cart, err := s.carts.CurrentCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	lines := make([]domain.CartLine, len(cart.Items))
	copy(lines, cart.Items)
	pricing.RefreshLines(lines)
	summary := s.pricing.ComputeSummary(lines)

	var couponCode *string
	if req.CouponCode != "" {
		res, err := s.coupons.Validate(ctx, req.CouponCode, summary.Subtotal)
		if err != nil {
			return nil, err
		}
		summary = s.pricing.ComputeWithDiscount(lines, res.Discount)
		couponCode = &res.Coupon.Code
	}
	if summary.Total <= 0 {
		return nil, domain.Invalid("total", "order total must be greater than zero")
	}

	number, err := s.store.NextOrderNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate order number: %w", err)
	}

	now := s.now().UTC()
	order := &domain.Order{
		ID:              uuid.NewString(),
		OrderNumber:     number,
		UserID:          userID,
		Items:           toOrderItems(lines),
		Subtotal:        summary.Subtotal,
		Discount:        summary.Discount,
		Tax:             summary.Tax,
		Total:           summary.Total,
		Currency:        s.currency,
		ShippingInfo:    req.Shipping,
		Status:          domain.OrderStatusCreated,
		PaymentStatus:   domain.PaymentStatusPending,
		PaymentProvider: req.Provider,
		CouponCode:      couponCode,
		Notes:           req.Notes,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Create(ctx, order); err != nil {
		return nil, err
	}

	entry := logger.FromContext(ctx).WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total":        order.Total,
	})
	entry.Info("order created")
	if couponCode != nil {
		metrics.CouponRedemptions.WithLabelValues(*couponCode).Inc()
	}
	s.events.Publish(ctx, events.NewOrderEvent(events.OrderCreated, order, ""))

	return s.startPayment(ctx, order)
}

// RetryPayment opens a new payment session for an unpaid order using its stored total.
func (s *Service) RetryPayment(ctx context.Context, userID, orderID string) (*Result, error) {
	order, err := s.orders.GetMine(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusCreated || order.IsPaid() {
		return nil, fmt.Errorf("%w: order is %s, payment cannot be retried", domain.ErrIllegalTransition, order.Status)
	}
	return s.startPayment(ctx, order)
}

func (s *Service) startPayment(ctx context.Context, order *domain.Order) (*Result, error) {
	entry := logger.FromContext(ctx).WithField("order_id", order.ID)
	result := &Result{Order: order}

	var ref string
	switch order.PaymentProvider {
	case domain.ProviderPayPage:
		url, err := s.paypage.Initiate(ctx, order.ID, pricing.ToMinorUnits(order.Total), order.UserID, order.ShippingInfo.Phone)
		if err != nil {
			entry.WithError(err).Error("pay page session could not be opened")
			return result, &PaymentError{Order: order, Err: err}
		}
		ref = order.ID
		result.RedirectURL = url
	default:
		gw, err := s.gateway.CreateGatewayOrder(ctx, order.Total, order.ID, gateway.CustomerInfo{
			UserID: order.UserID,
			Name:   order.ShippingInfo.Name,
			Email:  order.ShippingInfo.Email,
			Phone:  order.ShippingInfo.Phone,
		})
		if err != nil {
			return result, &PaymentError{Order: order, Err: err}
		}
		ref = gw.GatewayOrderRef
		result.Gateway = gw
	}

	bound, err := s.orders.BindGatewayOrder(ctx, order.ID, order.PaymentProvider, ref)
	if err != nil {
		entry.WithError(err).WithField("gateway_order_ref", ref).Error("failed to record gateway order")
		return result, &PaymentError{Order: order, Err: err}
	}
	result.Order = bound
	return result, nil
}

// ValidateCoupon previews what code would take off the user's current cart.
func (s *Service) ValidateCoupon(ctx context.Context, userID, code string) (*CouponPreview, error) {
	cart, err := s.carts.CurrentCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	lines := make([]domain.CartLine, len(cart.Items))
	copy(lines, cart.Items)
	pricing.RefreshLines(lines)
	subtotal := s.pricing.ComputeSummary(lines).Subtotal

	res, err := s.coupons.Validate(ctx, code, subtotal)
	if err != nil {
		return nil, err
	}
	summary := s.pricing.ComputeWithDiscount(lines, res.Discount)
	return &CouponPreview{Code: res.Coupon.Code, Discount: summary.Discount, Summary: summary}, nil
}

func toOrderItems(lines []domain.CartLine) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, domain.OrderItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Variant:   l.Variant,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
	}
	return items
}
