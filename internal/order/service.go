package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/events"
	"github.com/fjod/go_cart/internal/gateway"
	"github.com/fjod/go_cart/internal/metrics"
	"github.com/fjod/go_cart/internal/pricing"
	"github.com/fjod/go_cart/pkg/logger"
	log "github.com/sirupsen/logrus"
)

const maxNoteLength = 1000

// Store persists orders. ApplyUpdate must only apply when the stored version equals version,
// returning domain.ErrConcurrencyConflict otherwise.
type Store interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetByNumber(ctx context.Context, number int64) (*domain.Order, error)
	GetByGatewayRef(ctx context.Context, gatewayOrderRef string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]domain.Order, int64, error)
	ApplyUpdate(ctx context.Context, id string, version int64, upd domain.OrderUpdate) (*domain.Order, error)
	Delete(ctx context.Context, id string) error
}

// PaymentGateway is the part of the gateway orchestrator order transitions depend on.
type PaymentGateway interface {
	VerifyCallback(ctx context.Context, gatewayOrderRef, gatewayPaymentRef, providedSignature string) bool
	Refund(ctx context.Context, gatewayPaymentRef, idempotencyKey string, amount *float64) (string, error)
}

type PayPageCallbacks interface {
	ParseCallback(xVerify, encodedResponse string) (*gateway.PayPageResult, error)
}

type CartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, evt events.Event)
}

type ListFilter struct {
	UserID string
	Status domain.OrderStatus
	Page   int
	Limit  int
}

type Page struct {
	Orders []domain.Order `json:"orders"`
	Total  int64          `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

// Callback is a card gateway completion callback.
type Callback struct {
	GatewayOrderRef   string `json:"gateway_order_ref"`
	GatewayPaymentRef string `json:"gateway_payment_ref"`
	Signature         string `json:"signature"`
}

type Service struct {
	store   Store
	gateway PaymentGateway
	paypage PayPageCallbacks
	carts   CartClearer
	events  EventPublisher
	now     func() time.Time
}

func NewService(store Store, gw PaymentGateway, paypage PayPageCallbacks, carts CartClearer, publisher EventPublisher) *Service {
	return &Service{
		store:   store,
		gateway: gw,
		paypage: paypage,
		carts:   carts,
		events:  publisher,
		now:     time.Now,
	}
}

// decideFunc inspects the current order and returns the update to apply.
// A nil update means the order is already where it should be.
type decideFunc func(o *domain.Order) (*domain.OrderUpdate, error)

// transition applies decide under the order's version check. A lost race reloads the
// order and decides again once before the conflict is returned.
func (s *Service) transition(ctx context.Context, id string, decide decideFunc) (before domain.OrderStatus, after *domain.Order, changed bool, err error) {
	for attempt := 0; ; attempt++ {
		current, err := s.store.GetByID(ctx, id)
		if err != nil {
			return "", nil, false, err
		}
		upd, err := decide(current)
		if err != nil {
			return current.Status, current, false, err
		}
		if upd == nil {
			return current.Status, current, false, nil
		}

		updated, err := s.store.ApplyUpdate(ctx, current.ID, current.Version, *upd)
		if errors.Is(err, domain.ErrConcurrencyConflict) && attempt == 0 {
			logger.FromContext(ctx).WithField("order_id", id).Warn("order changed concurrently, retrying transition")
			continue
		}
		if err != nil {
			return current.Status, nil, false, err
		}
		if updated.Status != current.Status {
			metrics.OrderTransitions.WithLabelValues(string(current.Status), string(updated.Status)).Inc()
		}
		return current.Status, updated, true, nil
	}
}

func illegal(from, to domain.OrderStatus) error {
	return fmt.Errorf("%w: cannot move order from %s to %s", domain.ErrIllegalTransition, from, to)
}

func statusPtr(s domain.OrderStatus) *domain.OrderStatus { return &s }

func paymentPtr(s domain.PaymentStatus) *domain.PaymentStatus { return &s }

func stringPtr(s string) *string { return &s }

// ConfirmPayment handles a card gateway callback. Only a verified callback can mark an order paid;
// a repeated callback for an already paid order succeeds without changing anything.
func (s *Service) ConfirmPayment(ctx context.Context, cb Callback) (*domain.Order, error) {
	if cb.GatewayOrderRef == "" || cb.GatewayPaymentRef == "" || cb.Signature == "" {
		return nil, domain.Invalid("callback", "gateway_order_ref, gateway_payment_ref and signature are required")
	}
	if !s.gateway.VerifyCallback(ctx, cb.GatewayOrderRef, cb.GatewayPaymentRef, cb.Signature) {
		return nil, domain.ErrSignatureMismatch
	}

	o, err := s.store.GetByGatewayRef(ctx, cb.GatewayOrderRef)
	if err != nil {
		return nil, err
	}
	return s.markPaid(ctx, o.ID, cb.GatewayOrderRef, cb.GatewayPaymentRef)
}

// ConfirmPayPage handles a verified pay-page callback: success pays, failure cancels, pending waits.
func (s *Service) ConfirmPayPage(ctx context.Context, xVerify, encodedResponse string) (*domain.Order, error) {
	if s.paypage == nil {
		return nil, fmt.Errorf("%w: pay page gateway is not configured", domain.ErrNotFound)
	}
	res, err := s.paypage.ParseCallback(xVerify, encodedResponse)
	if err != nil {
		if errors.Is(err, domain.ErrSignatureMismatch) {
			logger.FromContext(ctx).Warn("pay page callback signature mismatch")
		}
		return nil, err
	}

	o, err := s.store.GetByGatewayRef(ctx, res.MerchantTransactionID)
	if err != nil {
		return nil, err
	}

	switch res.Code {
	case gateway.PayPageSuccess:
		if res.Amount != 0 && res.Amount != pricing.ToMinorUnits(o.Total) {
			logger.FromContext(ctx).WithFields(log.Fields{
				"order_id": o.ID,
				"paid":     res.Amount,
				"expected": pricing.ToMinorUnits(o.Total),
			}).Error("pay page amount does not match order total")
			return nil, domain.Invalid("amount", "paid amount does not match order total")
		}
		return s.markPaid(ctx, o.ID, res.MerchantTransactionID, res.TransactionID)
	case gateway.PayPageError, gateway.PayPageDeclined:
		return s.failPayment(ctx, o.ID, res.Code)
	default:
		logger.FromContext(ctx).WithFields(log.Fields{"order_id": o.ID, "code": res.Code}).Info("pay page callback without final state")
		return o, nil
	}
}

func (s *Service) markPaid(ctx context.Context, id, gatewayOrderRef, paymentRef string) (*domain.Order, error) {
	entry := logger.FromContext(ctx).WithFields(log.Fields{
		"order_id":            id,
		"gateway_order_ref":   gatewayOrderRef,
		"gateway_payment_ref": paymentRef,
	})

	before, o, changed, err := s.transition(ctx, id, func(o *domain.Order) (*domain.OrderUpdate, error) {
		if o.GatewayOrderRef != gatewayOrderRef {
			return nil, domain.Invalid("gateway_order_ref", "does not match the order")
		}
		if o.IsPaid() {
			if o.GatewayPaymentRef != paymentRef {
				entry.WithField("stored_payment_ref", o.GatewayPaymentRef).Warn("paid order received a callback for a different payment")
			}
			return nil, nil
		}
		if !domain.CanTransitionTo(o.Status, domain.OrderStatusPaid, domain.TriggerGateway) {
			entry.WithField("status", o.Status).Error("verified payment for an order that cannot be paid")
			return nil, illegal(o.Status, domain.OrderStatusPaid)
		}
		return &domain.OrderUpdate{
			Status:            statusPtr(domain.OrderStatusPaid),
			PaymentStatus:     paymentPtr(domain.PaymentStatusPaid),
			GatewayPaymentRef: stringPtr(paymentRef),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		entry.Info("duplicate payment callback ignored")
		return o, nil
	}

	entry.Info("order paid")
	s.events.Publish(ctx, events.NewOrderEvent(events.OrderPaid, o, before))
	if err := s.carts.ClearCart(ctx, o.UserID); err != nil {
		entry.WithError(err).Warn("failed to clear cart after payment")
	}
	return o, nil
}

func (s *Service) failPayment(ctx context.Context, id, reason string) (*domain.Order, error) {
	before, o, changed, err := s.transition(ctx, id, func(o *domain.Order) (*domain.OrderUpdate, error) {
		if o.Status == domain.OrderStatusCancelled {
			return nil, nil
		}
		if !domain.CanTransitionTo(o.Status, domain.OrderStatusCancelled, domain.TriggerGateway) {
			return nil, illegal(o.Status, domain.OrderStatusCancelled)
		}
		return &domain.OrderUpdate{
			Status:        statusPtr(domain.OrderStatusCancelled),
			PaymentStatus: paymentPtr(domain.PaymentStatusFailed),
			AdminNote:     stringPtr("payment failed: " + reason),
		}, nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		logger.FromContext(ctx).WithFields(log.Fields{"order_id": id, "reason": reason}).Info("order cancelled after payment failure")
		s.events.Publish(ctx, events.NewOrderEvent(events.OrderCancelled, o, before))
	}
	return o, nil
}

// ReportPaymentFailure cancels the caller's unpaid order after the gateway reported a failed
// or abandoned payment.
func (s *Service) ReportPaymentFailure(ctx context.Context, userID, gatewayOrderRef, reason string) (*domain.Order, error) {
	if gatewayOrderRef == "" {
		return nil, domain.Invalid("gateway_order_ref", "gateway_order_ref is required")
	}
	o, err := s.store.GetByGatewayRef(ctx, gatewayOrderRef)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domain.ErrNotFound
	}
	if reason == "" {
		reason = "reported by customer"
	}
	return s.failPayment(ctx, o.ID, reason)
}

// BindGatewayOrder records the gateway session opened for an unpaid order.
func (s *Service) BindGatewayOrder(ctx context.Context, id, provider, gatewayOrderRef string) (*domain.Order, error) {
	_, o, _, err := s.transition(ctx, id, func(o *domain.Order) (*domain.OrderUpdate, error) {
		if o.Status != domain.OrderStatusCreated || o.IsPaid() {
			return nil, illegal(o.Status, domain.OrderStatusCreated)
		}
		if o.GatewayOrderRef == gatewayOrderRef && o.PaymentProvider == provider {
			return nil, nil
		}
		return &domain.OrderUpdate{
			GatewayOrderRef: stringPtr(gatewayOrderRef),
			PaymentProvider: stringPtr(provider),
			PaymentStatus:   paymentPtr(domain.PaymentStatusPending),
		}, nil
	})
	return o, err
}

// UpdateStatus is the admin status change. Refunds go through the gateway first.
func (s *Service) UpdateStatus(ctx context.Context, id string, to domain.OrderStatus) (*domain.Order, error) {
	if !to.Valid() {
		return nil, domain.Invalid("status", fmt.Sprintf("unknown status %q", to))
	}
	if to == domain.OrderStatusRefunded {
		return s.Refund(ctx, id, nil)
	}

	before, o, changed, err := s.transition(ctx, id, func(o *domain.Order) (*domain.OrderUpdate, error) {
		if o.PaymentStatus == domain.PaymentStatusRefundPending {
			return nil, fmt.Errorf("%w: refund in progress", domain.ErrConcurrencyConflict)
		}
		if o.Status == to {
			return nil, nil
		}
		if !domain.CanTransitionTo(o.Status, to, domain.TriggerAdmin) {
			return nil, illegal(o.Status, to)
		}
		return &domain.OrderUpdate{Status: statusPtr(to)}, nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		evt := events.OrderStatusChanged
		if to == domain.OrderStatusCancelled {
			evt = events.OrderCancelled
		}
		logger.FromContext(ctx).WithFields(log.Fields{"order_id": id, "from": before, "to": to}).Info("order status updated")
		s.events.Publish(ctx, events.NewOrderEvent(evt, o, before))
	}
	return o, nil
}

// CancelMine lets a customer cancel their own order while it is unpaid.
func (s *Service) CancelMine(ctx context.Context, userID, id string) (*domain.Order, error) {
	before, o, changed, err := s.transition(ctx, id, func(o *domain.Order) (*domain.OrderUpdate, error) {
		if o.UserID != userID {
			return nil, domain.ErrNotFound
		}
		if o.Status == domain.OrderStatusCancelled {
			return nil, nil
		}
		if !domain.CanTransitionTo(o.Status, domain.OrderStatusCancelled, domain.TriggerCustomer) {
			return nil, illegal(o.Status, domain.OrderStatusCancelled)
		}
		return &domain.OrderUpdate{Status: statusPtr(domain.OrderStatusCancelled)}, nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.events.Publish(ctx, events.NewOrderEvent(events.OrderCancelled, o, before))
	}
	return o, nil
}

// Refund refunds a captured payment, in full when amount is nil. The refund is first claimed
// under the order's version check so only one caller reaches the gateway. The order is only
// marked refunded after the gateway accepts the refund.
func (s *Service) Refund(ctx context.Context, id string, amount *float64) (*domain.Order, error) {
	var refunded float64
	_, claimed, changed, err := s.transition(ctx, id, func(o *domain.Order) (*domain.OrderUpdate, error) {
		if o.Status == domain.OrderStatusRefunded {
			return nil, nil
		}
		if o.PaymentStatus == domain.PaymentStatusRefundPending {
			return nil, fmt.Errorf("%w: refund already in progress", domain.ErrConcurrencyConflict)
		}
		if !domain.CanTransitionTo(o.Status, domain.OrderStatusRefunded, domain.TriggerRefund) {
			return nil, illegal(o.Status, domain.OrderStatusRefunded)
		}
		if o.GatewayPaymentRef == "" {
			return nil, fmt.Errorf("%w: order has no captured payment", domain.ErrIllegalTransition)
		}
		refunded = o.Total
		if amount != nil {
			if *amount <= 0 || pricing.ToMinorUnits(*amount) > pricing.ToMinorUnits(o.Total) {
				return nil, domain.Invalid("amount", "refund amount must be positive and not exceed the order total")
			}
			refunded = pricing.Round2(*amount)
		}
		return &domain.OrderUpdate{PaymentStatus: paymentPtr(domain.PaymentStatusRefundPending)}, nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		return claimed, nil
	}

	entry := logger.FromContext(ctx).WithFields(log.Fields{
		"order_id":            claimed.ID,
		"gateway_payment_ref": claimed.GatewayPaymentRef,
		"amount":              refunded,
	})
	refundRef, err := s.gateway.Refund(ctx, claimed.GatewayPaymentRef, claimed.ID, amount)
	if err != nil {
		entry.WithError(err).Error("refund rejected, order unchanged")
		s.releaseRefund(ctx, id)
		return nil, err
	}

	before, updated, _, err := s.transition(ctx, id, func(cur *domain.Order) (*domain.OrderUpdate, error) {
		if cur.PaymentStatus != domain.PaymentStatusRefundPending {
			return nil, fmt.Errorf("%w: refund claim lost", domain.ErrConcurrencyConflict)
		}
		return &domain.OrderUpdate{
			Status:         statusPtr(domain.OrderStatusRefunded),
			PaymentStatus:  paymentPtr(domain.PaymentStatusRefunded),
			RefundRef:      stringPtr(refundRef),
			RefundedAmount: &refunded,
		}, nil
	})
	if err != nil {
		entry.WithError(err).WithField("refund_ref", refundRef).Error("gateway accepted refund but order was not updated")
		return nil, err
	}
	entry.WithField("refund_ref", refundRef).Info("order refunded")
	s.events.Publish(ctx, events.NewOrderEvent(events.OrderRefunded, updated, before))
	return updated, nil
}

// releaseRefund hands a claimed refund back after the gateway refused it.
func (s *Service) releaseRefund(ctx context.Context, id string) {
	_, _, _, err := s.transition(ctx, id, func(o *domain.Order) (*domain.OrderUpdate, error) {
		if o.PaymentStatus != domain.PaymentStatusRefundPending {
			return nil, nil
		}
		return &domain.OrderUpdate{PaymentStatus: paymentPtr(domain.PaymentStatusPaid)}, nil
	})
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField("order_id", id).Error("failed to release refund claim")
	}
}

// AddNote appends an admin note. Notes are allowed in every status.
func (s *Service) AddNote(ctx context.Context, id, note string) (*domain.Order, error) {
	if note == "" || len(note) > maxNoteLength {
		return nil, domain.Invalid("note", fmt.Sprintf("note must be 1-%d characters", maxNoteLength))
	}
	_, o, _, err := s.transition(ctx, id, func(*domain.Order) (*domain.OrderUpdate, error) {
		return &domain.OrderUpdate{AdminNote: &note}, nil
	})
	return o, err
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	logger.FromContext(ctx).WithField("order_id", id).Warn("order deleted by admin")
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) GetByNumber(ctx context.Context, number int64) (*domain.Order, error) {
	if number <= 0 {
		return nil, domain.Invalid("order_number", "must be a positive integer")
	}
	return s.store.GetByNumber(ctx, number)
}

// GetMine hides other customers' orders behind NotFound.
func (s *Service) GetMine(ctx context.Context, userID, id string) (*domain.Order, error) {
	o, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

func (s *Service) List(ctx context.Context, filter ListFilter) (*Page, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.Invalid("status", fmt.Sprintf("unknown status %q", filter.Status))
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}
	orders, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return &Page{Orders: orders, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func (s *Service) ListMine(ctx context.Context, userID string, page, limit int) (*Page, error) {
	return s.List(ctx, ListFilter{UserID: userID, Page: page, Limit: limit})
}
