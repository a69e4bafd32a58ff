package coupon

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/pricing"
	"github.com/shopspring/decimal"
)

// Store reads coupons by their normalized code.
type Store interface {
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
}

// Result is an accepted coupon and the discount it grants on the given subtotal.
type Result struct {
	Coupon   *domain.Coupon
	Discount float64
}

type Validator struct {
	store Store
	now   func() time.Time
}

func NewValidator(store Store, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{store: store, now: now}
}

// Validate decides eligibility of code for subtotal. It does not consume a use.
func (v *Validator) Validate(ctx context.Context, code string, subtotal float64) (*Result, error) {
	normalized := domain.NormalizeCouponCode(code)
	if normalized == "" {
		return nil, domain.Invalid("coupon_code", "coupon code is empty")
	}

	c, err := v.store.GetByCode(ctx, normalized)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, newError(ReasonNotFound, normalized)
	}
	if err != nil {
		return nil, err
	}

	if err := Check(c, v.now()); err != nil {
		return nil, err
	}
	return &Result{Coupon: c, Discount: Discount(c, subtotal)}, nil
}

// Check applies the eligibility rules in order: active, window start, window end, usage.
func Check(c *domain.Coupon, now time.Time) error {
	switch {
	case !c.Active:
		return newError(ReasonInactive, c.Code)
	case now.Before(c.ValidFrom):
		return newError(ReasonNotYetValid, c.Code)
	case now.After(c.ValidTo):
		return newError(ReasonExpired, c.Code)
	case c.UsageCount >= c.UsageLimit:
		return newError(ReasonUsageLimitReached, c.Code)
	}
	return nil
}

// Discount computes the amount c takes off subtotal, never more than subtotal.
func Discount(c *domain.Coupon, subtotal float64) float64 {
	if subtotal <= 0 {
		return 0
	}
	sub := decimal.NewFromFloat(subtotal)
	var d decimal.Decimal
	switch c.DiscountType {
	case domain.DiscountPercentage:
		d = sub.Mul(decimal.NewFromFloat(c.DiscountValue)).Div(decimal.NewFromInt(100))
	case domain.DiscountFixed:
		d = decimal.NewFromFloat(c.DiscountValue)
	default:
		return 0
	}
	if d.GreaterThan(sub) {
		d = sub
	}
	return pricing.Round2(d.InexactFloat64())
}
