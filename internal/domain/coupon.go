package domain

import (
	"strings"
	"time"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Coupon struct {
	ID            string       `bson:"_id,omitempty" json:"id"`
	Code          string       `bson:"code" json:"code"`
	DiscountType  DiscountType `bson:"discount_type" json:"discount_type"`
	DiscountValue float64      `bson:"discount_value" json:"discount_value"`
	ValidFrom     time.Time    `bson:"valid_from" json:"valid_from"`
	ValidTo       time.Time    `bson:"valid_to" json:"valid_to"`
	UsageLimit    int64        `bson:"usage_limit" json:"usage_limit"`
	UsageCount    int64        `bson:"usage_count" json:"usage_count"`
	Active        bool         `bson:"active" json:"active"`
	CreatedAt     time.Time    `bson:"created_at" json:"created_at"`
}

// NormalizeCouponCode is the canonical form codes are stored and looked up in.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks an admin-supplied coupon before it is stored.
func (c *Coupon) Validate() error {
	if NormalizeCouponCode(c.Code) == "" {
		return Invalid("code", "code is required")
	}
	switch c.DiscountType {
	case DiscountPercentage:
		if c.DiscountValue <= 0 || c.DiscountValue > 100 {
			return Invalid("discount_value", "percentage must be in (0, 100]")
		}
	case DiscountFixed:
		if c.DiscountValue <= 0 {
			return Invalid("discount_value", "fixed discount must be positive")
		}
	default:
		return Invalid("discount_type", "must be percentage or fixed")
	}
	if !c.ValidTo.After(c.ValidFrom) {
		return Invalid("valid_to", "must be after valid_from")
	}
	if c.UsageLimit < 1 {
		return Invalid("usage_limit", "must be at least 1")
	}
	return nil
}
