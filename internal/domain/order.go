package domain

import "time"

const (
	ProviderCard    = "card"
	ProviderPayPage = "paypage"
)

type OrderItem struct {
	ProductID string  `bson:"product_id" json:"product_id"`
	Name      string  `bson:"name" json:"name"`
	Variant   string  `bson:"variant" json:"variant"`
	Quantity  int     `bson:"quantity" json:"quantity"`
	UnitPrice float64 `bson:"unit_price" json:"unit_price"`
}

type ShippingInfo struct {
	Name    string `bson:"name" json:"name"`
	Email   string `bson:"email" json:"email"`
	Phone   string `bson:"phone" json:"phone"`
	Address string `bson:"address" json:"address"`
}

// Validate rejects contact snapshots the gateway and receipts cannot use.
func (s ShippingInfo) Validate() error {
	if s.Name == "" {
		return Invalid("shipping.name", "name is required")
	}
	if s.Email == "" || !containsAt(s.Email) {
		return Invalid("shipping.email", "a valid email is required")
	}
	if s.Phone == "" {
		return Invalid("shipping.phone", "phone is required")
	}
	return nil
}

func containsAt(s string) bool {
	for i := 1; i < len(s)-1; i++ {
		if s[i] == '@' {
			return true
		}
	}
	return false
}

type Order struct {
	ID                string        `bson:"_id" json:"id"`
	OrderNumber       int64         `bson:"order_number" json:"order_number"`
	UserID            string        `bson:"user_id" json:"user_id"`
	Items             []OrderItem   `bson:"items" json:"items"`
	Subtotal          float64       `bson:"subtotal" json:"subtotal"`
	Discount          float64       `bson:"discount" json:"discount"`
	Shipping          float64       `bson:"shipping" json:"shipping"`
	Tax               float64       `bson:"tax" json:"tax"`
	Total             float64       `bson:"total" json:"total"`
	Currency          string        `bson:"currency" json:"currency"`
	ShippingInfo      ShippingInfo  `bson:"shipping_info" json:"shipping_info"`
	Status            OrderStatus   `bson:"status" json:"status"`
	PaymentStatus     PaymentStatus `bson:"payment_status" json:"payment_status"`
	PaymentProvider   string        `bson:"payment_provider" json:"payment_provider"`
	GatewayOrderRef   string        `bson:"gateway_order_ref,omitempty" json:"gateway_order_ref,omitempty"`
	GatewayPaymentRef string        `bson:"gateway_payment_ref,omitempty" json:"gateway_payment_ref,omitempty"`
	RefundRef         string        `bson:"refund_ref,omitempty" json:"refund_ref,omitempty"`
	RefundedAmount    float64       `bson:"refunded_amount,omitempty" json:"refunded_amount,omitempty"`
	CouponCode        *string       `bson:"coupon_code" json:"coupon_code"`
	Notes             string        `bson:"notes" json:"notes"`
	AdminNotes        []string      `bson:"admin_notes,omitempty" json:"admin_notes,omitempty"`
	Version           int64         `bson:"version" json:"version"`
	CreatedAt         time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `bson:"updated_at" json:"updated_at"`
}

// IsPaid reports whether monetary fields and items are frozen.
func (o *Order) IsPaid() bool {
	switch o.PaymentStatus {
	case PaymentStatusPaid, PaymentStatusRefundPending, PaymentStatusRefunded:
		return true
	}
	return false
}

// OrderUpdate is the set of mutable fields a transition may change. Nil means unchanged.
// Monetary fields and items cannot be updated.
type OrderUpdate struct {
	Status            *OrderStatus
	PaymentStatus     *PaymentStatus
	PaymentProvider   *string
	GatewayOrderRef   *string
	GatewayPaymentRef *string
	RefundRef         *string
	RefundedAmount    *float64
	AdminNote         *string
}

// Apply mutates o in memory the same way the store applies u.
func (u OrderUpdate) Apply(o *Order, now time.Time) {
	if u.Status != nil {
		o.Status = *u.Status
	}
	if u.PaymentStatus != nil {
		o.PaymentStatus = *u.PaymentStatus
	}
	if u.PaymentProvider != nil {
		o.PaymentProvider = *u.PaymentProvider
	}
	if u.GatewayOrderRef != nil {
		o.GatewayOrderRef = *u.GatewayOrderRef
	}
	if u.GatewayPaymentRef != nil {
		o.GatewayPaymentRef = *u.GatewayPaymentRef
	}
	if u.RefundRef != nil {
		o.RefundRef = *u.RefundRef
	}
	if u.RefundedAmount != nil {
		o.RefundedAmount = *u.RefundedAmount
	}
	if u.AdminNote != nil {
		o.AdminNotes = append(o.AdminNotes, *u.AdminNote)
	}
	o.Version++
	o.UpdatedAt = now
}
