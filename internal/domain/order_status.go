package domain

type OrderStatus string

const (
	OrderStatusCreated    OrderStatus = "created"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"

	// PaymentStatusRefundPending marks a refund claimed by one caller and not yet confirmed by the gateway.
	PaymentStatusRefundPending PaymentStatus = "refund_pending"
)

// Trigger identifies who is asking for a transition.
type Trigger string

const (
	TriggerGateway  Trigger = "gateway"  // verified payment callback
	TriggerAdmin    Trigger = "admin"    // authorized administrative action
	TriggerCustomer Trigger = "customer" // order owner
	TriggerRefund   Trigger = "refund"   // gateway accepted a refund
)

type transitionKey struct {
	from OrderStatus
	to   OrderStatus
}

var transitions = map[transitionKey][]Trigger{
	{OrderStatusCreated, OrderStatusPaid}:         {TriggerGateway},
	{OrderStatusCreated, OrderStatusCancelled}:    {TriggerAdmin, TriggerCustomer, TriggerGateway},
	{OrderStatusPaid, OrderStatusProcessing}:      {TriggerAdmin},
	{OrderStatusPaid, OrderStatusDelivered}:       {TriggerAdmin},
	{OrderStatusProcessing, OrderStatusPaid}:      {TriggerAdmin},
	{OrderStatusProcessing, OrderStatusDelivered}: {TriggerAdmin},
	{OrderStatusPaid, OrderStatusCancelled}:       {TriggerAdmin},
	{OrderStatusProcessing, OrderStatusCancelled}: {TriggerAdmin},
	{OrderStatusPaid, OrderStatusRefunded}:        {TriggerRefund},
	{OrderStatusProcessing, OrderStatusRefunded}:  {TriggerRefund},
	{OrderStatusDelivered, OrderStatusRefunded}:   {TriggerRefund},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusCreated, OrderStatusPaid, OrderStatusProcessing,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// IsTerminal reports statuses nothing leaves, except delivered which can still be refunded.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusRefunded
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether trigger may move an order from one status to another.
func CanTransitionTo(from, to OrderStatus, trigger Trigger) bool {
	for _, t := range transitions[transitionKey{from, to}] {
		if t == trigger {
			return true
		}
	}
	return false
}
