package coupon

import (
	"fmt"

	"github.com/fjod/go_cart/internal/domain"
)

// Reason distinguishes why a coupon was refused.
type Reason string

const (
	ReasonNotFound          Reason = "COUPON_NOT_FOUND"
	ReasonInactive          Reason = "COUPON_INACTIVE"
	ReasonNotYetValid       Reason = "COUPON_NOT_YET_VALID"
	ReasonExpired           Reason = "COUPON_EXPIRED"
	ReasonUsageLimitReached Reason = "COUPON_USAGE_LIMIT_REACHED"
)

var messages = map[Reason]string{
	ReasonNotFound:          "coupon not found",
	ReasonInactive:          "coupon is not active",
	ReasonNotYetValid:       "coupon is not valid yet",
	ReasonExpired:           "coupon has expired",
	ReasonUsageLimitReached: "coupon usage limit reached",
}

// Error is returned for every coupon refusal. Compare with errors.Is against the Err* values.
type Error struct {
	Reason Reason
	Code   string
}

var (
	ErrNotFound          = &Error{Reason: ReasonNotFound}
	ErrInactive          = &Error{Reason: ReasonInactive}
	ErrNotYetValid       = &Error{Reason: ReasonNotYetValid}
	ErrExpired           = &Error{Reason: ReasonExpired}
	ErrUsageLimitReached = &Error{Reason: ReasonUsageLimitReached}
)

func newError(reason Reason, code string) *Error {
	return &Error{Reason: reason, Code: code}
}

func (e *Error) Error() string {
	if e.Code == "" {
		return messages[e.Reason]
	}
	return fmt.Sprintf("%s: %s", messages[e.Reason], e.Code)
}

// Message is the user-facing text for the refusal.
func (e *Error) Message() string {
	return messages[e.Reason]
}

// Is matches on reason only, so errors.Is(err, ErrExpired) works for any code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

func (e *Error) Unwrap() error {
	if e.Reason == ReasonNotFound {
		return domain.ErrNotFound
	}
	return nil
}
