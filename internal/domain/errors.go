package domain

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrIllegalTransition   = errors.New("illegal transition of order status")
	ErrConcurrencyConflict = errors.New("concurrent modification, retry")
	ErrSignatureMismatch   = errors.New("signature mismatch")
	ErrGateway             = errors.New("payment gateway error")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrForbidden           = errors.New("forbidden")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid is shorthand for a field-level validation error.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
