package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/pkg/circuitbreaker"
)

// Kind classifies a gateway failure.
type Kind string

const (
	KindNetwork     Kind = "network"
	KindTimeout     Kind = "timeout"
	KindRejected    Kind = "rejected"    // gateway answered 4xx
	KindUnavailable Kind = "unavailable" // 5xx or open circuit
	KindDecode      Kind = "decode"
)

// Error is returned by every gateway call. It matches domain.ErrGateway.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway %s: %s (status %d): %v", e.Op, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("gateway %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{domain.ErrGateway, e.Err}
}

// IsTimeout reports whether err is a gateway timeout. The payment outcome is unknown in that case.
func IsTimeout(err error) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.Kind == KindTimeout
}

func transportError(op string, err error) *Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	case errors.Is(err, circuitbreaker.ErrOpen):
		return &Error{Kind: KindUnavailable, Op: op, Err: err}
	default:
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}
}

func statusError(op string, status int, body string) *Error {
	kind := KindRejected
	if status >= 500 {
		kind = KindUnavailable
	}
	return &Error{Kind: kind, Op: op, Status: status, Err: errors.New(truncate(body, 200))}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
