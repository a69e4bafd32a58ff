package circuitbreaker

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

// ErrOpen is returned instead of gobreaker's open/too-many-requests errors.
var ErrOpen = errors.New("circuit breaker is open")

// Settings tunes a Breaker. Zero values fall back to the defaults below.
type Settings struct {
	MaxRequests  uint32        // requests allowed in half-open state
	Interval     time.Duration // window to track failures
	Timeout      time.Duration // time to wait before half-open
	MinRequests  uint32
	FailureRatio float64
	// IsSuccessful reports errors that must not count as failures (e.g. a 4xx rejection).
	IsSuccessful func(err error) bool
	// OnStateChange receives 0=closed, 1=open, 2=half-open.
	OnStateChange func(name string, state int)
}

// Breaker wraps gobreaker with logging and a state observer.
type Breaker[T any] struct {
	cb   *gobreaker.CircuitBreaker[T]
	name string
}

// New creates a breaker named name.
func New[T any](name string, s Settings) *Breaker[T] {
	if s.MaxRequests == 0 {
		s.MaxRequests = 3
	}
	if s.Interval == 0 {
		s.Interval = 15 * time.Second
	}
	if s.Timeout == 0 {
		s.Timeout = 30 * time.Second
	}
	if s.MinRequests == 0 {
		s.MinRequests = 3
	}
	if s.FailureRatio == 0 {
		s.FailureRatio = 0.6
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= s.MinRequests && failureRatio >= s.FailureRatio
		},
		IsSuccessful: s.IsSuccessful,
		OnStateChange: func(cbName string, from gobreaker.State, to gobreaker.State) {
			if s.OnStateChange != nil {
				s.OnStateChange(cbName, stateValue(to))
			}
			log.WithFields(log.Fields{
				"circuit": cbName,
				"from":    from.String(),
				"to":      to.String(),
			}).Info("Circuit breaker state changed")
		},
	}
	if s.OnStateChange != nil {
		s.OnStateChange(name, 0)
	}

	return &Breaker[T]{
		cb:   gobreaker.NewCircuitBreaker[T](settings),
		name: name,
	}
}

// Execute runs fn through the breaker. Open-state rejections are reported as ErrOpen.
func (b *Breaker[T]) Execute(fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return result, fmt.Errorf("%s: %w", b.name, ErrOpen)
	}
	return result, err
}

// State returns the current state name.
func (b *Breaker[T]) State() string {
	return b.cb.State().String()
}

func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
