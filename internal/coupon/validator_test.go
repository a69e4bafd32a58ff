package coupon

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// memStore is an in-memory Store with an atomic conditional redeem, the same contract the
// order repository enforces inside its transaction.
type memStore struct {
	mu      sync.Mutex
	coupons map[string]*domain.Coupon
	err     error
}

func (m *memStore) GetByCode(_ context.Context, code string) (*domain.Coupon, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) redeem(code string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.coupons[code]
	if err := Check(c, at); err != nil {
		return err
	}
	c.UsageCount++
	return nil
}

func validCoupon(code string) *domain.Coupon {
	return &domain.Coupon{
		Code:          code,
		DiscountType:  domain.DiscountPercentage,
		DiscountValue: 10,
		ValidFrom:     now.Add(-24 * time.Hour),
		ValidTo:       now.Add(24 * time.Hour),
		UsageLimit:    5,
		Active:        true,
	}
}

func newTestValidator(coupons ...*domain.Coupon) (*Validator, *memStore) {
	store := &memStore{coupons: map[string]*domain.Coupon{}}
	for _, c := range coupons {
		store.coupons[c.Code] = c
	}
	return NewValidator(store, func() time.Time { return now }), store
}

func TestValidate_Accepted(t *testing.T) {
	v, _ := newTestValidator(validCoupon("SAVE10"))

	res, err := v.Validate(context.Background(), "  save10 ", 250)

	require.NoError(t, err)
	assert.Equal(t, 25.0, res.Discount)
	assert.Equal(t, "SAVE10", res.Coupon.Code)
}

func TestValidate_EdgeCasesInOrder(t *testing.T) {
	inactive := validCoupon("OFF")
	inactive.Active = false
	inactive.UsageCount = 5 // also exhausted, inactive wins

	early := validCoupon("EARLY")
	early.ValidFrom = now.Add(time.Hour)
	early.ValidTo = now.Add(2 * time.Hour)

	late := validCoupon("LATE")
	late.ValidTo = now.Add(-time.Minute)
	late.UsageCount = 5

	used := validCoupon("USED")
	used.UsageCount = 5

	v, _ := newTestValidator(inactive, early, late, used)

	tests := []struct {
		code string
		want error
	}{
		{"MISSING", ErrNotFound},
		{"OFF", ErrInactive},
		{"EARLY", ErrNotYetValid},
		{"LATE", ErrExpired},
		{"USED", ErrUsageLimitReached},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			_, err := v.Validate(context.Background(), tt.code, 100)
			assert.ErrorIs(t, err, tt.want)
			var cerr *Error
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.code, cerr.Code)
		})
	}
}

func TestValidate_NotFoundIsDomainNotFound(t *testing.T) {
	v, _ := newTestValidator()
	_, err := v.Validate(context.Background(), "nope", 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestValidate_EmptyCode(t *testing.T) {
	v, _ := newTestValidator()
	_, err := v.Validate(context.Background(), "   ", 10)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestValidate_StoreError(t *testing.T) {
	v, store := newTestValidator()
	store.err = errors.New("connection reset")
	_, err := v.Validate(context.Background(), "X", 10)
	assert.EqualError(t, err, "connection reset")
}

func TestDiscount(t *testing.T) {
	fixed := &domain.Coupon{DiscountType: domain.DiscountFixed, DiscountValue: 150}
	assert.Equal(t, 100.0, Discount(fixed, 100))
	assert.Equal(t, 150.0, Discount(fixed, 200))

	pct := &domain.Coupon{DiscountType: domain.DiscountPercentage, DiscountValue: 15}
	assert.Equal(t, 15.0, Discount(pct, 100))
	assert.Equal(t, 1.5, Discount(pct, 10))
	assert.Equal(t, 0.0, Discount(pct, 0))
}

func TestRedeem_SingleUseUnderConcurrency(t *testing.T) {
	single := validCoupon("ONCE")
	single.UsageLimit = 1
	v, store := newTestValidator(single)

	const workers = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		limited  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := v.Validate(context.Background(), "ONCE", 100); err != nil && !errors.Is(err, ErrUsageLimitReached) {
				t.Errorf("unexpected error: %v", err)
				return
			}
			err := store.redeem("ONCE", now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ErrUsageLimitReached):
				limited++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, workers-1, limited)
	assert.Equal(t, int64(1), store.coupons["ONCE"].UsageCount)
}
