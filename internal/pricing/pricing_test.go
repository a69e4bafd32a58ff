package pricing

import (
	"testing"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/stretchr/testify/assert"
)

func lines(pairs ...any) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, domain.CartLine{Quantity: pairs[i].(int), UnitPrice: pairs[i+1].(float64)})
	}
	return out
}

func TestComputeSummary_RoundsEachLineBeforeSumming(t *testing.T) {
	e := NewEngine(0.18)

	s := e.ComputeSummary(lines(3, 333.333))

	assert.Equal(t, 999.99, s.Subtotal)
	assert.Equal(t, 3, s.ItemCount)
	assert.Equal(t, 180.0, s.Tax)
	assert.Equal(t, 1179.99, s.Total)
}

func TestComputeSummary_Deterministic(t *testing.T) {
	e := NewEngine(0.18)
	in := lines(2, 19.99, 1, 0.1, 7, 3.333)

	first := e.ComputeWithDiscount(in, 5)
	second := e.ComputeWithDiscount(in, 5)

	assert.Equal(t, first, second)
	assert.Equal(t, 10, first.ItemCount)
}

func TestComputeWithDiscount_ClampsToSubtotal(t *testing.T) {
	e := NewEngine(0)

	s := e.ComputeWithDiscount(lines(1, 100.0), 150)

	assert.Equal(t, 100.0, s.Subtotal)
	assert.Equal(t, 100.0, s.Discount)
	assert.Equal(t, 0.0, s.Tax)
	assert.Equal(t, 0.0, s.Total)
}

func TestComputeWithDiscount_TaxOnFullSubtotal(t *testing.T) {
	e := NewEngine(0.18)

	s := e.ComputeWithDiscount(lines(1, 100.0), 10)
	assert.Equal(t, 18.0, s.Tax)
	assert.Equal(t, 10.0, s.Discount)
	assert.Equal(t, 108.0, s.Total)

	s = e.ComputeWithDiscount(lines(1, 100.0), 150)
	assert.Equal(t, 100.0, s.Discount)
	assert.Equal(t, 18.0, s.Total)
}

func TestComputeWithDiscount_NegativeDiscountIgnored(t *testing.T) {
	e := NewEngine(0.1)

	s := e.ComputeWithDiscount(lines(1, 50.0), -10)

	assert.Equal(t, 0.0, s.Discount)
	assert.Equal(t, 55.0, s.Total)
}

func TestComputeSummary_Empty(t *testing.T) {
	s := NewEngine(0.18).ComputeSummary(nil)
	assert.Equal(t, domain.CartSummary{}, s)
}

func TestMinorUnits_ExactForTwoDecimals(t *testing.T) {
	cases := map[float64]int64{
		0.01:     1,
		0.1:      10,
		1.005:    101,
		19.99:    1999,
		1179.99:  117999,
		4.35:     435,
		99999.99: 9999999,
	}
	for amount, want := range cases {
		assert.Equal(t, want, ToMinorUnits(amount), "amount %v", amount)
	}
	assert.Equal(t, 1179.99, FromMinorUnits(117999))
}

func TestRefreshLines(t *testing.T) {
	in := lines(3, 333.333)
	RefreshLines(in)
	assert.Equal(t, 333.33, in[0].UnitPrice)
	assert.Equal(t, 999.99, in[0].LineTotal)
}
