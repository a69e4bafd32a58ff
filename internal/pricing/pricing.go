package pricing

import (
	"github.com/fjod/go_cart/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultTaxRate applies when no rate is configured.
const DefaultTaxRate = 0.18

var hundred = decimal.NewFromInt(100)

// Engine derives cart summaries. It holds only the configured tax rate.
type Engine struct {
	taxRate decimal.Decimal
}

func NewEngine(taxRate float64) *Engine {
	return &Engine{taxRate: decimal.NewFromFloat(taxRate)}
}

// Round2 rounds half away from zero to cents.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// LineTotal is quantity times the unit price normalized to cents, so each line is exact in cents before summation.
func LineTotal(quantity int, unitPrice float64) float64 {
	return lineTotal(quantity, unitPrice).InexactFloat64()
}

func lineTotal(quantity int, unitPrice float64) decimal.Decimal {
	return decimal.NewFromFloat(unitPrice).Round(2).Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// ComputeSummary derives the summary from lines with no discount.
func (e *Engine) ComputeSummary(lines []domain.CartLine) domain.CartSummary {
	return e.ComputeWithDiscount(lines, 0)
}

// ComputeWithDiscount derives the summary with a requested discount amount.
// Tax is charged on the full subtotal. The discount is clamped to [0, subtotal], so the
// total can never go negative.
func (e *Engine) ComputeWithDiscount(lines []domain.CartLine, discount float64) domain.CartSummary {
	subtotal := decimal.Zero
	count := 0
	for _, l := range lines {
		subtotal = subtotal.Add(lineTotal(l.Quantity, l.UnitPrice))
		count += l.Quantity
	}

	d := decimal.NewFromFloat(discount).Round(2)
	if d.IsNegative() {
		d = decimal.Zero
	}
	if d.GreaterThan(subtotal) {
		d = subtotal
	}

	tax := subtotal.Mul(e.taxRate).Round(2)
	total := subtotal.Add(tax).Sub(d).Round(2)

	return domain.CartSummary{
		Subtotal:  subtotal.InexactFloat64(),
		Tax:       tax.InexactFloat64(),
		Discount:  d.InexactFloat64(),
		Total:     total.InexactFloat64(),
		ItemCount: count,
	}
}

// RefreshLines recomputes each line total from its quantity and unit price.
func RefreshLines(lines []domain.CartLine) {
	for i := range lines {
		lines[i].UnitPrice = Round2(lines[i].UnitPrice)
		lines[i].LineTotal = LineTotal(lines[i].Quantity, lines[i].UnitPrice)
	}
}

// ToMinorUnits converts a 2-decimal amount to the gateway's minor unit (cents/paise).
func ToMinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(minor int64) float64 {
	return decimal.New(minor, -2).InexactFloat64()
}
