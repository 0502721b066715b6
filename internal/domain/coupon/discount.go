package coupon

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// discountFor calculates the amount a rule takes off subtotal. The result is
// never negative and never exceeds the subtotal.
func discountFor(rule Rule, subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch rule.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(rule.Value).Div(hundred)
	case DiscountFixed:
		amount = decimal.Min(rule.Value, subtotal)
	default:
		return decimal.Zero
	}
	return floorAtZero(amount)
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
