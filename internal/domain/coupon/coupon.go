// Package coupon resolves promotional codes into discount effects.
package coupon

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage off the subtotal.
	DiscountPercentage DiscountType = "percent"
	// DiscountFixed takes a fixed amount off the subtotal, never below zero.
	DiscountFixed DiscountType = "fixed"
)

// Rule is a known coupon code and the discount it grants.
type Rule struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
}

// Effect is the outcome of evaluating a code. The zero Effect has no rule
// and leaves any subtotal unchanged.
type Effect struct {
	Rule *Rule
}

// Recognized reports whether the evaluated code matched a known rule.
func (e Effect) Recognized() bool {
	return e.Rule != nil
}

// Apply returns the subtotal after the coupon. Unrecognized effects return
// the subtotal as is.
func (e Effect) Apply(subtotal decimal.Decimal) decimal.Decimal {
	if e.Rule == nil {
		return subtotal
	}
	return subtotal.Sub(discountFor(*e.Rule, subtotal))
}

// Discount returns the amount the coupon takes off the subtotal.
func (e Effect) Discount(subtotal decimal.Decimal) decimal.Decimal {
	if e.Rule == nil {
		return decimal.Zero
	}
	return discountFor(*e.Rule, subtotal)
}

// Registry is an immutable lookup of coupon rules keyed by normalized code.
type Registry struct {
	rules map[string]Rule
}

// NewRegistry builds a Registry from the given rules.
func NewRegistry(rules ...Rule) *Registry {
	r := &Registry{rules: make(map[string]Rule, len(rules))}
	for _, rule := range rules {
		rule.Code = normalize(rule.Code)
		r.rules[rule.Code] = rule
	}
	return r
}

// DefaultRegistry holds the store's standing promotions.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Rule{Code: "TENOFF", DiscountType: DiscountPercentage, Value: decimal.NewFromInt(10)},
		Rule{Code: "50OFF", DiscountType: DiscountFixed, Value: decimal.NewFromInt(50)},
	)
}

// Evaluate maps a code to its effect. Unknown or blank codes yield the zero
// Effect rather than an error.
func (r *Registry) Evaluate(code string) Effect {
	rule, ok := r.rules[normalize(code)]
	if !ok {
		return Effect{}
	}
	return Effect{Rule: &rule}
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
