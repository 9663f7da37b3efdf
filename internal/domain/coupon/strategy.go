package coupon

import (
	"github.com/shopspring/decimal"
)

// Strategy computes a discount amount from a base amount and a coupon value.
// The set of implementations is closed: FixedAmount and Percentage.
type Strategy interface {
	Calculate(base, value decimal.Decimal) decimal.Decimal
	Type() DiscountType

	strategy()
}

// FixedAmount discounts exactly the coupon value, even when it exceeds the base.
type FixedAmount struct{}

// Calculate returns value unchanged.
func (FixedAmount) Calculate(_, value decimal.Decimal) decimal.Decimal {
	return value
}

// Type returns DiscountFixed.
func (FixedAmount) Type() DiscountType { return DiscountFixed }

func (FixedAmount) strategy() {}

// Percentage discounts value percent of the base. Values above 100 are not
// rejected here.
type Percentage struct{}

// Calculate returns base * value / 100 with exact decimal arithmetic.
func (Percentage) Calculate(base, value decimal.Decimal) decimal.Decimal {
	return base.Mul(value).Div(hundred)
}

// Type returns DiscountPercent.
func (Percentage) Type() DiscountType { return DiscountPercent }

func (Percentage) strategy() {}

// StrategyFor maps a discount type tag to its strategy.
func StrategyFor(t DiscountType) (Strategy, error) {
	switch t {
	case DiscountFixed:
		return FixedAmount{}, nil
	case DiscountPercent:
		return Percentage{}, nil
	default:
		return nil, ErrUnknownDiscountType
	}
}
