package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/omni-orders/internal/domain/coupon"
)

// Engine prices orders. It holds no mutable state and is safe for concurrent
// use.
type Engine struct {
	coupons CouponResolver
}

// NewEngine creates an Engine that resolves coupon codes with the given
// resolver.
func NewEngine(coupons CouponResolver) *Engine {
	return &Engine{coupons: coupons}
}

// Price sums the line items, applies the coupon named by couponCode when it
// is non-empty, and returns the full breakdown. The total is subtotal minus
// discount and is not floored, so a fixed discount larger than the subtotal
// yields a negative total. No rounding is applied.
func (e *Engine) Price(ctx context.Context, items []LineItem, couponCode string, now time.Time) (*Result, error) {
	subtotal := decimal.Zero
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, &LineItemError{Index: i, ProductID: item.ProductID, Reason: "quantity must be greater than 0"}
		}
		if item.Quantity > MaxQuantity {
			return nil, &LineItemError{Index: i, ProductID: item.ProductID, Reason: fmt.Sprintf("quantity must not exceed %d", MaxQuantity)}
		}
		if item.UnitPrice.IsNegative() {
			return nil, &LineItemError{Index: i, ProductID: item.ProductID, Reason: "unit price must not be negative"}
		}
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	res := &Result{
		OriginSubtotal: subtotal,
		DiscountAmount: decimal.Zero,
		TotalPrice:     subtotal,
	}
	if couponCode == "" {
		return res, nil
	}

	c, err := e.coupons.Resolve(ctx, couponCode, now)
	if err != nil {
		if errors.Is(err, coupon.ErrNotFound) || errors.Is(err, coupon.ErrNotEligible) {
			return nil, &CouponError{Code: couponCode, Err: err}
		}
		return nil, errors.Wrap(err, "resolve coupon")
	}

	strategy, err := c.Strategy()
	if err != nil {
		return nil, errors.Wrapf(err, "coupon %q", c.Code)
	}

	res.DiscountAmount = strategy.Calculate(subtotal, c.Value)
	res.TotalPrice = subtotal.Sub(res.DiscountAmount)
	res.AppliedCoupon = c
	return res, nil
}
