// Package pricing computes order totals from snapshot line prices and an
// optional coupon.
package pricing

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/omni-orders/internal/domain/coupon"
)

// MaxQuantity is the largest quantity a single line may carry.
const MaxQuantity = math.MaxInt32

var (
	// ErrInvalidLineItem is matched by every *LineItemError.
	ErrInvalidLineItem = errors.New("invalid line item")
	// ErrCouponInvalid is matched by every *CouponError.
	ErrCouponInvalid = errors.New("coupon cannot be applied")
)

// LineItem is a priced order line. UnitPrice is the price captured when the
// order was placed.
type LineItem struct {
	ProductID string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Result is the price breakdown of an order.
type Result struct {
	OriginSubtotal decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalPrice     decimal.Decimal
	AppliedCoupon  *coupon.Coupon
}

// LineItemError reports a line item with a non-positive quantity or a
// negative unit price.
type LineItemError struct {
	Index     int
	ProductID string
	Reason    string
}

func (e *LineItemError) Error() string {
	return fmt.Sprintf("line item %d (product %s): %s", e.Index, e.ProductID, e.Reason)
}

// Is reports whether target is ErrInvalidLineItem.
func (e *LineItemError) Is(target error) bool {
	return target == ErrInvalidLineItem
}

// CouponError reports a coupon code that could not be applied. Err is
// coupon.ErrNotFound or coupon.ErrNotEligible.
type CouponError struct {
	Code string
	Err  error
}

func (e *CouponError) Error() string {
	return fmt.Sprintf("coupon %q: %s", e.Code, e.Err)
}

func (e *CouponError) Unwrap() error { return e.Err }

// Is reports whether target is ErrCouponInvalid.
func (e *CouponError) Is(target error) bool {
	return target == ErrCouponInvalid
}

// CouponResolver returns the coupon for a code if it is eligible at now.
type CouponResolver interface {
	Resolve(ctx context.Context, code string, now time.Time) (*coupon.Coupon, error)
}
