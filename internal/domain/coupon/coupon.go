package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType is the tag selecting how a coupon's value is applied.
type DiscountType string

const (
	// DiscountFixed subtracts the coupon value as a flat amount.
	DiscountFixed DiscountType = "fixed"
	// DiscountPercent subtracts the coupon value as a percentage of the subtotal.
	DiscountPercent DiscountType = "percent"
)

// MaxCodeLength matches the width of the coupons.code column.
const MaxCodeLength = 50

var (
	// ErrNotFound is returned when no coupon exists for a code.
	ErrNotFound = errors.New("coupon not found")
	// ErrNotEligible is returned when a coupon is inactive or expired at the
	// moment of use.
	ErrNotEligible = errors.New("coupon not eligible")
	// ErrUnknownDiscountType is returned when a discount type tag matches no
	// known strategy.
	ErrUnknownDiscountType = errors.New("unknown discount type")
	// ErrAlreadyExists is returned when creating a coupon whose code is taken.
	ErrAlreadyExists = errors.New("coupon already exists")
	// ErrInvalid is matched by every *ValidationError.
	ErrInvalid = errors.New("invalid coupon")
)

var (
	hundred  = decimal.NewFromInt(100)
	maxValue = decimal.NewFromInt(100_000_000)
)

// ParseExpiration reads an expiration date given either as an RFC 3339
// timestamp or as a bare YYYY-MM-DD date. A bare date expires at the end of
// that day in UTC.
func ParseExpiration(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "expiration_date", Reason: fmt.Sprintf("%q is neither RFC 3339 nor YYYY-MM-DD", s)}
	}
	return t.Add(24*time.Hour - time.Nanosecond), nil
}

// ValidationError describes why a coupon definition was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid coupon %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrInvalid.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// Coupon is a discount that can be applied to an order while it is active
// and not expired.
type Coupon struct {
	Code         string
	DiscountType DiscountType
	Value        decimal.Decimal
	ExpiresAt    time.Time
	Active       bool
	CreatedAt    time.Time
}

// Eligible reports whether the coupon may be applied at now. The expiration
// instant itself is still eligible.
func (c *Coupon) Eligible(now time.Time) bool {
	return c.Active && !now.After(c.ExpiresAt)
}

// Strategy returns the discount strategy selected by the coupon's type.
func (c *Coupon) Strategy() (Strategy, error) {
	return StrategyFor(c.DiscountType)
}

// Validate checks a coupon definition before it is stored.
func (c *Coupon) Validate() error {
	switch {
	case c.Code == "":
		return &ValidationError{Field: "code", Reason: "required"}
	case len(c.Code) > MaxCodeLength:
		return &ValidationError{Field: "code", Reason: fmt.Sprintf("longer than %d characters", MaxCodeLength)}
	case c.Value.IsNegative():
		return &ValidationError{Field: "value", Reason: "must not be negative"}
	case !c.Value.Equal(c.Value.Truncate(2)):
		return &ValidationError{Field: "value", Reason: "at most 2 decimal places"}
	case c.Value.GreaterThanOrEqual(maxValue):
		return &ValidationError{Field: "value", Reason: "must be less than 100000000"}
	case c.ExpiresAt.IsZero():
		return &ValidationError{Field: "expiration_date", Reason: "required"}
	}
	if _, err := StrategyFor(c.DiscountType); err != nil {
		return &ValidationError{Field: "discount_type", Reason: fmt.Sprintf("%q is not one of fixed, percent", c.DiscountType)}
	}
	if c.DiscountType == DiscountPercent && c.Value.GreaterThan(hundred) {
		return &ValidationError{Field: "value", Reason: "percentage must not exceed 100"}
	}
	return nil
}

// Finder looks coupons up by code.
type Finder interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
}

// Repository provides lookup and creation of coupons.
type Repository interface {
	Finder
	Create(ctx context.Context, c *Coupon) error
}
