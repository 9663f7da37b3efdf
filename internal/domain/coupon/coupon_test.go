package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoupon_Eligible(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		coupon Coupon
		want   bool
	}{
		{name: "active and in the future", coupon: Coupon{Active: true, ExpiresAt: now.Add(time.Hour)}, want: true},
		{name: "expires exactly now", coupon: Coupon{Active: true, ExpiresAt: now}, want: true},
		{name: "expired", coupon: Coupon{Active: true, ExpiresAt: now.Add(-time.Nanosecond)}, want: false},
		{name: "inactive", coupon: Coupon{Active: false, ExpiresAt: now.Add(time.Hour)}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.coupon.Eligible(now))
		})
	}
}

func TestCoupon_Validate(t *testing.T) {
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	valid := func() Coupon {
		return Coupon{
			Code:         "SAVE10",
			DiscountType: DiscountPercent,
			Value:        decimal.NewFromInt(10),
			ExpiresAt:    expires,
			Active:       true,
		}
	}

	tests := []struct {
		name      string
		mutate    func(c *Coupon)
		wantField string
	}{
		{name: "valid percent", mutate: func(*Coupon) {}},
		{name: "valid fixed above hundred", mutate: func(c *Coupon) {
			c.DiscountType = DiscountFixed
			c.Value = decimal.NewFromInt(500)
		}},
		{name: "missing code", mutate: func(c *Coupon) { c.Code = "" }, wantField: "code"},
		{name: "code too long", mutate: func(c *Coupon) {
			c.Code = "ABCDEFGHIJKLMNOPQRSTUVWXYZABCDEFGHIJKLMNOPQRSTUVWXYZ"
		}, wantField: "code"},
		{name: "negative value", mutate: func(c *Coupon) { c.Value = decimal.NewFromInt(-1) }, wantField: "value"},
		{name: "too many decimals", mutate: func(c *Coupon) {
			c.Value = decimal.RequireFromString("9.999")
		}, wantField: "value"},
		{name: "value too large", mutate: func(c *Coupon) {
			c.DiscountType = DiscountFixed
			c.Value = decimal.NewFromInt(100_000_000)
		}, wantField: "value"},
		{name: "missing expiration", mutate: func(c *Coupon) { c.ExpiresAt = time.Time{} }, wantField: "expiration_date"},
		{name: "unknown type", mutate: func(c *Coupon) { c.DiscountType = "bogo" }, wantField: "discount_type"},
		{name: "percent above hundred", mutate: func(c *Coupon) {
			c.Value = decimal.RequireFromString("100.01")
		}, wantField: "value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)

			err := c.Validate()
			if tt.wantField == "" {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, ErrInvalid)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}

func TestCoupon_Strategy(t *testing.T) {
	c := Coupon{DiscountType: DiscountFixed}
	s, err := c.Strategy()
	require.NoError(t, err)
	assert.Equal(t, FixedAmount{}, s)

	c.DiscountType = "mystery"
	_, err = c.Strategy()
	require.ErrorIs(t, err, ErrUnknownDiscountType)
}

func TestParseExpiration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{in: "2026-03-01T12:00:00+02:00", want: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{in: "2026-03-01T12:00:00.5Z", want: time.Date(2026, 3, 1, 12, 0, 0, 500_000_000, time.UTC)},
		{in: "2026-03-01", want: time.Date(2026, 3, 1, 23, 59, 59, 999_999_999, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseExpiration(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, in := range []string{"03/01/2026", "tomorrow", ""} {
		_, err := ParseExpiration(in)
		require.ErrorIs(t, err, ErrInvalid, in)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "expiration_date", vErr.Field)
	}
}
