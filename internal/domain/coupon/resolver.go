package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Resolver turns a coupon code into a coupon that is eligible at a given
// instant.
type Resolver struct {
	coupons Finder
}

// NewResolver creates a Resolver backed by the given Finder.
func NewResolver(coupons Finder) *Resolver {
	return &Resolver{coupons: coupons}
}

// Resolve loads the coupon for code exactly once and checks its eligibility
// at now. It fails with ErrNotFound or ErrNotEligible.
func (r *Resolver) Resolve(ctx context.Context, code string, now time.Time) (*Coupon, error) {
	c, err := r.coupons.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if !c.Eligible(now) {
		return nil, ErrNotEligible
	}

	return c, nil
}
