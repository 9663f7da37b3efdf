package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/omni-orders/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, discount_type, value, expires_at, active, created_at
		FROM coupons WHERE code = $1`

	createCouponSQL = `INSERT INTO coupons (code, discount_type, value, expires_at, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its exact code regardless of its
// eligibility. Returns coupon.ErrNotFound when no coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}
	return &c, nil
}

// Create stores a new coupon. Returns coupon.ErrAlreadyExists when the code
// is taken.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := conn(ctx, r.pool).Exec(ctx, createCouponSQL,
		c.Code, string(c.DiscountType), c.Value, c.ExpiresAt, c.Active, c.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrAlreadyExists
		}
		return errors.Wrapf(err, "create coupon %q", c.Code)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
	)
	err := row.Scan(&c.Code, &discountType, &c.Value, &c.ExpiresAt, &c.Active, &c.CreatedAt)
	c.DiscountType = coupon.DiscountType(discountType)
	return c, err
}
