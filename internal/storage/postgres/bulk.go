package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/omni-orders/internal/domain/coupon"
	"github.com/xenking/omni-orders/internal/domain/product"
)

const (
	upsertProductSQL = `INSERT INTO products (id, name, price, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price`

	upsertCouponSQL = `INSERT INTO coupons (code, discount_type, value, expires_at, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO UPDATE SET discount_type = EXCLUDED.discount_type, value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at, active = EXCLUDED.active`

	insertCouponIgnoreSQL = createCouponSQL + ` ON CONFLICT (code) DO NOTHING`

	countCouponsSQL   = `SELECT count(*) FROM coupons`
	allCouponCodesSQL = `SELECT code FROM coupons`
	existingCodesSQL  = `SELECT code FROM coupons WHERE code = ANY($1)`
)

// Upsert stores p, replacing the name and price of an existing product with
// the same ID. Used for seeding only; products are otherwise immutable.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, upsertProductSQL, p.ID, p.Name, p.Price, p.CreatedAt); err != nil {
		return errors.Wrapf(err, "upsert product %q", p.ID)
	}
	return nil
}

// Upsert stores c, replacing an existing coupon with the same code.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	_, err := conn(ctx, r.pool).Exec(ctx, upsertCouponSQL,
		c.Code, string(c.DiscountType), c.Value, c.ExpiresAt, c.Active, c.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert coupon %q", c.Code)
	}
	return nil
}

// Count returns the number of stored coupons.
func (r *CouponRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := conn(ctx, r.pool).QueryRow(ctx, countCouponsSQL).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count coupons")
	}
	return n, nil
}

// EachCode calls fn for every stored coupon code without loading them all
// into memory.
func (r *CouponRepository) EachCode(ctx context.Context, fn func(code string)) error {
	rows, err := conn(ctx, r.pool).Query(ctx, allCouponCodesSQL)
	if err != nil {
		return errors.Wrap(err, "query coupon codes")
	}
	var code string
	_, err = pgx.ForEachRow(rows, []any{&code}, func() error {
		fn(code)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "scan coupon codes")
	}
	return nil
}

// ExistingCodes returns the subset of codes that are already stored.
func (r *CouponRepository) ExistingCodes(ctx context.Context, codes []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	if len(codes) == 0 {
		return out, nil
	}
	rows, err := conn(ctx, r.pool).Query(ctx, existingCodesSQL, codes)
	if err != nil {
		return nil, errors.Wrap(err, "query existing codes")
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "scan existing codes")
	}
	for _, c := range found {
		out[c] = struct{}{}
	}
	return out, nil
}

// InsertBatch inserts coupons in one round trip, skipping codes that already
// exist, and returns how many rows were inserted.
func (r *CouponRepository) InsertBatch(ctx context.Context, coupons []coupon.Coupon) (int64, error) {
	if len(coupons) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for i := range coupons {
		c := &coupons[i]
		batch.Queue(insertCouponIgnoreSQL,
			c.Code, string(c.DiscountType), c.Value, c.ExpiresAt, c.Active, c.CreatedAt,
		)
	}

	br := conn(ctx, r.pool).SendBatch(ctx, batch)
	var inserted int64
	for range coupons {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return inserted, errors.Wrap(err, "insert coupon batch")
		}
		inserted += tag.RowsAffected()
	}
	if err := br.Close(); err != nil {
		return inserted, errors.Wrap(err, "close coupon batch")
	}
	return inserted, nil
}
