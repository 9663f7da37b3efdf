package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/omni-orders/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders
		(order_number, origin_subtotal, discount_amount, total_price, coupon_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	createOrderItemSQL = `INSERT INTO order_items (order_number, product_id, quantity, price_at_purchase)
		VALUES ($1, $2, $3, $4)`

	getOrderSQL = `SELECT order_number, origin_subtotal, discount_amount, total_price,
		COALESCE(coupon_code, ''), created_at
		FROM orders WHERE order_number = $1`

	getOrderItemsSQL = `SELECT product_id, quantity, price_at_purchase
		FROM order_items WHERE order_number = $1 ORDER BY id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create stores the order row and its item rows. It runs in a nested
// transaction (a savepoint when ctx already carries one), so either all rows
// are written or none. Returns order.ErrAlreadyExists when the number is taken.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) (rerr error) {
	tx, err := conn(ctx, r.pool).Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if rerr != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var couponCode *string
	if o.CouponCode != "" {
		couponCode = &o.CouponCode
	}
	if _, err := tx.Exec(ctx, createOrderSQL,
		o.Number, o.OriginSubtotal, o.DiscountAmount, o.TotalPrice, couponCode, o.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return order.ErrAlreadyExists
		}
		return errors.Wrapf(err, "insert order %q", o.Number)
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(createOrderItemSQL, o.Number, item.ProductID, item.Quantity, item.PriceAtPurchase)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrapf(err, "insert items of order %q", o.Number)
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

// Get returns the order with its items. Returns order.ErrNotFound when no
// order has the given number.
func (r *OrderRepository) Get(ctx context.Context, number string) (*order.Order, error) {
	db := conn(ctx, r.pool)

	rows, err := db.Query(ctx, getOrderSQL, number)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", number)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", number)
	}

	rows, err = db.Query(ctx, getOrderItemsSQL, number)
	if err != nil {
		return nil, errors.Wrapf(err, "get items of order %q", number)
	}
	o.Items, err = pgx.CollectRows(rows, scanOrderItem)
	if err != nil {
		return nil, errors.Wrapf(err, "get items of order %q", number)
	}

	return &o, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(&o.Number, &o.OriginSubtotal, &o.DiscountAmount, &o.TotalPrice, &o.CouponCode, &o.CreatedAt)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var (
		item     order.Item
		quantity int32
	)
	err := row.Scan(&item.ProductID, &quantity, &item.PriceAtPurchase)
	item.Quantity = int(quantity)
	return item, err
}
