package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/omni-orders/internal/domain/product"
)

const (
	selectProductsSQL = `SELECT id, name, price, created_at FROM products`

	getProductsByIDsSQL = selectProductsSQL + ` WHERE id = ANY($1)`

	createProductSQL = `INSERT INTO products (id, name, price, created_at) VALUES ($1, $2, $3, $4)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create stores a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := conn(ctx, r.pool).Exec(ctx, createProductSQL, p.ID, p.Name, p.Price, p.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "create product %q", p.ID)
	}
	return nil
}

// List returns products matching the filter, oldest first.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	query, args := listProductsQuery(f)
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	return pgx.CollectRows(rows, scanProduct)
}

func listProductsQuery(f product.Filter) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.Search != "" {
		where = append(where, "name ILIKE '%' || "+arg(escapeLike(f.Search))+" || '%'")
	}
	if f.MinPrice.Valid {
		where = append(where, "price >= "+arg(f.MinPrice.Decimal))
	}
	if f.MaxPrice.Valid {
		where = append(where, "price <= "+arg(f.MaxPrice.Decimal))
	}

	var b strings.Builder
	b.WriteString(selectProductsSQL)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at, id")
	return b.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.CreatedAt)
	return p, err
}
