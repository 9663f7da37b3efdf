package postgres

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/omni-orders/internal/domain/product"
)

func TestListProductsQuery(t *testing.T) {
	for _, tt := range []struct {
		name     string
		filter   product.Filter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "NoFilter",
			wantSQL: selectProductsSQL + " ORDER BY created_at, id",
		},
		{
			name:     "Search",
			filter:   product.Filter{Search: "50%_off"},
			wantSQL:  selectProductsSQL + " WHERE name ILIKE '%' || $1 || '%' ORDER BY created_at, id",
			wantArgs: []any{`50\%\_off`},
		},
		{
			name: "AllConditions",
			filter: product.Filter{
				Search:   "lap",
				MinPrice: decimal.NewNullDecimal(decimal.NewFromInt(10)),
				MaxPrice: decimal.NewNullDecimal(decimal.NewFromInt(100)),
			},
			wantSQL: selectProductsSQL +
				" WHERE name ILIKE '%' || $1 || '%' AND price >= $2 AND price <= $3 ORDER BY created_at, id",
			wantArgs: []any{"lap", decimal.NewFromInt(10), decimal.NewFromInt(100)},
		},
		{
			name:     "MaxOnly",
			filter:   product.Filter{MaxPrice: decimal.NewNullDecimal(decimal.Zero)},
			wantSQL:  selectProductsSQL + " WHERE price <= $1 ORDER BY created_at, id",
			wantArgs: []any{decimal.Zero},
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := listProductsQuery(tt.filter)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\\b\%c\_d`, escapeLike(`a\b%c_d`))
	assert.Equal(t, "plain", escapeLike("plain"))
}
