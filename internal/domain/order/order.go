package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// MaxNumberLength matches the width of the orders.order_number column.
const MaxNumberLength = 100

var (
	// ErrNotFound is returned when no order exists for a number.
	ErrNotFound = errors.New("order not found")
	// ErrAlreadyExists is returned when an order number is already taken.
	ErrAlreadyExists = errors.New("order already exists")
)

// Order is an imported order with its price breakdown. Pricing fields are
// computed once when the order is created.
type Order struct {
	Number         string
	Items          []Item
	OriginSubtotal decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalPrice     decimal.Decimal
	CouponCode     string
	CreatedAt      time.Time
}

// Item is a single order line with the product price captured at purchase.
type Item struct {
	ProductID       string
	Quantity        int
	PriceAtPurchase decimal.Decimal
}

// Repository defines persistence operations for orders. Create must store
// the order and all of its items or nothing.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, number string) (*Order, error)
}

// EventRecorder records that an order was imported. It runs inside the
// transaction that creates the order.
type EventRecorder interface {
	RecordImported(ctx context.Context, o *Order) error
}

// Transactor runs fn in a transaction carried by ctx.
type Transactor interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
