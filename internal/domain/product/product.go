package product

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// MaxNameLength matches the width of the products.name column.
const MaxNameLength = 100

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInvalid is matched by every *ValidationError.
	ErrInvalid = errors.New("invalid product")
)

// maxPrice is the first value that no longer fits NUMERIC(10,3).
var maxPrice = decimal.New(1, 7)

// ValidationError describes why a product was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid product %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrInvalid.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// Product is a catalog item. Products are never modified after creation.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	CreatedAt time.Time
}

// Validate checks the product's name and price.
func (p *Product) Validate() error {
	switch {
	case p.Name == "":
		return &ValidationError{Field: "name", Reason: "required"}
	case len([]rune(p.Name)) > MaxNameLength:
		return &ValidationError{Field: "name", Reason: fmt.Sprintf("longer than %d characters", MaxNameLength)}
	case p.Price.IsNegative():
		return &ValidationError{Field: "price", Reason: "must not be negative"}
	case !p.Price.Equal(p.Price.Truncate(3)):
		return &ValidationError{Field: "price", Reason: "at most 3 decimal places"}
	case p.Price.GreaterThanOrEqual(maxPrice):
		return &ValidationError{Field: "price", Reason: "must be less than 10000000"}
	}
	return nil
}

// Filter narrows a product listing. Zero values disable the corresponding
// condition; price bounds are inclusive.
type Filter struct {
	Search   string
	MinPrice decimal.NullDecimal
	MaxPrice decimal.NullDecimal
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	List(ctx context.Context, f Filter) ([]Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
