package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepository struct {
	coupons map[string]Coupon
	err     error
}

func (m *memRepository) FindByCode(_ context.Context, code string) (*Coupon, error) {
	c, ok := m.coupons[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *memRepository) Create(_ context.Context, c *Coupon) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.coupons[c.Code]; ok {
		return errors.Wrap(ErrAlreadyExists, "insert")
	}
	m.coupons[c.Code] = *c
	return nil
}

func TestService_Create(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	repo := &memRepository{coupons: map[string]Coupon{}}
	svc := NewService(repo)
	svc.now = func() time.Time { return now }

	expires := time.Date(2026, 6, 1, 0, 0, 0, 0, time.FixedZone("UTC+3", 3*3600))
	c, err := svc.Create(context.Background(), Coupon{
		Code:         "SPRING10",
		DiscountType: DiscountPercent,
		Value:        decimal.NewFromInt(10),
		ExpiresAt:    expires,
		Active:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, now, c.CreatedAt)
	assert.Equal(t, time.UTC, c.ExpiresAt.Location())
	assert.True(t, expires.Equal(c.ExpiresAt))
	assert.Contains(t, repo.coupons, "SPRING10")

	_, err = svc.Create(context.Background(), *c)
	require.ErrorIs(t, err, ErrAlreadyExists)
}

func TestService_Create_Invalid(t *testing.T) {
	repo := &memRepository{coupons: map[string]Coupon{}}
	_, err := NewService(repo).Create(context.Background(), Coupon{Code: "X", DiscountType: "bogo"})
	require.ErrorIs(t, err, ErrInvalid)
	assert.Empty(t, repo.coupons)
}

func TestService_Create_StoreError(t *testing.T) {
	repo := &memRepository{coupons: map[string]Coupon{}, err: errors.New("conn reset")}
	_, err := NewService(repo).Create(context.Background(), Coupon{
		Code:         "X",
		DiscountType: DiscountFixed,
		Value:        decimal.NewFromInt(1),
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	require.ErrorContains(t, err, "create coupon: conn reset")
	require.NotErrorIs(t, err, ErrAlreadyExists)
}
