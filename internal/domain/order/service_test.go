package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/omni-orders/internal/domain/coupon"
	"github.com/xenking/omni-orders/internal/domain/pricing"
	"github.com/xenking/omni-orders/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID   map[string]product.Product
	getErr error
}

func (m *mockProductRepo) Create(_ context.Context, _ *product.Product) error { return nil }

func (m *mockProductRepo) List(_ context.Context, _ product.Filter) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockCouponStore struct {
	byCode map[string]*coupon.Coupon
}

func (m *mockCouponStore) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	c, ok := m.byCode[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return c, nil
}

// memStore keeps committed orders and events; mockTx rolls back anything
// written by a failed transaction.
type memStore struct {
	orders    map[string]*Order
	events    []string
	createErr error
	eventErr  error
}

func (m *memStore) Create(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.orders[o.Number]; ok {
		return ErrAlreadyExists
	}
	m.orders[o.Number] = o
	return nil
}

func (m *memStore) Get(_ context.Context, number string) (*Order, error) {
	o, ok := m.orders[number]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *memStore) RecordImported(_ context.Context, o *Order) error {
	if m.eventErr != nil {
		return m.eventErr
	}
	m.events = append(m.events, o.Number)
	return nil
}

type mockTx struct {
	store *memStore
	calls int
}

func (m *mockTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	orders := make(map[string]*Order, len(m.store.orders))
	for k, v := range m.store.orders {
		orders[k] = v
	}
	events := append([]string(nil), m.store.events...)

	if err := fn(ctx); err != nil {
		m.store.orders = orders
		m.store.events = events
		return err
	}
	return nil
}

// --- Helpers ---

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *Service
	store *memStore
	tx    *mockTx
}

func newTestProduct(id, name, price string) product.Product {
	return product.Product{ID: id, Name: name, Price: decimal.RequireFromString(price)}
}

func newFixture(t *testing.T, products []product.Product, coupons ...*coupon.Coupon) *fixture {
	t.Helper()

	byID := make(map[string]product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	byCode := make(map[string]*coupon.Coupon, len(coupons))
	for _, c := range coupons {
		byCode[c.Code] = c
	}

	store := &memStore{orders: map[string]*Order{}}
	tx := &mockTx{store: store}
	engine := pricing.NewEngine(coupon.NewResolver(&mockCouponStore{byCode: byCode}))

	svc, err := NewService(&mockProductRepo{byID: byID}, engine, store, tx,
		WithEvents(store),
		WithClock(func() time.Time { return testNow }),
	)
	require.NoError(t, err)

	return &fixture{svc: svc, store: store, tx: tx}
}

func catalog() []product.Product {
	return []product.Product{
		newTestProduct("laptop", "Gaming Laptop", "35000.00"),
		newTestProduct("keyboard", "Mechanical Keyboard", "2500.00"),
		newTestProduct("widget", "Widget", "25.00"),
	}
}

func activeCoupon(code string, typ coupon.DiscountType, value string) *coupon.Coupon {
	return &coupon.Coupon{
		Code:         code,
		DiscountType: typ,
		Value:        decimal.RequireFromString(value),
		ExpiresAt:    testNow.Add(24 * time.Hour),
		Active:       true,
	}
}

// --- Tests ---

func TestImport_Validation(t *testing.T) {
	tests := []struct {
		name    string
		req     ImportRequest
		wantErr error
	}{
		{name: "missing number", req: ImportRequest{Items: []ImportItem{{ProductID: "widget", Quantity: 1}}}, wantErr: ErrMissingNumber},
		{name: "number too long", req: ImportRequest{
			Number: string(make([]byte, MaxNumberLength+1)),
			Items:  []ImportItem{{ProductID: "widget", Quantity: 1}},
		}, wantErr: ErrNumberTooLong},
		{name: "no items", req: ImportRequest{Number: "A-1"}, wantErr: ErrEmptyItems},
		{name: "zero quantity", req: ImportRequest{
			Number: "A-1",
			Items:  []ImportItem{{ProductID: "widget", Quantity: 0}},
		}, wantErr: pricing.ErrInvalidLineItem},
		{name: "quantity above int32", req: ImportRequest{
			Number: "A-1",
			Items:  []ImportItem{{ProductID: "widget", Quantity: 3_000_000_000}},
		}, wantErr: pricing.ErrInvalidLineItem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, catalog())

			_, err := f.svc.Import(context.Background(), tt.req)

			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.store.orders)
			assert.Zero(t, f.tx.calls)
		})
	}
}

func TestImport_ProductNotFound(t *testing.T) {
	f := newFixture(t, catalog())

	_, err := f.svc.Import(context.Background(), ImportRequest{
		Number: "A-1",
		Items:  []ImportItem{{ProductID: "widget", Quantity: 1}, {ProductID: "missing", Quantity: 1}},
	})

	var pnfErr *ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Equal(t, "missing", pnfErr.ProductID)
	assert.Empty(t, f.store.orders)
}

func TestImport_NoCoupon(t *testing.T) {
	f := newFixture(t, catalog())

	o, err := f.svc.Import(context.Background(), ImportRequest{
		Number: "ORD-1",
		Items: []ImportItem{
			{ProductID: "laptop", Quantity: 1},
			{ProductID: "keyboard", Quantity: 2},
		},
	})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("40000.00").Equal(o.OriginSubtotal))
	assert.True(t, decimal.Zero.Equal(o.DiscountAmount))
	assert.True(t, decimal.RequireFromString("40000.00").Equal(o.TotalPrice))
	assert.Empty(t, o.CouponCode)
	assert.Equal(t, testNow, o.CreatedAt)

	require.Len(t, o.Items, 2)
	assert.Equal(t, "keyboard", o.Items[1].ProductID)
	assert.Equal(t, 2, o.Items[1].Quantity)
	assert.True(t, decimal.RequireFromString("2500.00").Equal(o.Items[1].PriceAtPurchase))

	assert.Same(t, o, f.store.orders["ORD-1"])
	assert.Equal(t, []string{"ORD-1"}, f.store.events)
}

func TestImport_PercentCoupon(t *testing.T) {
	f := newFixture(t, catalog(), activeCoupon("TEN", coupon.DiscountPercent, "10"))

	o, err := f.svc.Import(context.Background(), ImportRequest{
		Number:     "ORD-2",
		Items:      []ImportItem{{ProductID: "widget", Quantity: 4}},
		CouponCode: "TEN",
	})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("100.00").Equal(o.OriginSubtotal))
	assert.True(t, decimal.RequireFromString("10.00").Equal(o.DiscountAmount))
	assert.True(t, decimal.RequireFromString("90.00").Equal(o.TotalPrice))
	assert.Equal(t, "TEN", o.CouponCode)
}

func TestImport_FixedCouponAboveSubtotalIsNotClamped(t *testing.T) {
	f := newFixture(t, catalog(), activeCoupon("BIG", coupon.DiscountFixed, "75.00"))

	o, err := f.svc.Import(context.Background(), ImportRequest{
		Number:     "ORD-3",
		Items:      []ImportItem{{ProductID: "widget", Quantity: 2}},
		CouponCode: "BIG",
	})

	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("50.00").Equal(o.OriginSubtotal))
	assert.True(t, decimal.RequireFromString("75.00").Equal(o.DiscountAmount))
	assert.True(t, decimal.RequireFromString("-25.00").Equal(o.TotalPrice))
	assert.Contains(t, f.store.orders, "ORD-3")
}

func TestImport_ExpiredCouponStoresNothing(t *testing.T) {
	expired := activeCoupon("OLD", coupon.DiscountPercent, "10")
	expired.ExpiresAt = testNow.Add(-time.Hour)
	f := newFixture(t, catalog(), expired)

	o, err := f.svc.Import(context.Background(), ImportRequest{
		Number:     "ORD-4",
		Items:      []ImportItem{{ProductID: "widget", Quantity: 1}},
		CouponCode: "OLD",
	})

	assert.Nil(t, o)
	require.ErrorIs(t, err, pricing.ErrCouponInvalid)
	require.ErrorIs(t, err, coupon.ErrNotEligible)
	assert.Empty(t, f.store.orders)
	assert.Empty(t, f.store.events)
}

func TestImport_UnknownCoupon(t *testing.T) {
	f := newFixture(t, catalog())

	_, err := f.svc.Import(context.Background(), ImportRequest{
		Number:     "ORD-5",
		Items:      []ImportItem{{ProductID: "widget", Quantity: 1}},
		CouponCode: "NOPE",
	})

	require.ErrorIs(t, err, coupon.ErrNotFound)
	assert.Empty(t, f.store.orders)
}

func TestImport_DuplicateNumber(t *testing.T) {
	f := newFixture(t, catalog())
	req := ImportRequest{Number: "ORD-6", Items: []ImportItem{{ProductID: "widget", Quantity: 1}}}

	_, err := f.svc.Import(context.Background(), req)
	require.NoError(t, err)

	_, err = f.svc.Import(context.Background(), req)
	require.ErrorIs(t, err, ErrAlreadyExists)
	assert.Len(t, f.store.events, 1)
}

func TestImport_EventFailureRollsBack(t *testing.T) {
	f := newFixture(t, catalog())
	f.store.eventErr = errors.New("outbox insert failed")

	_, err := f.svc.Import(context.Background(), ImportRequest{
		Number: "ORD-7",
		Items:  []ImportItem{{ProductID: "widget", Quantity: 1}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "record event")
	assert.Empty(t, f.store.orders)
}

func TestImport_CreateError(t *testing.T) {
	f := newFixture(t, catalog())
	f.store.createErr = errors.New("db write failed")

	_, err := f.svc.Import(context.Background(), ImportRequest{
		Number: "ORD-8",
		Items:  []ImportItem{{ProductID: "widget", Quantity: 1}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
}

func TestImport_ProductLookupError(t *testing.T) {
	store := &memStore{orders: map[string]*Order{}}
	svc, err := NewService(
		&mockProductRepo{getErr: errors.New("db down")},
		pricing.NewEngine(coupon.NewResolver(&mockCouponStore{})),
		store,
		&mockTx{store: store},
	)
	require.NoError(t, err)

	_, err = svc.Import(context.Background(), ImportRequest{
		Number: "ORD-9",
		Items:  []ImportItem{{ProductID: "widget", Quantity: 1}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "get products")
}

func TestGet(t *testing.T) {
	f := newFixture(t, catalog())
	_, err := f.svc.Import(context.Background(), ImportRequest{
		Number: "ORD-10",
		Items:  []ImportItem{{ProductID: "laptop", Quantity: 1}},
	})
	require.NoError(t, err)

	o, err := f.svc.Get(context.Background(), "ORD-10")
	require.NoError(t, err)
	assert.Equal(t, "ORD-10", o.Number)

	_, err = f.svc.Get(context.Background(), "ORD-404")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRejectReason(t *testing.T) {
	assert.Equal(t, "invalid_request", rejectReason(ErrEmptyItems))
	assert.Equal(t, "product_not_found", rejectReason(&ProductNotFoundError{ProductID: "x"}))
	assert.Equal(t, "invalid_line_item", rejectReason(&pricing.LineItemError{}))
	assert.Equal(t, "coupon", rejectReason(&pricing.CouponError{Code: "X", Err: coupon.ErrNotFound}))
	assert.Equal(t, "duplicate", rejectReason(errors.Wrap(ErrAlreadyExists, "create order")))
	assert.Equal(t, "internal", rejectReason(errors.New("boom")))
}
