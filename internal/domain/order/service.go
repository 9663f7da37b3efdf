package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/omni-orders/internal/domain/pricing"
	"github.com/xenking/omni-orders/internal/domain/product"
)

// Sentinel errors for import request validation.
var (
	ErrEmptyItems    = errors.New("products required")
	ErrMissingNumber = errors.New("order_number required")
	ErrNumberTooLong = fmt.Errorf("order_number longer than %d characters", MaxNumberLength)
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// Pricer computes the price breakdown of a set of line items.
type Pricer interface {
	Price(ctx context.Context, items []pricing.LineItem, couponCode string, now time.Time) (*pricing.Result, error)
}

// ImportRequest holds the input for importing an order.
type ImportRequest struct {
	Number     string
	Items      []ImportItem
	CouponCode string
}

// ImportItem is a requested order line.
type ImportItem struct {
	ProductID string
	Quantity  int
}

// Option configures a Service.
type Option func(*Service)

// WithEvents records an event for every imported order in the same
// transaction as the order itself.
func WithEvents(r EventRecorder) Option {
	return func(s *Service) { s.events = r }
}

// WithClock overrides the clock used for creation timestamps and coupon
// eligibility.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer("omni-orders/order") }
}

// WithMeterProvider sets the meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp.Meter("omni-orders/order") }
}

// Service encapsulates order import business logic.
type Service struct {
	products product.Repository
	pricer   Pricer
	orders   Repository
	tx       Transactor
	events   EventRecorder
	now      func() time.Time

	tracer   trace.Tracer
	meter    metric.Meter
	imported metric.Int64Counter
	rejected metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	pricer Pricer,
	orders Repository,
	tx Transactor,
	opts ...Option,
) (*Service, error) {
	s := &Service{
		products: products,
		pricer:   pricer,
		orders:   orders,
		tx:       tx,
		now:      time.Now,
		tracer:   tracenoop.NewTracerProvider().Tracer(""),
		meter:    metricnoop.NewMeterProvider().Meter(""),
	}
	for _, o := range opts {
		o(s)
	}

	var err error
	if s.imported, err = s.meter.Int64Counter("orders.imported",
		metric.WithDescription("Orders imported successfully"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.imported counter")
	}
	if s.rejected, err = s.meter.Int64Counter("orders.rejected",
		metric.WithDescription("Order imports rejected, by reason"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.rejected counter")
	}

	return s, nil
}

// Import validates the request, snapshots current product prices, prices the
// order with the optional coupon, and stores the order with its items in a
// single transaction. Nothing is stored when any step fails.
func (s *Service) Import(ctx context.Context, req ImportRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Import",
		trace.WithAttributes(
			attribute.String("order.number", req.Number),
			attribute.Int("order.items", len(req.Items)),
			attribute.Bool("order.coupon", req.CouponCode != ""),
		),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
			s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", rejectReason(rerr))))
		}
		span.End()
	}()

	switch {
	case req.Number == "":
		return nil, ErrMissingNumber
	case len(req.Number) > MaxNumberLength:
		return nil, ErrNumberTooLong
	case len(req.Items) == 0:
		return nil, ErrEmptyItems
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		ids[i] = item.ProductID
	}

	// Batch fetch all products in a single query.
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	lines := make([]pricing.LineItem, len(req.Items))
	items := make([]Item, len(req.Items))
	for i, item := range req.Items {
		p, ok := productMap[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}
		lines[i] = pricing.LineItem{ProductID: p.ID, UnitPrice: p.Price, Quantity: item.Quantity}
		items[i] = Item{ProductID: p.ID, Quantity: item.Quantity, PriceAtPurchase: p.Price}
	}

	now := s.now().UTC()
	priced, err := s.pricer.Price(ctx, lines, req.CouponCode, now)
	if err != nil {
		return nil, errors.Wrap(err, "price order")
	}

	o := &Order{
		Number:         req.Number,
		Items:          items,
		OriginSubtotal: priced.OriginSubtotal,
		DiscountAmount: priced.DiscountAmount,
		TotalPrice:     priced.TotalPrice,
		CreatedAt:      now,
	}
	if priced.AppliedCoupon != nil {
		o.CouponCode = priced.AppliedCoupon.Code
	}

	if err := s.tx.Do(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		if s.events != nil {
			if err := s.events.RecordImported(ctx, o); err != nil {
				return errors.Wrap(err, "record event")
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	s.imported.Add(ctx, 1)
	zctx.From(ctx).Info("Order imported",
		zap.String("order_number", o.Number),
		zap.Stringer("total_price", o.TotalPrice),
		zap.String("coupon_code", o.CouponCode),
	)
	if o.TotalPrice.IsNegative() {
		zctx.From(ctx).Warn("Order total is negative", zap.String("order_number", o.Number))
	}

	return o, nil
}

// Get returns the order with the given number.
func (s *Service) Get(ctx context.Context, number string) (*Order, error) {
	o, err := s.orders.Get(ctx, number)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

func rejectReason(err error) string {
	var pnfErr *ProductNotFoundError
	switch {
	case errors.Is(err, ErrEmptyItems), errors.Is(err, ErrMissingNumber), errors.Is(err, ErrNumberTooLong):
		return "invalid_request"
	case errors.As(err, &pnfErr):
		return "product_not_found"
	case errors.Is(err, pricing.ErrInvalidLineItem):
		return "invalid_line_item"
	case errors.Is(err, pricing.ErrCouponInvalid):
		return "coupon"
	case errors.Is(err, ErrAlreadyExists):
		return "duplicate"
	default:
		return "internal"
	}
}
