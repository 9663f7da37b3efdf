// Package handler implements the HTTP API on top of the domain services.
package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/omni-orders/internal/domain/coupon"
	"github.com/xenking/omni-orders/internal/domain/order"
	"github.com/xenking/omni-orders/internal/domain/pricing"
	"github.com/xenking/omni-orders/internal/domain/product"
	"github.com/xenking/omni-orders/pkg/httpmiddleware"
)

// maxBodySize limits request bodies.
const maxBodySize = 1 << 20

// ProductService creates and lists products.
type ProductService interface {
	Create(ctx context.Context, p product.Product) (*product.Product, error)
	List(ctx context.Context, f product.Filter) ([]product.Product, error)
}

// CouponService creates coupons.
type CouponService interface {
	Create(ctx context.Context, c coupon.Coupon) (*coupon.Coupon, error)
}

// OrderService imports and reads orders.
type OrderService interface {
	Import(ctx context.Context, req order.ImportRequest) (*order.Order, error)
	Get(ctx context.Context, number string) (*order.Order, error)
}

// Handler serves the /api routes.
type Handler struct {
	products ProductService
	coupons  CouponService
	orders   OrderService
}

// New creates a Handler.
func New(products ProductService, coupons CouponService, orders OrderService) *Handler {
	return &Handler{products: products, coupons: coupons, orders: orders}
}

// Mount registers the API on r. Product routes are public; coupon and order
// routes go through auth.
func (h *Handler) Mount(r chi.Router, auth httpmiddleware.Middleware) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)
		r.Post("/products", h.CreateProduct)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Post("/coupons", h.CreateCoupon)
			r.Post("/orders", h.CreateOrder)
			r.Get("/orders/{number}", h.GetOrder)
		})
	})
}

// NotFound answers unknown routes with a JSON error.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	httpmiddleware.WriteError(w, http.StatusNotFound, "not found")
}

// MethodNotAllowed answers known routes hit with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, &requestError{msg: "request body too large or unreadable"}
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// requestError is a malformed request.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// writeError maps err to a status code and writes a {code, message} body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	httpmiddleware.WriteError(w, status, msg)
}

func classify(err error) (int, string) {
	var (
		reqErr      *requestError
		productErr  *product.ValidationError
		couponErr   *coupon.ValidationError
		notFoundErr *order.ProductNotFoundError
		lineErr     *pricing.LineItemError
		applyErr    *pricing.CouponError
	)
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, reqErr.Error()
	case errors.As(err, &productErr):
		return http.StatusBadRequest, productErr.Error()
	case errors.As(err, &couponErr):
		return http.StatusBadRequest, couponErr.Error()
	case errors.Is(err, coupon.ErrAlreadyExists):
		return http.StatusConflict, "coupon code already exists"
	case errors.Is(err, order.ErrMissingNumber):
		return http.StatusBadRequest, order.ErrMissingNumber.Error()
	case errors.Is(err, order.ErrNumberTooLong):
		return http.StatusBadRequest, order.ErrNumberTooLong.Error()
	case errors.Is(err, order.ErrEmptyItems):
		return http.StatusBadRequest, order.ErrEmptyItems.Error()
	case errors.As(err, &notFoundErr):
		return http.StatusUnprocessableEntity, notFoundErr.Error()
	case errors.As(err, &lineErr):
		return http.StatusUnprocessableEntity, lineErr.Error()
	case errors.As(err, &applyErr):
		return http.StatusUnprocessableEntity, applyErr.Error()
	case errors.Is(err, order.ErrAlreadyExists):
		return http.StatusUnprocessableEntity, "order_number already exists"
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, "order not found"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
