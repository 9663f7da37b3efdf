package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/omni-orders/internal/domain/order"
)

// CreateOrder handles POST /api/orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeImportRequest(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.Import(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("message", func(e *jx.Encoder) { e.Str("Order imported successfully!") })
		e.Field("order", func(e *jx.Encoder) { encodeOrder(e, o) })
	})
	writeJSON(w, http.StatusCreated, e.Bytes())
}

// GetOrder handles GET /api/orders/{number}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, e.Bytes())
}

func decodeImportRequest(body []byte) (order.ImportRequest, error) {
	var req order.ImportRequest
	err := decodeObject(body, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "order_number":
			req.Number, err = decodeString(d, key)
		case "coupon_code":
			req.CouponCode, err = decodeString(d, key)
		case "products":
			if d.Next() != jx.Array {
				return badRequest("products must be an array")
			}
			err = d.Arr(func(d *jx.Decoder) error {
				item, err := decodeImportItem(d)
				if err != nil {
					return err
				}
				req.Items = append(req.Items, item)
				return nil
			})
		default:
			err = d.Skip()
		}
		return err
	})
	return req, err
}

func decodeImportItem(d *jx.Decoder) (order.ImportItem, error) {
	var (
		item   order.ImportItem
		hasQty bool
	)
	if d.Next() != jx.Object {
		return item, badRequest("products entries must be objects")
	}
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) (err error) {
		switch string(key) {
		case "product_id":
			item.ProductID, err = decodeString(d, "product_id")
		case "quantity":
			item.Quantity, err = decodeInt(d, "quantity")
			hasQty = true
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return item, err
	}
	switch {
	case item.ProductID == "":
		return item, badRequest("product_id is required")
	case !hasQty:
		return item, badRequest("quantity is required")
	}
	return item, nil
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("order_number", func(e *jx.Encoder) { e.Str(o.Number) })
		e.Field("origin_subtotal", func(e *jx.Encoder) { encodeAmount(e, o.OriginSubtotal) })
		e.Field("discount_amount", func(e *jx.Encoder) { encodeAmount(e, o.DiscountAmount) })
		e.Field("total_price", func(e *jx.Encoder) { encodeAmount(e, o.TotalPrice) })
		e.Field("coupon_code", func(e *jx.Encoder) {
			if o.CouponCode == "" {
				e.Null()
				return
			}
			e.Str(o.CouponCode)
		})
		e.Field("created_time", func(e *jx.Encoder) { e.Str(o.CreatedAt.UTC().Format(time.RFC3339)) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, item := range o.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_id", func(e *jx.Encoder) { e.Str(item.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
						e.Field("price_at_purchase", func(e *jx.Encoder) { encodeAmount(e, item.PriceAtPurchase) })
					})
				}
			})
		})
	})
}
