package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/omni-orders/internal/domain/coupon"
)

// CreateCoupon handles POST /api/coupons.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	c := coupon.Coupon{Active: true}
	if err := decodeObject(body, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "code":
			c.Code, err = decodeString(d, key)
		case "discount_type":
			var s string
			s, err = decodeString(d, key)
			c.DiscountType = coupon.DiscountType(s)
		case "value":
			c.Value, err = decodeDecimal(d, key)
		case "expiration_date":
			var s string
			if s, err = decodeString(d, key); err == nil && s != "" {
				c.ExpiresAt, err = coupon.ParseExpiration(s)
			}
		case "is_active":
			c.Active, err = decodeBool(d, key)
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}

	created, err := h.coupons.Create(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("message", func(e *jx.Encoder) { e.Str("Coupon created successfully!") })
		e.Field("code", func(e *jx.Encoder) { e.Str(created.Code) })
	})
	writeJSON(w, http.StatusCreated, e.Bytes())
}
