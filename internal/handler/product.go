package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/omni-orders/internal/domain/product"
)

// ListProducts handles GET /api/products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	f, err := productFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	products, err := h.products.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for i := range products {
			encodeProduct(e, &products[i])
		}
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}

func productFilter(r *http.Request) (product.Filter, error) {
	q := r.URL.Query()
	f := product.Filter{Search: q.Get("search")}
	for _, bound := range []struct {
		name string
		dst  *decimal.NullDecimal
	}{
		{"min_price", &f.MinPrice},
		{"max_price", &f.MaxPrice},
	} {
		raw := q.Get(bound.name)
		if raw == "" {
			continue
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return product.Filter{}, badRequest("%s must be a number", bound.name)
		}
		*bound.dst = decimal.NewNullDecimal(v)
	}
	return f, nil
}

// CreateProduct handles POST /api/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var (
		p        product.Product
		hasPrice bool
	)
	if err := decodeObject(body, func(d *jx.Decoder, key string) (err error) {
		switch key {
		case "name":
			p.Name, err = decodeString(d, key)
		case "price":
			p.Price, err = decodeDecimal(d, key)
			hasPrice = true
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		writeError(w, r, err)
		return
	}
	if !hasPrice {
		writeError(w, r, badRequest("price is required"))
		return
	}

	created, err := h.products.Create(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeProduct(&e, created)
	writeJSON(w, http.StatusCreated, e.Bytes())
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { encodeAmount(e, p.Price) })
	})
}
