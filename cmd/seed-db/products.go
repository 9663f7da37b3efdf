package main

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/omni-orders/internal/domain/product"
)

// parseProducts reads a JSON array of {id, name, price} objects. Prices may
// be numbers or numeric strings.
func parseProducts(data []byte, now time.Time) ([]product.Product, error) {
	var out []product.Product
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		p := product.Product{CreatedAt: now}
		if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch string(key) {
			case "id":
				s, err := d.Str()
				p.ID = s
				return err
			case "name":
				s, err := d.Str()
				p.Name = s
				return err
			case "price":
				raw, err := d.Raw()
				if err != nil {
					return err
				}
				s := raw.String()
				if raw.Type() == jx.String {
					s = s[1 : len(s)-1]
				}
				if p.Price, err = decimal.NewFromString(s); err != nil {
					return errors.Wrap(err, "price")
				}
				return nil
			default:
				return d.Skip()
			}
		}); err != nil {
			return err
		}
		if p.ID == "" {
			return errors.Errorf("product %d: missing id", len(out))
		}
		if err := p.Validate(); err != nil {
			return errors.Wrapf(err, "product %s", p.ID)
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
