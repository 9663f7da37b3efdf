package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/xenking/omni-orders/internal/domain/product"
)

const productKeyPrefix = "product:"

// ProductCache caches products as JSON values under "product:<id>".
type ProductCache struct {
	client goredis.Cmdable
	ttl    time.Duration
}

var _ product.Cache = (*ProductCache)(nil)

// NewProductCache creates a cache whose entries expire after ttl. A zero ttl
// keeps entries forever.
func NewProductCache(client goredis.Cmdable, ttl time.Duration) *ProductCache {
	return &ProductCache{client: client, ttl: ttl}
}

// GetMany returns the cached subset of ids.
func (c *ProductCache) GetMany(ctx context.Context, ids []string) (map[string]product.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKeyPrefix + id
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "mget")
	}

	out := make(map[string]product.Product, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		p, err := decodeProduct([]byte(s))
		if err != nil {
			return nil, errors.Wrap(err, "decode cached product")
		}
		out[p.ID] = p
	}
	return out, nil
}

// SetMany stores products in a single pipeline.
func (c *ProductCache) SetMany(ctx context.Context, products []product.Product) error {
	if len(products) == 0 {
		return nil
	}
	_, err := c.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i := range products {
			pipe.Set(ctx, productKeyPrefix+products[i].ID, encodeProduct(&products[i]), c.ttl)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "pipeline set")
	}
	return nil
}

func encodeProduct(p *product.Product) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("price", func(e *jx.Encoder) { e.Str(p.Price.String()) })
		e.Field("created_at", func(e *jx.Encoder) { e.Str(p.CreatedAt.Format(time.RFC3339Nano)) })
	})
	return e.Bytes()
}

func decodeProduct(data []byte) (product.Product, error) {
	var p product.Product
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
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
			s, err := d.Str()
			if err != nil {
				return err
			}
			p.Price, err = decimal.NewFromString(s)
			return err
		case "created_at":
			s, err := d.Str()
			if err != nil {
				return err
			}
			p.CreatedAt, err = time.Parse(time.RFC3339Nano, s)
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return product.Product{}, err
	}
	if p.ID == "" {
		return product.Product{}, errors.New("missing id")
	}
	return p, nil
}
