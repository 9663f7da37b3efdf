// Package events publishes domain events recorded in the transactional
// outbox.
package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/xenking/omni-orders/internal/domain/order"
)

// TypeOrderImported is the event type emitted after an order is stored.
const TypeOrderImported = "order.imported"

// Message is an outbox entry. Key is the aggregate identifier and is used
// as the partitioning key.
type Message struct {
	ID        int64
	EventID   uuid.UUID
	Type      string
	Key       string
	Payload   []byte
	Attempts  int
	CreatedAt time.Time
}

// Store is the outbox as seen by the relay.
type Store interface {
	Claim(ctx context.Context, limit int) ([]Message, error)
	MarkProcessed(ctx context.Context, ids []int64) error
	Release(ctx context.Context, ids []int64) error
}

// Publisher delivers messages to a broker.
type Publisher interface {
	Publish(ctx context.Context, msgs ...Message) error
}

// OrderImported is the payload of an order.imported event.
type OrderImported struct {
	EventID        uuid.UUID
	OccurredAt     time.Time
	OrderNumber    string
	OriginSubtotal string
	DiscountAmount string
	TotalPrice     string
	CouponCode     string
	Items          []OrderImportedItem
}

// OrderImportedItem is an order line in an OrderImported payload.
type OrderImportedItem struct {
	ProductID       string
	Quantity        int
	PriceAtPurchase string
}

// NewOrderImported builds the outbox message for an imported order.
func NewOrderImported(eventID uuid.UUID, at time.Time, o *order.Order) (Message, error) {
	ev := OrderImported{
		EventID:        eventID,
		OccurredAt:     at,
		OrderNumber:    o.Number,
		OriginSubtotal: o.OriginSubtotal.String(),
		DiscountAmount: o.DiscountAmount.String(),
		TotalPrice:     o.TotalPrice.String(),
		CouponCode:     o.CouponCode,
		Items:          make([]OrderImportedItem, len(o.Items)),
	}
	for i, item := range o.Items {
		ev.Items[i] = OrderImportedItem{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			PriceAtPurchase: item.PriceAtPurchase.String(),
		}
	}

	payload, err := ev.MarshalJSON()
	if err != nil {
		return Message{}, err
	}
	return Message{
		EventID:   eventID,
		Type:      TypeOrderImported,
		Key:       o.Number,
		Payload:   payload,
		CreatedAt: at,
	}, nil
}

// MarshalJSON encodes the event. Amounts are decimal strings.
func (ev OrderImported) MarshalJSON() ([]byte, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("event_id", func(e *jx.Encoder) { e.Str(ev.EventID.String()) })
		e.Field("event_type", func(e *jx.Encoder) { e.Str(TypeOrderImported) })
		e.Field("occurred_at", func(e *jx.Encoder) { e.Str(ev.OccurredAt.Format(time.RFC3339Nano)) })
		e.Field("order_number", func(e *jx.Encoder) { e.Str(ev.OrderNumber) })
		e.Field("origin_subtotal", func(e *jx.Encoder) { e.Str(ev.OriginSubtotal) })
		e.Field("discount_amount", func(e *jx.Encoder) { e.Str(ev.DiscountAmount) })
		e.Field("total_price", func(e *jx.Encoder) { e.Str(ev.TotalPrice) })
		e.Field("coupon_code", func(e *jx.Encoder) {
			if ev.CouponCode == "" {
				e.Null()
				return
			}
			e.Str(ev.CouponCode)
		})
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, item := range ev.Items {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_id", func(e *jx.Encoder) { e.Str(item.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(item.Quantity) })
						e.Field("price_at_purchase", func(e *jx.Encoder) { e.Str(item.PriceAtPurchase) })
					})
				}
			})
		})
	})
	return e.Bytes(), nil
}

// UnmarshalJSON decodes an event produced by MarshalJSON.
func (ev *OrderImported) UnmarshalJSON(data []byte) error {
	d := jx.DecodeBytes(data)
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "event_id":
			s, err := d.Str()
			if err != nil {
				return err
			}
			if ev.EventID, err = uuid.Parse(s); err != nil {
				return errors.Wrap(err, "event_id")
			}
		case "occurred_at":
			s, err := d.Str()
			if err != nil {
				return err
			}
			if ev.OccurredAt, err = time.Parse(time.RFC3339Nano, s); err != nil {
				return errors.Wrap(err, "occurred_at")
			}
		case "order_number":
			return decodeStr(d, &ev.OrderNumber)
		case "origin_subtotal":
			return decodeStr(d, &ev.OriginSubtotal)
		case "discount_amount":
			return decodeStr(d, &ev.DiscountAmount)
		case "total_price":
			return decodeStr(d, &ev.TotalPrice)
		case "coupon_code":
			if d.Next() == jx.Null {
				return d.Null()
			}
			return decodeStr(d, &ev.CouponCode)
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				var item OrderImportedItem
				if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
					switch string(key) {
					case "product_id":
						return decodeStr(d, &item.ProductID)
					case "quantity":
						n, err := d.Int()
						item.Quantity = n
						return err
					case "price_at_purchase":
						return decodeStr(d, &item.PriceAtPurchase)
					default:
						return d.Skip()
					}
				}); err != nil {
					return err
				}
				ev.Items = append(ev.Items, item)
				return nil
			})
		default:
			return d.Skip()
		}
		return nil
	})
}

func decodeStr(d *jx.Decoder, dst *string) error {
	s, err := d.Str()
	if err != nil {
		return err
	}
	*dst = s
	return nil
}
