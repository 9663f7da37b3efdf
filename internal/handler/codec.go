package handler

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// decodeObject decodes a JSON object, calling fn for each field. Syntax
// errors become bad requests.
func decodeObject(body []byte, fn func(d *jx.Decoder, key string) error) error {
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return badRequest("request body must be a JSON object")
	}
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		return fn(d, string(key))
	}); err != nil {
		var reqErr *requestError
		if errors.As(err, &reqErr) {
			return reqErr
		}
		return badRequest("invalid JSON: %s", err)
	}
	return nil
}

func decodeString(d *jx.Decoder, field string) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Null:
		return "", d.Null()
	default:
		return "", badRequest("%s must be a string", field)
	}
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder, field string) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	default:
		return decimal.Decimal{}, badRequest("%s must be a number", field)
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, badRequest("%s must be a number", field)
	}
	return v, nil
}

// decodeInt accepts a JSON integer.
func decodeInt(d *jx.Decoder, field string) (int, error) {
	if d.Next() != jx.Number {
		return 0, badRequest("%s must be an integer", field)
	}
	n, err := d.Num()
	if err != nil {
		return 0, err
	}
	if !n.IsInt() {
		return 0, badRequest("%s must be an integer", field)
	}
	v, err := n.Int64()
	if err != nil {
		return 0, badRequest("%s is out of range", field)
	}
	return int(v), nil
}

func decodeBool(d *jx.Decoder, field string) (bool, error) {
	if d.Next() != jx.Bool {
		return false, badRequest("%s must be a boolean", field)
	}
	return d.Bool()
}

// formatAmount renders at least two fractional digits and never rounds.
func formatAmount(v decimal.Decimal) string {
	if v.Equal(v.Truncate(2)) {
		return v.StringFixed(2)
	}
	return v.String()
}

func encodeAmount(e *jx.Encoder, v decimal.Decimal) {
	e.Str(formatAmount(v))
}
