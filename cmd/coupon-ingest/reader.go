package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/omni-orders/internal/domain/coupon"
)

type stats struct {
	read    atomic.Int64
	invalid atomic.Int64

	// Owned by the consumer.
	inserted   int64
	duplicates int64
	existing   int64
	suspects   int64
}

// readFile streams a gzip CSV file and sends every valid coupon to out. It
// returns the number of coupons sent.
func readFile(ctx context.Context, path string, out chan<- coupon.Coupon, st *stats) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrap(err, "gzip")
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	now := time.Now().UTC()
	sent := 0
	for line := 1; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return sent, nil
		}
		if err != nil {
			return sent, err
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "code") {
			continue
		}
		st.read.Add(1)

		c, err := parseRecord(rec, now)
		if err != nil {
			st.invalid.Add(1)
			slog.Debug("skipping invalid coupon", slog.String("file", path), slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}

		select {
		case out <- c:
			sent++
		case <-ctx.Done():
			return sent, ctx.Err()
		}
	}
}

// parseRecord converts code,discount_type,value,expiration_date[,is_active]
// into a validated coupon.
func parseRecord(rec []string, now time.Time) (coupon.Coupon, error) {
	if len(rec) != 4 && len(rec) != 5 {
		return coupon.Coupon{}, errors.Errorf("expected 4 or 5 fields, got %d", len(rec))
	}
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}

	value, err := decimal.NewFromString(rec[2])
	if err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "value")
	}
	expires, err := coupon.ParseExpiration(rec[3])
	if err != nil {
		return coupon.Coupon{}, err
	}
	active := true
	if len(rec) == 5 && rec[4] != "" {
		if active, err = strconv.ParseBool(rec[4]); err != nil {
			return coupon.Coupon{}, errors.Wrap(err, "is_active")
		}
	}

	c := coupon.Coupon{
		Code:         rec[0],
		DiscountType: coupon.DiscountType(strings.ToLower(rec[1])),
		Value:        value,
		ExpiresAt:    expires,
		Active:       active,
		CreatedAt:    now,
	}
	if err := c.Validate(); err != nil {
		return coupon.Coupon{}, err
	}
	return c, nil
}

