package main

import (
	"context"
	"log/slog"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/xenking/omni-orders/internal/domain/coupon"
)

// couponStore is the subset of the coupon repository used for ingestion.
type couponStore interface {
	ExistingCodes(ctx context.Context, codes []string) (map[string]struct{}, error)
	InsertBatch(ctx context.Context, coupons []coupon.Coupon) (int64, error)
}

// ingester deduplicates incoming coupons and writes them in batches. Codes
// the bloom filter rules out go straight to insertion; the rest are checked
// against the store first.
type ingester struct {
	store     couponStore
	filter    *bloom.BloomFilter
	batchSize int
	stats     *stats

	seen     map[string]struct{}
	fresh    []coupon.Coupon
	suspects []coupon.Coupon
}

func newIngester(store couponStore, filter *bloom.BloomFilter, batchSize int) *ingester {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &ingester{
		store:     store,
		filter:    filter,
		batchSize: batchSize,
		stats:     &stats{},
		seen:      make(map[string]struct{}),
	}
}

func (i *ingester) consume(ctx context.Context, in <-chan coupon.Coupon) error {
	for c := range in {
		if err := i.add(ctx, c); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := i.flushSuspects(ctx); err != nil {
		return err
	}
	return i.flushFresh(ctx)
}

func (i *ingester) add(ctx context.Context, c coupon.Coupon) error {
	if _, ok := i.seen[c.Code]; ok {
		i.stats.duplicates++
		return nil
	}
	i.seen[c.Code] = struct{}{}

	if i.filter.TestString(c.Code) {
		i.stats.suspects++
		i.suspects = append(i.suspects, c)
		if len(i.suspects) >= i.batchSize {
			return i.flushSuspects(ctx)
		}
		return nil
	}

	i.fresh = append(i.fresh, c)
	if len(i.fresh) >= i.batchSize {
		return i.flushFresh(ctx)
	}
	return nil
}

func (i *ingester) flushSuspects(ctx context.Context) error {
	if len(i.suspects) == 0 {
		return nil
	}
	codes := make([]string, len(i.suspects))
	for n, c := range i.suspects {
		codes[n] = c.Code
	}
	existing, err := i.store.ExistingCodes(ctx, codes)
	if err != nil {
		return err
	}

	keep := i.suspects[:0]
	for _, c := range i.suspects {
		if _, ok := existing[c.Code]; ok {
			i.stats.existing++
			continue
		}
		keep = append(keep, c)
	}
	err = i.insert(ctx, keep)
	i.suspects = i.suspects[:0]
	return err
}

func (i *ingester) flushFresh(ctx context.Context) error {
	err := i.insert(ctx, i.fresh)
	i.fresh = i.fresh[:0]
	return err
}

func (i *ingester) insert(ctx context.Context, batch []coupon.Coupon) error {
	if len(batch) == 0 {
		return nil
	}
	n, err := i.store.InsertBatch(ctx, batch)
	i.stats.inserted += n
	if err != nil {
		return err
	}
	// Rows skipped here were stored concurrently by another writer.
	i.stats.existing += int64(len(batch)) - n
	for _, c := range batch {
		i.filter.AddString(c.Code)
	}
	slog.Info("batch inserted", slog.Int64("rows", n), slog.Int64("total", i.stats.inserted))
	return nil
}
