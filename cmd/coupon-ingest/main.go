// Command coupon-ingest bulk loads coupons from gzip-compressed CSV files.
//
// Each line is code,discount_type,value,expiration_date[,is_active]. Codes
// already stored or repeated across files are skipped. A bloom filter over
// the stored codes keeps exact existence checks to the few codes it cannot
// rule out.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/omni-orders/internal/domain/coupon"
	"github.com/xenking/omni-orders/internal/storage/postgres"
)

const (
	bloomFPR        = 0.001
	minBloomEntries = 10_000
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		batchSize   int
		expected    uint
	)
	flag.StringVar(&dataDir, "data-dir", "data", "directory containing coupon files")
	flag.StringVar(&pattern, "pattern", "*.csv.gz", "glob of coupon files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&batchSize, "batch-size", 1000, "coupons inserted per round trip")
	flag.UintVar(&expected, "expected", 1_000_000, "expected number of new coupons, sizes the bloom filter")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	files, err := filepath.Glob(filepath.Join(dataDir, pattern))
	if err != nil || len(files) == 0 {
		slog.Error("no coupon files found", slog.String("dir", dataDir), slog.String("pattern", pattern))
		os.Exit(1)
	}

	if err := run(ctx, databaseURL, files, batchSize, expected); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL string, files []string, batchSize int, expected uint) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := postgres.NewCouponRepository(pool)

	stored, err := repo.Count(ctx)
	if err != nil {
		return err
	}
	filter := bloom.NewWithEstimates(max(uint(stored)+expected, minBloomEntries), bloomFPR)
	if err := repo.EachCode(ctx, func(code string) { filter.AddString(code) }); err != nil {
		return err
	}
	slog.Info("loaded stored codes", slog.Int64("count", stored))

	ing := newIngester(repo, filter, batchSize)
	if err := ingest(ctx, files, ing); err != nil {
		return err
	}

	s := ing.stats
	slog.Info("coupon ingest completed",
		slog.Int("files", len(files)),
		slog.Int64("read", s.read.Load()),
		slog.Int64("invalid", s.invalid.Load()),
		slog.Int64("inserted", s.inserted),
		slog.Int64("duplicates", s.duplicates),
		slog.Int64("existing", s.existing),
		slog.Int64("bloom_checks", s.suspects),
	)
	return nil
}

// ingest reads all files concurrently and feeds a single consumer.
func ingest(ctx context.Context, files []string, ing *ingester) error {
	records := make(chan coupon.Coupon, 1024)
	g, gctx := errgroup.WithContext(ctx)

	var readers sync.WaitGroup
	for _, path := range files {
		readers.Add(1)
		g.Go(func() error {
			defer readers.Done()
			n, err := readFile(gctx, path, records, ing.stats)
			if err != nil {
				return errors.Wrapf(err, "read %s", filepath.Base(path))
			}
			slog.Info("file read", slog.String("file", filepath.Base(path)), slog.Int("coupons", n))
			return nil
		})
	}
	g.Go(func() error {
		readers.Wait()
		close(records)
		return nil
	})
	g.Go(func() error {
		return ing.consume(gctx, records)
	})
	return g.Wait()
}
