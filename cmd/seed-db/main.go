// Command seed-db applies migrations and loads demo products and coupons.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/omni-orders/internal/domain/coupon"
	"github.com/xenking/omni-orders/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		productsFile string
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
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

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("seed completed")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	slog.Info("running migrations")
	if err := postgres.RunMigrations(databaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}
	now := time.Now().UTC()
	products, err := parseProducts(data, now)
	if err != nil {
		return errors.Wrapf(err, "parse %s", productsFile)
	}

	productRepo := postgres.NewProductRepository(pool)
	for i := range products {
		if err := productRepo.Upsert(ctx, &products[i]); err != nil {
			return err
		}
		slog.Info("upserted product", slog.String("id", products[i].ID), slog.String("name", products[i].Name))
	}

	couponRepo := postgres.NewCouponRepository(pool)
	for _, c := range demoCoupons(now) {
		if err := couponRepo.Upsert(ctx, &c); err != nil {
			return err
		}
		slog.Info("upserted coupon",
			slog.String("code", c.Code),
			slog.String("type", string(c.DiscountType)),
			slog.Bool("eligible", c.Eligible(now)),
		)
	}
	return nil
}

// demoCoupons covers every eligibility outcome: percentage, fixed larger
// than a typical subtotal, expired and inactive.
func demoCoupons(now time.Time) []coupon.Coupon {
	nextYear := now.AddDate(1, 0, 0)
	return []coupon.Coupon{
		{Code: "TENOFF", DiscountType: coupon.DiscountPercent, Value: decimal.NewFromInt(10), ExpiresAt: nextYear, Active: true, CreatedAt: now},
		{Code: "FLAT75", DiscountType: coupon.DiscountFixed, Value: decimal.NewFromInt(75), ExpiresAt: nextYear, Active: true, CreatedAt: now},
		{Code: "EXPIRED20", DiscountType: coupon.DiscountPercent, Value: decimal.NewFromInt(20), ExpiresAt: now.AddDate(0, 0, -1), Active: true, CreatedAt: now},
		{Code: "PAUSED5", DiscountType: coupon.DiscountFixed, Value: decimal.NewFromInt(5), ExpiresAt: nextYear, Active: false, CreatedAt: now},
	}
}
