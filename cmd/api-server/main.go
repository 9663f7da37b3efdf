// Command api-server serves the order import API.
package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/xenking/omni-orders/internal/app"
)

func main() {
	app.Run(run)
}

func run(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
	cfg, err := appkg.LoadConfig()
	if err != nil {
		return errors.Wrap(err, "config")
	}
	lg.Info("Configuration loaded",
		zap.Bool("product_cache", cfg.Redis.Addr != ""),
		zap.Bool("order_events", len(cfg.Kafka.Brokers) > 0),
	)
	return appkg.Run(ctx, lg, m, cfg)
}
