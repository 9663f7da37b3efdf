package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/omni-orders/internal/domain/coupon"
	"github.com/xenking/omni-orders/internal/domain/order"
	"github.com/xenking/omni-orders/internal/domain/pricing"
	"github.com/xenking/omni-orders/internal/domain/product"
	"github.com/xenking/omni-orders/internal/events"
	"github.com/xenking/omni-orders/internal/handler"
	"github.com/xenking/omni-orders/internal/storage/postgres"
	"github.com/xenking/omni-orders/internal/storage/redis"
	"github.com/xenking/omni-orders/pkg/health"
	"github.com/xenking/omni-orders/pkg/httpmiddleware"
)

// Run creates all dependencies, serves HTTP and relays order events until
// ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	if err := postgres.RunMigrations(cfg.DatabaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	healthSvc := health.New()
	healthSvc.AddReadiness(health.Check{Name: "postgres", Timeout: 5 * time.Second, Func: health.PingCheck(pool)})
	healthSvc.AddLiveness(health.Check{Name: "goroutines", Timeout: time.Second, Func: health.GoroutineCountCheck(10000)})

	productRepo := postgres.NewProductRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	// Order import reads products through the cache when Redis is configured.
	var orderProducts product.Repository = productRepo
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()

		healthSvc.AddReadiness(health.Check{Name: "redis", Timeout: 2 * time.Second, Func: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		orderProducts = product.NewCachedRepository(productRepo, redis.NewProductCache(rdb, cfg.Redis.ProductTTL))
		lg.Info("Product cache enabled", zap.String("redis", cfg.Redis.Addr))
	}

	orderOpts := []order.Option{
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	}
	var relay *events.Relay
	if len(cfg.Kafka.Brokers) > 0 {
		outbox := postgres.NewOutbox(pool, cfg.Kafka.Lease)
		pub := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:         cfg.Kafka.Brokers,
			Topic:           cfg.Kafka.Topic,
			AutoCreateTopic: cfg.Kafka.AutoCreate,
		})
		defer func() {
			if err := pub.Close(); err != nil {
				lg.Warn("Close kafka publisher", zap.Error(err))
			}
		}()
		relay = events.NewRelay(outbox, pub, events.RelayConfig{
			PollInterval: cfg.Kafka.PollInterval,
			BatchSize:    cfg.Kafka.BatchSize,
		})
		orderOpts = append(orderOpts, order.WithEvents(outbox))
		lg.Info("Order events enabled", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	engine := pricing.NewEngine(coupon.NewResolver(couponRepo))
	orderSvc, err := order.NewService(orderProducts, engine, orderRepo, postgres.NewTxManager(pool), orderOpts...)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	h := handler.New(product.NewService(productRepo), coupon.NewService(couponRepo), orderSvc)

	router := chi.NewRouter()
	router.NotFound(handler.NotFound)
	router.MethodNotAllowed(handler.MethodNotAllowed)
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	h.Mount(router, httpmiddleware.StaticToken(cfg.APIToken))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", "api_key"},
				ExposeHeaders:    []string{httpmiddleware.HeaderRequestID},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.RequestID(),
			httpmiddleware.RouteContext(),
			httpmiddleware.Instrument("omni-orders", m),
			httpmiddleware.LogRequests(),
		),
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	g, gctx := errgroup.WithContext(ctx)
	if relay != nil {
		g.Go(func() error {
			return relay.Run(zctx.Base(gctx, lg))
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}
