package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/bookstore-checkout/internal/domain/cart"
	"github.com/xenking/bookstore-checkout/internal/domain/order"
	"github.com/xenking/bookstore-checkout/internal/handler"
	"github.com/xenking/bookstore-checkout/pkg/health"
	"github.com/xenking/bookstore-checkout/pkg/httpmiddleware"
	"github.com/xenking/bookstore-checkout/pkg/keylock"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application. m is usually
// the *app.Telemetry of go-faster/sdk.
func Run(ctx context.Context, lg *zap.Logger, m httpmiddleware.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
	)

	stores, err := OpenStores(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer stores.Close()

	healthSvc := health.New()
	healthSvc.Register(health.Readiness, cfg.Storage.Driver, stores.Ping)
	healthSvc.Register(health.Liveness, "goroutines", health.GoroutineCountCheck(10000),
		health.WithTimeout(time.Second),
	)

	// Checkout lock: Redis when configured, otherwise in-process.
	var locker keylock.Locker = keylock.NewLocal(cfg.Checkout.LockWait)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		healthSvc.Register(health.Readiness, "redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		locker = keylock.NewRedis(rdb, keylock.RedisConfig{
			Prefix: "bookstore:checkout:",
			TTL:    cfg.Checkout.LockTTL,
			Wait:   cfg.Checkout.LockWait,
		})
		lg.Info("Using distributed checkout lock", zap.String("redis", cfg.Redis.Addr))
	}

	// Domain services.
	resolver := cart.NewResolver(stores.Lines, stores.Books)
	cartService := cart.NewService(stores.Lines, stores.Books)
	orderService, err := order.NewService(order.Deps{
		Cart:     resolver,
		Lines:    stores.Lines,
		Orders:   stores.Orders,
		Payments: stores.Payments,
		Tx:       stores.Tx,
		Locker:   locker,
	},
		order.WithTracerProvider(m.TracerProvider()),
		order.WithMeterProvider(m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	// HTTP.
	limiter := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Max:     cfg.RateLimit.Max,
		Window:  cfg.RateLimit.Window,
		KeyFunc: handler.UserKey,
	})
	h := handler.NewHandler(orderService, cartService)
	router := h.Router(handler.RouterConfig{
		Security:        handler.NewSecurityHandler(stores.Users, []byte(cfg.Auth.JWTSecret)),
		Health:          healthSvc,
		Telemetry:       m,
		CheckoutLimiter: limiter,
	})

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
		),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return healthSvc.Run(gctx, 10*time.Second)
	})
	g.Go(func() error {
		return limiter.Run(gctx)
	})
	g.Go(func() error {
		// Graceful shutdown: wait for cancellation, drain, then stop.
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})
	g.Go(func() error {
		healthSvc.SetReady(true)
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}
