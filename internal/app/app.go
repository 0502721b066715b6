// Package app wires the storefront API server from configuration.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/timelesslk/storefront/internal/auth"
	"github.com/timelesslk/storefront/internal/domain/coupon"
	"github.com/timelesslk/storefront/internal/domain/order"
	"github.com/timelesslk/storefront/internal/domain/product"
	"github.com/timelesslk/storefront/internal/handler"
	"github.com/timelesslk/storefront/internal/notify"
	"github.com/timelesslk/storefront/internal/storage/cache"
	"github.com/timelesslk/storefront/pkg/health"
	"github.com/timelesslk/storefront/pkg/httpmiddleware"
)

// Telemetry provides the OpenTelemetry providers. *app.Telemetry of
// go-faster/sdk implements it.
type Telemetry = httpmiddleware.Telemetry

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("images", cfg.Images.Backend),
	)

	store, err := OpenStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	healthSvc := health.New(lg.Named("health"))
	healthSvc.Add(health.Check{Name: "goroutines", Kind: health.Liveness, Timeout: time.Second, Func: health.Goroutines(10000)})
	if store.Ping != nil {
		healthSvc.Add(health.Check{Name: cfg.Storage.Backend, Kind: health.Readiness, Func: store.Ping})
	}

	// Catalog reads go through Redis when configured.
	var products cache.Backend = store.Products
	if rdb := newRedis(cfg.Redis); rdb != nil {
		defer func() { _ = rdb.Close() }()
		products = cache.NewProducts(products, rdb, cfg.Redis.TTL)
		healthSvc.Add(health.Check{Name: "redis", Kind: health.Readiness, Func: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	images, uploadsDir, err := newImages(ctx, cfg)
	if err != nil {
		return err
	}

	authn, err := auth.New(auth.Config{
		User:   cfg.Admin.User,
		Pass:   cfg.Admin.Pass,
		Secret: cfg.Admin.JWTSecret,
		TTL:    cfg.Admin.TokenTTL,
	})
	if err != nil {
		return errors.Wrap(err, "admin auth")
	}

	format := notify.Formatter{Currency: cfg.Currency}
	sinks, closers, err := newSinks(lg, cfg.Notify, format)
	if err != nil {
		return err
	}
	queue := notify.NewQueue(lg.Named("notify"), notify.QueueConfig{
		Size:         cfg.Notify.QueueSize,
		Workers:      cfg.Notify.Workers,
		Attempts:     cfg.Notify.Attempts,
		Timeout:      cfg.Notify.Timeout,
		DrainTimeout: cfg.Notify.DrainTimeout,
	}, sinks, notify.WithMeterProvider(m.MeterProvider()))

	orderService, err := order.NewService(products, products, coupon.DefaultRegistry(), store.Orders,
		order.WithSettings(store.Settings),
		order.WithNotifier(queue),
		order.WithReserveAttempts(cfg.Orders.ReserveAttempts),
		order.WithTelemetry(m.TracerProvider(), m.MeterProvider()),
	)
	if err != nil {
		return errors.Wrap(err, "order service")
	}

	h := handler.New(handler.Deps{
		Catalog:  product.NewCatalog(products, images),
		Orders:   orderService,
		Settings: store.Settings,
		Images:   images,
		Auth:     authn,
		Format:   format,
		WhatsApp: cfg.WhatsApp,
	})

	rl := cfg.RateLimit
	limiters := []*httpmiddleware.Limiter{
		httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{Name: "api", Max: rl.APIMax, Window: rl.APIWindow}),
		httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{Name: "order", Max: rl.OrderMax, Window: rl.OrderWindow, Message: "too many orders, try again later"}),
		httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{Name: "login", Max: rl.LoginMax, Window: rl.LoginWindow, Message: "too many login attempts, try again later"}),
		httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{Name: "admin", Max: rl.AdminMax, Window: rl.AdminWindow}),
	}
	opts := handler.RouterOptions{
		Limits: handler.Limits{
			API:   limiters[0].Middleware(),
			Order: limiters[1].Middleware(),
			Login: limiters[2].Middleware(),
			Admin: limiters[3].Middleware(),
		},
		JSONLimit: cfg.Orders.JSONLimit,
	}
	if uploadsDir != "" {
		opts.Uploads = http.FileServer(http.Dir(uploadsDir))
	}

	router := h.Router(opts)
	router.Get("/livez", healthSvc.Live)
	router.Get("/readyz", healthSvc.Readyz)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.SecurityHeaders(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				Origins:     cfg.CORS.Origins,
				Headers:     []string{"Content-Type", "Authorization", httpmiddleware.HeaderRequestID},
				Credentials: cfg.CORS.AllowCredentials,
				MaxAge:      86400,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("timeless-api", m),
			httpmiddleware.LogRequests(),
		),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := queue.Run(gctx)
		for _, c := range closers {
			if cerr := c(); cerr != nil {
				lg.Warn("Close notification sink", zap.Error(cerr))
			}
		}
		return err
	})
	g.Go(func() error { return healthSvc.Run(gctx, 10*time.Second) })
	for _, l := range limiters {
		g.Go(func() error { return l.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Graceful.ShutdownTimeout)
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
