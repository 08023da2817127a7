// Package app loads configuration and wires the engine into the facade
// server. It is the single wiring point of the binary.
package app

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-checkout/internal/domain/auth"
	"github.com/xenking/kart-checkout/internal/domain/cart"
	"github.com/xenking/kart-checkout/internal/domain/checkout"
	"github.com/xenking/kart-checkout/internal/domain/prefs"
	"github.com/xenking/kart-checkout/internal/gateway"
	"github.com/xenking/kart-checkout/internal/handler"
	"github.com/xenking/kart-checkout/pkg/health"
	"github.com/xenking/kart-checkout/pkg/httpmiddleware"
)

// Telemetry provides the otel providers. *app.Telemetry implements it.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

// service is the wired engine behind its HTTP handler.
type service struct {
	handler   http.Handler
	health    *health.Health
	carts     *cart.Store
	heartbeat *health.Heartbeat
	close     func()
}

// newService opens storage and wires the engine, the health checks and the
// middleware stack. Health checks are registered but not started.
func newService(ctx context.Context, lg *zap.Logger, tel Telemetry, cfg *Config) (_ *service, rerr error) {
	st, err := openStorage(ctx, lg, cfg.Storage)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr != nil {
			st.close()
		}
	}()

	remote, err := gateway.New(gateway.Config{
		BaseURL: cfg.Commerce.BaseURL,
		Timeout: cfg.Commerce.Timeout,
		Breaker: gateway.BreakerConfig{
			Failures:         cfg.Commerce.Breaker.Failures,
			OpenTimeout:      cfg.Commerce.Breaker.OpenTimeout,
			HalfOpenRequests: cfg.Commerce.Breaker.HalfOpenRequests,
		},
		Logger:         lg.Named("gateway"),
		TracerProvider: tel.TracerProvider(),
		MeterProvider:  tel.MeterProvider(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create commerce client")
	}

	tokens := auth.NewTokens(st.kv)
	carts := cart.NewStore(st.kv, remote, tokens)
	restored := carts.LoadPersisted(ctx)
	lg.Info("Cart restored", zap.Int("items", len(restored.Items)))

	opts := checkout.Options{
		TracerProvider: tel.TracerProvider(),
		MeterProvider:  tel.MeterProvider(),
	}
	deps := handler.Deps{
		Carts:  carts,
		Prefs:  prefs.NewStore(st.kv),
		Tokens: tokens,
	}
	if st.receipts != nil {
		opts.Receipts = st.receipts
		deps.Receipts = st.receipts
	}
	deps.Checkout, err = checkout.NewCoordinator(carts, remote, tokens, opts)
	if err != nil {
		return nil, errors.Wrap(err, "create checkout coordinator")
	}

	// Storage gates readiness. The commerce API only degrades it since the
	// cart keeps working offline.
	heartbeat := health.NewHeartbeat()
	healthSvc := health.New()
	if p, ok := st.pinger(); ok {
		healthSvc.Register(health.Readiness, "storage", health.PingCheck(p), health.WithTimeout(5*time.Second))
	}
	healthSvc.Register(health.Readiness, "commerce-api", remote.Available, health.Optional(), health.WithThresholds(1, 1))
	healthSvc.Register(health.Liveness, "goroutines", health.GoroutineCountCheck(10000))
	if cfg.Sync.Interval > 0 {
		healthSvc.Register(health.Liveness, "cart-sync", heartbeat.Check(3*cfg.Sync.Interval+cfg.Commerce.Timeout))
	}

	router := chi.NewRouter()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	router.Mount("/", handler.New(deps).Routes())

	mws := []httpmiddleware.Middleware{
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Recovery(),
	}
	if cors := (httpmiddleware.CORSConfig{Origins: cfg.CORS.Origins, MaxAge: cfg.CORS.MaxAge}); cors.Enabled() {
		mws = append(mws, httpmiddleware.CORS(cors))
	}
	mws = append(mws,
		httpmiddleware.Instrument("kart-checkout", tel.TracerProvider(), tel.MeterProvider()),
		httpmiddleware.LogRequests(),
	)

	return &service{
		handler:   httpmiddleware.Wrap(router, mws...),
		health:    healthSvc,
		carts:     carts,
		heartbeat: heartbeat,
		close:     st.close,
	}, nil
}

// Run creates all dependencies, serves the facade, runs the background cart
// sync and handles graceful shutdown.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("commerce", cfg.Commerce.BaseURL),
		zap.String("storage", cfg.Storage.Driver),
	)
	ctx = zctx.Base(ctx, lg)

	svc, err := newService(ctx, lg, m, cfg)
	if err != nil {
		return err
	}
	defer svc.close()

	svc.health.Start(ctx, 10*time.Second)
	svc.health.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Checkout steps chain several remote calls.
		WriteTimeout:   4*cfg.Commerce.Timeout + 5*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler:        svc.handler,
		// Requests keep the logger but not the shutdown signal, so draining
		// lets in-flight checkout steps finish.
		BaseContext: func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Sync.Interval > 0 {
		g.Go(func() error {
			return syncLoop(gctx, svc.carts, cfg.Sync.Interval, svc.heartbeat)
		})
	}

	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		svc.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		svc.health.Stop()
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
