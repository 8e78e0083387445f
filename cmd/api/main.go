package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mianhamzaathar/AIFORGE/api/routes"
	"github.com/mianhamzaathar/AIFORGE/internal/accounts"
	"github.com/mianhamzaathar/AIFORGE/internal/checkout"
	"github.com/mianhamzaathar/AIFORGE/internal/generation"
	"github.com/mianhamzaathar/AIFORGE/internal/ledger"
	"github.com/mianhamzaathar/AIFORGE/internal/plans"
	stripewebhook "github.com/mianhamzaathar/AIFORGE/internal/webhooks/stripe"
	"github.com/mianhamzaathar/AIFORGE/pkg/config"
	"github.com/mianhamzaathar/AIFORGE/pkg/db"
	"github.com/mianhamzaathar/AIFORGE/pkg/env"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
	"github.com/mianhamzaathar/AIFORGE/pkg/metrics"
	"github.com/mianhamzaathar/AIFORGE/pkg/migrate"
	"github.com/mianhamzaathar/AIFORGE/pkg/outbox"
	"github.com/mianhamzaathar/AIFORGE/pkg/redis"
	pkgstripe "github.com/mianhamzaathar/AIFORGE/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.NewHTTPMetrics(registry)

	costs, err := ledger.CostTableFromConfig(cfg.TokenCosts)
	if err != nil {
		logg.Error(context.Background(), "invalid token costs", err)
		os.Exit(1)
	}

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:    ledger.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Costs:   costs,
		Outbox:  outboxSvc,
		Metrics: metrics.NewLedgerMetrics(registry),
		Logger:  logg,
		Retry: ledger.RetryPolicy{
			Attempts:  cfg.Ledger.RetryAttempts,
			BaseDelay: cfg.Ledger.RetryBaseDelay,
		},
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	accountSvc, err := accounts.NewService(accounts.ServiceParams{
		DB:        dbClient,
		Ledger:    ledgerSvc,
		Outbox:    outboxSvc,
		Logger:    logg,
		SeedGrant: cfg.Ledger.SeedGrant,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create account service", err)
		os.Exit(1)
	}

	planSvc, err := plans.NewService(plans.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create plan service", err)
		os.Exit(1)
	}

	services := routes.Services{
		Accounts: accountSvc,
		Ledger:   ledgerSvc,
		Plans:    planSvc,
	}

	if cfg.Generation.Endpoint != "" {
		generator, err := generation.NewHTTPGenerator(cfg.Generation.Endpoint, cfg.Generation.APIKey, generation.WithTimeout(cfg.Generation.Timeout))
		if err != nil {
			logg.Error(context.Background(), "failed to create generator", err)
			os.Exit(1)
		}
		generationSvc, err := generation.NewService(ledgerSvc, generator, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create generation service", err)
			os.Exit(1)
		}
		services.Generation = generationSvc
	} else {
		logg.Warn(context.Background(), "generation endpoint not configured; service calls are disabled")
	}

	if cfg.Stripe.APIKey != "" {
		stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create stripe client", err)
			os.Exit(1)
		}
		checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
			Plans:  planSvc,
			Stripe: checkout.NewSessionClient(stripeClient),
			Config: cfg.Stripe,
			Logger: logg,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create checkout service", err)
			os.Exit(1)
		}
		webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
			Ledger:   ledgerSvc,
			Accounts: accountSvc,
			Logger:   logg,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create stripe webhook service", err)
			os.Exit(1)
		}
		guard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.IdempotencyTTL, "stripe-webhook")
		if err != nil {
			logg.Error(context.Background(), "failed to create stripe webhook guard", err)
			os.Exit(1)
		}
		services.Checkout = checkoutSvc
		services.StripeWebhook = webhookSvc
		services.StripeEvents = stripeClient
		services.WebhookGuard = guard
	} else {
		logg.Warn(context.Background(), "stripe not configured; checkout and webhooks are disabled")
	}

	// PORT is injected by the hosting platform and wins over config.
	addr := ":" + env.String("PORT", cfg.App.Port)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisClient, services, httpMetrics, registry),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
