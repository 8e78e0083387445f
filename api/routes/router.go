package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stripe/stripe-go/v84"

	"github.com/mianhamzaathar/AIFORGE/api/controllers"
	webhookcontrollers "github.com/mianhamzaathar/AIFORGE/api/controllers/webhooks"
	"github.com/mianhamzaathar/AIFORGE/api/middleware"
	"github.com/mianhamzaathar/AIFORGE/internal/checkout"
	"github.com/mianhamzaathar/AIFORGE/internal/generation"
	"github.com/mianhamzaathar/AIFORGE/internal/ledger"
	"github.com/mianhamzaathar/AIFORGE/pkg/config"
	"github.com/mianhamzaathar/AIFORGE/pkg/db"
	"github.com/mianhamzaathar/AIFORGE/pkg/logger"
	"github.com/mianhamzaathar/AIFORGE/pkg/metrics"
	pkgredis "github.com/mianhamzaathar/AIFORGE/pkg/redis"
)

// Store is the redis surface used by the router: readiness, idempotent
// replays and rate limits. *redis.Client satisfies it.
type Store interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Ping(ctx context.Context) error
}

// StripeVerifier checks Stripe-Signature headers; *stripe.Client satisfies it.
type StripeVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

// WebhookGuard deduplicates delivered webhook events.
type WebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// Services groups the domain services exposed over HTTP. Nil members make
// their routes answer 500 "unavailable".
type Services struct {
	Accounts      controllers.AccountService
	Ledger        ledger.Service
	Generation    generation.Service
	Plans         controllers.PlanCatalog
	Checkout      checkout.Service
	StripeWebhook webhookcontrollers.StripeWebhookService
	StripeEvents  StripeVerifier
	WebhookGuard  WebhookGuard
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	store Store,
	svcs Services,
	httpMetrics *metrics.HTTPMetrics,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(httpMetrics),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	readiness := []controllers.Dependency{{Name: "database", Pinger: dbP}}
	if store != nil {
		readiness = append(readiness, controllers.Dependency{Name: "redis", Pinger: store})
	}

	registerPolicy := middleware.NewRegisterRateLimitPolicy(
		cfg.RateLimit.RegisterWindow,
		cfg.RateLimit.RegisterIPLimit,
		cfg.RateLimit.RegisterEmailLimit,
	)
	servicePolicy := middleware.NewAccountRateLimitPolicy(
		"services",
		cfg.RateLimit.Window,
		cfg.RateLimit.ServiceCalls,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness...))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Post("/api/v1/webhooks/stripe", webhookcontrollers.StripeWebhook(svcs.StripeWebhook, svcs.StripeEvents, svcs.WebhookGuard, logg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/services/prices", controllers.ServicePrices(svcs.Ledger, logg))

		r.With(
			middleware.RateLimit(registerPolicy, store, logg),
			middleware.Idempotency(store, logg),
		).Post("/accounts", controllers.AccountRegister(svcs.Accounts, cfg.JWT, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(store, logg))

			r.Get("/account/dashboard", controllers.AccountDashboard(svcs.Accounts, logg))
			r.Get("/plans", controllers.PlansList(svcs.Plans, logg))

			r.Route("/ledger", func(r chi.Router) {
				r.Get("/balance", controllers.LedgerBalance(svcs.Accounts, logg))
				r.Get("/history", controllers.LedgerHistory(svcs.Ledger, logg))
				r.Get("/usage", controllers.LedgerUsage(svcs.Ledger, logg))
				r.Get("/reconcile", controllers.LedgerReconcile(svcs.Ledger, logg))
			})

			r.With(middleware.RateLimit(servicePolicy, store, logg)).
				Post("/services/{operation}", controllers.ServiceCall(svcs.Generation, logg))

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/tokens", controllers.CheckoutTokens(svcs.Checkout, logg))
				r.Post("/plans", controllers.CheckoutPlans(svcs.Checkout, logg))
			})
		})
	})

	return r
}
