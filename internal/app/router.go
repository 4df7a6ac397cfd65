package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/gescom-app/gescom/internal/analytics"
	"github.com/gescom-app/gescom/internal/auth"
	"github.com/gescom-app/gescom/internal/billing"
	"github.com/gescom-app/gescom/internal/crm/clients"
	"github.com/gescom-app/gescom/internal/crm/prospects"
	"github.com/gescom-app/gescom/internal/expenses"
	"github.com/gescom-app/gescom/internal/invoicing"
	"github.com/gescom-app/gescom/internal/observability"
	"github.com/gescom-app/gescom/internal/quotes"
	"github.com/gescom-app/gescom/internal/shared"
	"github.com/gescom-app/gescom/internal/users"
	"github.com/gescom-app/gescom/jobs"
)

// analyticsCacheTTL bounds staleness between version bumps.
const analyticsCacheTTL = 5 * time.Minute

// RouterParams collects the dependencies the HTTP surface needs.
type RouterParams struct {
	Logger   *slog.Logger
	Config   *Config
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Sessions *shared.SessionManager
	// Jobs may be nil when background processing is disabled.
	Jobs *jobs.Client
}

// NewRouter wires repositories, services and handlers into the API
// router.
func NewRouter(p RouterParams) chi.Router {
	r := chi.NewRouter()
	metrics := observability.NewMetrics()
	r.Use(metrics.Middleware)
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         p.Logger,
		Config:         p.Config,
		SessionManager: p.Sessions,
	}) {
		r.Use(mw)
	}

	authService := auth.NewService(auth.NewRepository(p.Pool))
	authHandler := auth.NewHandler(p.Logger, authService, p.Sessions)

	clientService := clients.NewService(clients.NewRepository(p.Pool))
	clientHandler := clients.NewHandler(p.Logger, clientService)

	var geocoder prospects.GeocodeEnqueuer
	if p.Jobs != nil {
		geocoder = p.Jobs
	}
	prospectService := prospects.NewService(prospects.NewRepository(p.Pool), clientService, geocoder, p.Logger)
	prospectHandler := prospects.NewHandler(p.Logger, prospectService)

	billingService := billing.NewService(billing.NewRepository(p.Pool))
	billingHandler := billing.NewHandler(p.Logger, billingService)

	analyticsService := analytics.NewService(
		analytics.NewRepository(p.Pool),
		analytics.NewCache(p.Redis, analyticsCacheTTL),
	)
	analyticsHandler := analytics.NewHandler(p.Logger, analyticsService)

	invoiceService := invoicing.NewService(invoicing.NewRepository(p.Pool), clientService)
	invoiceService.OnMutation(analyticsService.Invalidate)
	invoiceHandler := invoicing.NewHandler(p.Logger, invoiceService, shared.NewIdempotencyStore(p.Pool))

	quoteService := quotes.NewService(quotes.NewRepository(p.Pool), clientService, invoiceService)
	quoteHandler := quotes.NewHandler(p.Logger, quoteService)

	expenseService := expenses.NewService(expenses.NewRepository(p.Pool))
	var receiptEnqueuer expenses.ReceiptEnqueuer
	if p.Jobs != nil {
		jobsClient := p.Jobs
		receiptEnqueuer = func(ctx context.Context, receiptRef, text string, uploadedBy int64) error {
			return jobsClient.EnqueueReceiptParse(ctx, jobs.ReceiptParsePayload{
				ReceiptRef: receiptRef,
				Text:       text,
				UploadedBy: uploadedBy,
			})
		}
	}
	expenseHandler := expenses.NewHandler(p.Logger, expenseService, receiptEnqueuer)

	userService := users.NewService(users.NewRepository(p.Pool))
	userHandler := users.NewHandler(p.Logger, userService)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		authHandler.MountRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)
			prospectHandler.MountRoutes(r)
			clientHandler.MountRoutes(r)
			billingHandler.MountRoutes(r)
			invoiceHandler.MountRoutes(r)
			quoteHandler.MountRoutes(r)
			expenseHandler.MountRoutes(r)
			analyticsHandler.MountRoutes(r)
			userHandler.MountRoutes(r)
		})
	})
	return r
}
