package handler

import (
	"context"
	"net/http"

	"github.com/boddenberg/fintrack-go/internal/domain"
	"github.com/boddenberg/fintrack-go/internal/infra/observability"
	"github.com/boddenberg/fintrack-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Services bundles the use cases the API exposes.
type Services struct {
	Categories   *service.CategoryService
	Transactions *service.TransactionService
	Dashboard    *service.DashboardService
}

// Pinger reports whether the storage backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, store Pinger, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(store, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API ---
	r.Route("/api", func(r chi.Router) {
		r.Get("/", rootHandler())
		r.Get("/metrics/app", appMetricsHandler(metrics))

		// Categories
		r.Get("/categories", listCategoriesHandler(svc.Categories, logger))
		r.Post("/categories", createCategoryHandler(svc.Categories, logger))
		r.Get("/categories/{id}", getCategoryHandler(svc.Categories, logger))
		r.Put("/categories/{id}", updateCategoryHandler(svc.Categories, logger))
		r.Delete("/categories/{id}", deleteCategoryHandler(svc.Categories, logger))

		// Transactions
		r.Get("/transactions", listTransactionsHandler(svc.Transactions, logger))
		r.Post("/transactions", createTransactionHandler(svc.Transactions, logger))
		r.Get("/transactions/monthly", monthlyHandler(svc.Dashboard, logger))
		r.Get("/transactions/{id}", getTransactionHandler(svc.Transactions, logger))
		r.Put("/transactions/{id}", updateTransactionHandler(svc.Transactions, logger))
		r.Delete("/transactions/{id}", deleteTransactionHandler(svc.Transactions, logger))

		// Dashboard
		r.Get("/dashboard", dashboardHandler(svc.Dashboard, logger))
	})

	return r
}

func rootHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.MessageResponse{Message: "Personal Finance Tracker API"})
	}
}

func appMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
