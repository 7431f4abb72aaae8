package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/fintrack-go/internal/aggregate"
	"github.com/boddenberg/fintrack-go/internal/color"
	"github.com/boddenberg/fintrack-go/internal/config"
	"github.com/boddenberg/fintrack-go/internal/domain"
	"github.com/boddenberg/fintrack-go/internal/handler"
	"github.com/boddenberg/fintrack-go/internal/infra/cache"
	"github.com/boddenberg/fintrack-go/internal/infra/memory"
	"github.com/boddenberg/fintrack-go/internal/infra/observability"
	"github.com/boddenberg/fintrack-go/internal/infra/postgres"
	"github.com/boddenberg/fintrack-go/internal/infra/sqlite"
	"github.com/boddenberg/fintrack-go/internal/port"
	"github.com/boddenberg/fintrack-go/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a.cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("data_backend", cfg.DataBackend),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
		zap.Int("recent_limit", cfg.RecentLimit),
		zap.Int("monthly_window_days", cfg.MonthlyWindowDays),
		zap.Bool("strict_category_types", cfg.StrictCategoryTypes),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "fintrack")
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store ---
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// --- Cache ---
	dashboardCache := cache.New[*domain.DashboardSummary](cfg.CacheTTL)
	defer dashboardCache.Close()

	// --- Server ---
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      newHandler(cfg, store, dashboardCache, metrics, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// newHandler wires the services over store and returns the API router.
func newHandler(cfg *config.Config, store port.Store, c port.Cache[*domain.DashboardSummary], metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	dashboard := service.NewDashboardCache(c)
	svc := handler.Services{
		Categories: service.NewCategoryService(store, dashboard, color.Default(), metrics, logger, time.Now),
		Transactions: service.NewTransactionService(store, dashboard, metrics, logger, service.TransactionOptions{
			StrictCategoryTypes: cfg.StrictCategoryTypes,
		}),
		Dashboard: service.NewDashboardService(store, aggregate.New(logger), dashboard, metrics, logger, service.DashboardOptions{
			RecentLimit:       cfg.RecentLimit,
			MonthlyWindowDays: cfg.MonthlyWindowDays,
			MaxConcurrency:    cfg.MaxConcurrency,
		}),
	}
	return handler.NewRouter(svc, store, metrics, logger)
}

// openStore selects the storage backend named by DATA_BACKEND.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (port.Store, error) {
	switch cfg.DataBackend {
	case config.BackendSQLite:
		logger.Info("using SQLite as data backend", zap.String("path", cfg.SQLitePath))
		return sqlite.Open(cfg.SQLitePath, logger)
	case config.BackendPostgres:
		logger.Info("using PostgreSQL as data backend")
		return postgres.New(ctx, postgres.Config{
			URL:         cfg.DatabaseURL,
			MaxPoolSize: cfg.PostgresPool,
		}, logger)
	default:
		logger.Warn("using in-memory data backend, data is lost on exit")
		return memory.New(), nil
	}
}
