package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/fintrack-go/internal/aggregate"
	"github.com/boddenberg/fintrack-go/internal/domain"
	"github.com/boddenberg/fintrack-go/internal/infra/observability"
	"github.com/boddenberg/fintrack-go/internal/infra/resilience"
	"github.com/boddenberg/fintrack-go/internal/port"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DashboardOptions configure a DashboardService.
type DashboardOptions struct {
	RecentLimit       int
	MonthlyWindowDays int
	// MaxConcurrency bounds concurrent dashboard computations.
	MaxConcurrency int
	Clock          Clock
}

// DashboardService computes the dashboard from one snapshot of the store.
type DashboardService struct {
	store    port.Store
	engine   *aggregate.Engine
	cache    *DashboardCache
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger
	opts     DashboardOptions
}

// NewDashboardService creates the dashboard service.
func NewDashboardService(store port.Store, engine *aggregate.Engine, cache *DashboardCache, metrics *observability.Metrics, logger *zap.Logger, opts DashboardOptions) *DashboardService {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = aggregate.DefaultRecentLimit
	}
	return &DashboardService{
		store:    store,
		engine:   engine,
		cache:    cache,
		bulkhead: resilience.NewBulkhead(opts.MaxConcurrency),
		metrics:  metrics,
		logger:   logger,
		opts:     opts,
	}
}

// Summary returns totals, recent transactions, the monthly series and the
// category breakdown. Results are cached until the next write or the cache
// TTL, whichever comes first.
func (s *DashboardService) Summary(ctx context.Context) (*domain.DashboardSummary, error) {
	ctx, span := tracer.Start(ctx, "DashboardService.Summary")
	defer span.End()

	if cached, ok := s.cache.get(); ok {
		s.metrics.IncrCacheHit("dashboard")
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}
	s.metrics.IncrCacheMiss("dashboard")

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, &domain.ErrTimeout{Operation: "dashboard"}
	}
	defer s.bulkhead.Release()

	start := time.Now()
	defer func() {
		s.metrics.RecordDuration("dashboard", time.Since(start))
	}()

	gen := s.cache.generation()
	categories, txs, err := s.snapshot(ctx, domain.TransactionFilter{})
	if err != nil {
		return nil, err
	}

	summary := s.engine.Dashboard(txs, categories, aggregate.Options{
		RecentLimit: s.opts.RecentLimit,
		Since:       windowStart(s.opts.Clock(), s.opts.MonthlyWindowDays),
	})
	s.metrics.AddSkipped(summary.Skipped)
	span.SetAttributes(
		attribute.Int("dashboard.transactions", len(txs)),
		attribute.Int("dashboard.skipped", summary.Skipped),
	)

	s.cache.put(gen, &summary)
	return &summary, nil
}

// Monthly returns only the monthly series of the configured window.
func (s *DashboardService) Monthly(ctx context.Context) ([]domain.MonthlyBucket, error) {
	ctx, span := tracer.Start(ctx, "DashboardService.Monthly")
	defer span.End()

	since := windowStart(s.opts.Clock(), s.opts.MonthlyWindowDays)
	txs, err := s.store.ListTransactions(ctx, domain.TransactionFilter{Since: since})
	if err != nil {
		return nil, storeFailure(s.metrics, span, "list_transactions", err)
	}
	return s.engine.MonthlySeries(txs), nil
}

// snapshot loads categories and transactions concurrently. The first
// failure cancels the other read.
func (s *DashboardService) snapshot(ctx context.Context, filter domain.TransactionFilter) ([]domain.Category, []domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "DashboardService.snapshot")
	defer span.End()

	var (
		categories []domain.Category
		txs        []domain.Transaction
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		c, err := s.store.ListCategories(gCtx)
		if err != nil {
			s.logger.Error("failed to load categories", zap.Error(err))
			return fmt.Errorf("categories: %w", storeFailure(s.metrics, span, "list_categories", err))
		}
		categories = c
		return nil
	})

	g.Go(func() error {
		t, err := s.store.ListTransactions(gCtx, filter)
		if err != nil {
			s.logger.Error("failed to load transactions", zap.Error(err))
			return fmt.Errorf("transactions: %w", storeFailure(s.metrics, span, "list_transactions", err))
		}
		txs = t
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return categories, txs, nil
}
