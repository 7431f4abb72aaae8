package service

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/fintrack-go/internal/color"
	"github.com/boddenberg/fintrack-go/internal/domain"
	"github.com/boddenberg/fintrack-go/internal/infra/observability"
	"github.com/boddenberg/fintrack-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CategoryService manages categories.
type CategoryService struct {
	store     port.Store
	dashboard *DashboardCache
	colors    *color.Generator
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       Clock
}

// NewCategoryService creates the category service. colors assigns a color
// to categories created without one.
func NewCategoryService(store port.Store, dashboard *DashboardCache, colors *color.Generator, metrics *observability.Metrics, logger *zap.Logger, now Clock) *CategoryService {
	if colors == nil {
		colors = color.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &CategoryService{store: store, dashboard: dashboard, colors: colors, metrics: metrics, logger: logger, now: now}
}

// List returns every category ordered by name.
func (s *CategoryService) List(ctx context.Context) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "CategoryService.List")
	defer span.End()

	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, storeFailure(s.metrics, span, "list_categories", err)
	}
	if cats == nil {
		cats = []domain.Category{}
	}
	return cats, nil
}

func (s *CategoryService) Get(ctx context.Context, id string) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "CategoryService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", id))

	c, err := s.store.GetCategory(ctx, id)
	return c, storeFailure(s.metrics, span, "get_category", err)
}

// Create validates in and stores a new category.
func (s *CategoryService) Create(ctx context.Context, in domain.CategoryInput) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "CategoryService.Create")
	defer span.End()

	in.Normalize()
	if err := in.Validate(true); err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, in.Name, ""); err != nil {
		return nil, err
	}
	if in.Color == "" {
		in.Color = s.colors.Next()
	}

	now := s.now().UTC()
	c := &domain.Category{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Type:      in.Type,
		Color:     in.Color,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, storeFailure(s.metrics, span, "create_category", err)
	}
	s.dashboard.Invalidate()

	s.logger.Info("category created",
		zap.String("category_id", c.ID),
		zap.String("name", c.Name),
		zap.String("type", string(c.Type)),
	)
	return c, nil
}

// Update replaces name, type and color. An empty color keeps the current one.
func (s *CategoryService) Update(ctx context.Context, id string, in domain.CategoryInput) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "CategoryService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", id))

	in.Normalize()
	if err := in.Validate(true); err != nil {
		return nil, err
	}

	c, err := s.store.GetCategory(ctx, id)
	if err != nil {
		return nil, storeFailure(s.metrics, span, "get_category", err)
	}
	if err := s.ensureNameFree(ctx, in.Name, id); err != nil {
		return nil, err
	}
	c.Name = in.Name
	c.Type = in.Type
	if in.Color != "" {
		c.Color = in.Color
	}
	c.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateCategory(ctx, c); err != nil {
		return nil, storeFailure(s.metrics, span, "update_category", err)
	}
	s.dashboard.Invalidate()
	return c, nil
}

// ensureNameFree rejects name when another category already uses it,
// ignoring case. The store's unique constraint still guards concurrent writes.
func (s *CategoryService) ensureNameFree(ctx context.Context, name, selfID string) error {
	ctx, span := tracer.Start(ctx, "CategoryService.ensureNameFree")
	defer span.End()

	existing, err := s.store.FindCategoryByName(ctx, name)
	var notFound *domain.ErrNotFound
	switch {
	case errors.As(err, &notFound):
		return nil
	case err != nil:
		return storeFailure(s.metrics, span, "find_category", err)
	case existing.ID == selfID:
		return nil
	}
	s.logger.Debug("category name taken",
		zap.String("name", name),
		zap.String("category_id", existing.ID),
	)
	return domain.DuplicateCategoryName()
}

// Delete removes a category that no transaction references.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "CategoryService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", id))

	if _, err := s.store.GetCategory(ctx, id); err != nil {
		return storeFailure(s.metrics, span, "get_category", err)
	}
	n, err := s.store.CountTransactionsByCategory(ctx, id)
	if err != nil {
		return storeFailure(s.metrics, span, "count_transactions", err)
	}
	if n > 0 {
		return domain.CategoryInUse(n)
	}

	if err := s.store.DeleteCategory(ctx, id); err != nil {
		return storeFailure(s.metrics, span, "delete_category", err)
	}
	s.dashboard.Invalidate()

	s.logger.Info("category deleted", zap.String("category_id", id))
	return nil
}
