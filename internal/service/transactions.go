package service

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/fintrack-go/internal/domain"
	"github.com/boddenberg/fintrack-go/internal/infra/observability"
	"github.com/boddenberg/fintrack-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Paging limits for GET /transactions.
const (
	DefaultPageLimit = 100
	MaxPageLimit     = 500
)

// TransactionService manages transactions.
type TransactionService struct {
	store     port.Store
	dashboard *DashboardCache
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       Clock

	// strictTypes rejects a transaction whose type differs from its
	// category's type instead of only logging it.
	strictTypes bool
}

// TransactionOptions configure a TransactionService.
type TransactionOptions struct {
	StrictCategoryTypes bool
	Clock               Clock
}

// NewTransactionService creates the transaction service.
func NewTransactionService(store port.Store, dashboard *DashboardCache, metrics *observability.Metrics, logger *zap.Logger, opts TransactionOptions) *TransactionService {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &TransactionService{
		store:       store,
		dashboard:   dashboard,
		metrics:     metrics,
		logger:      logger,
		now:         opts.Clock,
		strictTypes: opts.StrictCategoryTypes,
	}
}

// List returns a page of transactions, newest first. A zero limit means
// DefaultPageLimit.
func (s *TransactionService) List(ctx context.Context, skip, limit int) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "TransactionService.List")
	defer span.End()
	span.SetAttributes(attribute.Int("page.skip", skip), attribute.Int("page.limit", limit))

	switch {
	case skip < 0:
		return nil, &domain.ErrValidation{Field: "skip", Message: "must not be negative"}
	case limit < 0:
		return nil, &domain.ErrValidation{Field: "limit", Message: "must not be negative"}
	case limit > MaxPageLimit:
		return nil, &domain.ErrValidation{Field: "limit", Message: "must be at most 500"}
	case limit == 0:
		limit = DefaultPageLimit
	}

	txs, err := s.store.ListTransactions(ctx, domain.TransactionFilter{Skip: skip, Limit: limit})
	if err != nil {
		return nil, storeFailure(s.metrics, span, "list_transactions", err)
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return txs, nil
}

func (s *TransactionService) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "TransactionService.Get")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	t, err := s.store.GetTransaction(ctx, id)
	return t, storeFailure(s.metrics, span, "get_transaction", err)
}

// Create validates in, checks its category and stores a new transaction.
func (s *TransactionService) Create(ctx context.Context, in domain.TransactionInput) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "TransactionService.Create")
	defer span.End()

	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, in); err != nil {
		return nil, storeFailure(s.metrics, span, "get_category", err)
	}

	now := s.now().UTC()
	t := &domain.Transaction{
		ID:          uuid.NewString(),
		Type:        in.Type,
		Amount:      in.Amount,
		CategoryID:  in.CategoryID,
		Description: in.Description,
		Date:        in.Date,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateTransaction(ctx, t); err != nil {
		return nil, storeFailure(s.metrics, span, "create_transaction", err)
	}
	s.dashboard.Invalidate()
	s.metrics.IncrTransactionCreated(t.Type)

	s.logger.Info("transaction created",
		zap.String("transaction_id", t.ID),
		zap.String("type", string(t.Type)),
		zap.String("amount", t.Amount.String()),
		zap.String("category_id", t.CategoryID),
	)
	return t, nil
}

// Update replaces every field of an existing transaction.
func (s *TransactionService) Update(ctx context.Context, id string, in domain.TransactionInput) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "TransactionService.Update")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, storeFailure(s.metrics, span, "get_transaction", err)
	}
	if err := s.checkCategory(ctx, in); err != nil {
		return nil, storeFailure(s.metrics, span, "get_category", err)
	}

	t.Type = in.Type
	t.Amount = in.Amount
	t.CategoryID = in.CategoryID
	t.Description = in.Description
	t.Date = in.Date
	t.UpdatedAt = s.now().UTC()

	if err := s.store.UpdateTransaction(ctx, t); err != nil {
		return nil, storeFailure(s.metrics, span, "update_transaction", err)
	}
	s.dashboard.Invalidate()
	return t, nil
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "TransactionService.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return storeFailure(s.metrics, span, "delete_transaction", err)
	}
	s.dashboard.Invalidate()
	return nil
}

// checkCategory verifies the referenced category exists and compares types.
func (s *TransactionService) checkCategory(ctx context.Context, in domain.TransactionInput) error {
	c, err := s.store.GetCategory(ctx, in.CategoryID)
	var notFound *domain.ErrNotFound
	if errors.As(err, &notFound) {
		return &domain.ErrValidation{Field: "category_id", Message: "category " + in.CategoryID + " does not exist"}
	}
	if err != nil {
		return err
	}

	if c.Type != in.Type {
		if s.strictTypes {
			return &domain.ErrValidation{Field: "type", Message: "must match the category type '" + string(c.Type) + "'"}
		}
		s.metrics.IncrTypeMismatch()
		s.logger.Warn("transaction type differs from category type",
			zap.String("category_id", c.ID),
			zap.String("category_type", string(c.Type)),
			zap.String("transaction_type", string(in.Type)),
		)
	}
	return nil
}

// windowStart is the first day of a window of days ending today. Zero days
// means no window.
func windowStart(now time.Time, days int) domain.Date {
	if days <= 0 {
		return domain.Date{}
	}
	return domain.DateOf(now.UTC().AddDate(0, 0, -days))
}
