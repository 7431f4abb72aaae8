// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service layer
// from the concrete storage backends and caches.
package port

import (
	"context"

	"github.com/boddenberg/fintrack-go/internal/domain"
)

// CategoryStore persists categories. Lookups of unknown ids return
// *domain.ErrNotFound; a name collision returns *domain.ErrDuplicate.
type CategoryStore interface {
	// ListCategories returns every category ordered by name.
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	FindCategoryByName(ctx context.Context, name string) (*domain.Category, error)
	CreateCategory(ctx context.Context, c *domain.Category) error
	UpdateCategory(ctx context.Context, c *domain.Category) error
	DeleteCategory(ctx context.Context, id string) error
	// CountTransactionsByCategory reports how many transactions reference id.
	CountTransactionsByCategory(ctx context.Context, id string) (int, error)
}

// TransactionStore persists transactions.
type TransactionStore interface {
	// ListTransactions returns transactions ordered by date descending, most
	// recently stored first on equal dates.
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	CreateTransaction(ctx context.Context, t *domain.Transaction) error
	UpdateTransaction(ctx context.Context, t *domain.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
}

// Store is a complete storage backend.
type Store interface {
	CategoryStore
	TransactionStore
	Ping(ctx context.Context) error
	Close() error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Flush()
}
