// Package storetest holds the behaviour every port.Store backend must share.
// Each backend's tests call Run with a factory for a fresh, empty store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/fintrack-go/internal/domain"
	"github.com/boddenberg/fintrack-go/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run executes the shared store tests. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) port.Store) {
	t.Run("CategoriesOrderedByName", func(t *testing.T) { testCategoriesOrdered(t, newStore(t)) })
	t.Run("CategoryNotFound", func(t *testing.T) { testCategoryNotFound(t, newStore(t)) })
	t.Run("DuplicateCategoryName", func(t *testing.T) { testDuplicateName(t, newStore(t)) })
	t.Run("UpdateCategory", func(t *testing.T) { testUpdateCategory(t, newStore(t)) })
	t.Run("DeleteCategory", func(t *testing.T) { testDeleteCategory(t, newStore(t)) })
	t.Run("TransactionRoundTrip", func(t *testing.T) { testTransactionRoundTrip(t, newStore(t)) })
	t.Run("TransactionOrderingAndPaging", func(t *testing.T) { testTransactionOrdering(t, newStore(t)) })
	t.Run("TransactionSinceFilter", func(t *testing.T) { testSinceFilter(t, newStore(t)) })
	t.Run("UpdateAndDeleteTransaction", func(t *testing.T) { testUpdateDeleteTransaction(t, newStore(t)) })
	t.Run("CountTransactionsByCategory", func(t *testing.T) { testCountByCategory(t, newStore(t)) })
	t.Run("ReferentialIntegrity", func(t *testing.T) { testReferentialIntegrity(t, newStore(t)) })
}

var created = time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)

// NewCategory builds a category with a fresh id.
func NewCategory(name string, typ domain.TransactionType, color string) *domain.Category {
	return &domain.Category{
		ID:        uuid.NewString(),
		Name:      name,
		Type:      typ,
		Color:     color,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// NewTransaction builds a transaction with a fresh id.
func NewTransaction(typ domain.TransactionType, amount, categoryID string, date domain.Date) *domain.Transaction {
	return &domain.Transaction{
		ID:          uuid.NewString(),
		Type:        typ,
		Amount:      decimal.RequireFromString(amount),
		CategoryID:  categoryID,
		Description: "test " + amount,
		Date:        date,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func mustCreateCategory(t *testing.T, s port.Store, c *domain.Category) *domain.Category {
	t.Helper()
	require.NoError(t, s.CreateCategory(context.Background(), c))
	return c
}

func mustCreateTransaction(t *testing.T, s port.Store, tx *domain.Transaction) *domain.Transaction {
	t.Helper()
	require.NoError(t, s.CreateTransaction(context.Background(), tx))
	return tx
}

func testCategoriesOrdered(t *testing.T, s port.Store) {
	ctx := context.Background()
	mustCreateCategory(t, s, NewCategory("Utilities", domain.TypeExpense, "#F59E0B"))
	mustCreateCategory(t, s, NewCategory("Groceries", domain.TypeExpense, "#EF4444"))
	mustCreateCategory(t, s, NewCategory("Salary", domain.TypeIncome, "#10B981"))

	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 3)
	assert.Equal(t, "Groceries", cats[0].Name)
	assert.Equal(t, "Salary", cats[1].Name)
	assert.Equal(t, "Utilities", cats[2].Name)
	assert.Equal(t, domain.TypeIncome, cats[1].Type)
	assert.Equal(t, "#10B981", cats[1].Color)
}

func testCategoryNotFound(t *testing.T, s port.Store) {
	ctx := context.Background()
	_, err := s.GetCategory(ctx, uuid.NewString())
	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf), "got %v", err)

	_, err = s.FindCategoryByName(ctx, "missing")
	require.True(t, errors.As(err, &nf), "got %v", err)

	err = s.DeleteCategory(ctx, uuid.NewString())
	require.True(t, errors.As(err, &nf), "got %v", err)
}

func testDuplicateName(t *testing.T, s port.Store) {
	mustCreateCategory(t, s, NewCategory("Rent", domain.TypeExpense, "#111111"))

	err := s.CreateCategory(context.Background(), NewCategory("Rent", domain.TypeExpense, "#222222"))
	var dup *domain.ErrDuplicate
	require.True(t, errors.As(err, &dup), "got %v", err)
}

func testUpdateCategory(t *testing.T, s port.Store) {
	ctx := context.Background()
	food := mustCreateCategory(t, s, NewCategory("Food", domain.TypeExpense, "#EF4444"))
	mustCreateCategory(t, s, NewCategory("Rent", domain.TypeExpense, "#111111"))

	food.Name = "Dining"
	food.Color = "#000000"
	require.NoError(t, s.UpdateCategory(ctx, food))

	got, err := s.GetCategory(ctx, food.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dining", got.Name)
	assert.Equal(t, "#000000", got.Color)

	byName, err := s.FindCategoryByName(ctx, "Dining")
	require.NoError(t, err)
	assert.Equal(t, food.ID, byName.ID)

	food.Name = "Rent"
	err = s.UpdateCategory(ctx, food)
	var dup *domain.ErrDuplicate
	require.True(t, errors.As(err, &dup), "got %v", err)

	missing := NewCategory("Ghost", domain.TypeExpense, "#333333")
	err = s.UpdateCategory(ctx, missing)
	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf), "got %v", err)
}

func testDeleteCategory(t *testing.T, s port.Store) {
	ctx := context.Background()
	c := mustCreateCategory(t, s, NewCategory("Misc", domain.TypeExpense, "#444444"))

	require.NoError(t, s.DeleteCategory(ctx, c.ID))
	_, err := s.GetCategory(ctx, c.ID)
	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf), "got %v", err)
}

func testTransactionRoundTrip(t *testing.T, s port.Store) {
	ctx := context.Background()
	c := mustCreateCategory(t, s, NewCategory("Groceries", domain.TypeExpense, "#EF4444"))
	tx := mustCreateTransaction(t, s, NewTransaction(domain.TypeExpense, "45.20", c.ID, domain.NewDate(2025, time.January, 5)))

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TypeExpense, got.Type)
	assert.True(t, decimal.RequireFromString("45.20").Equal(got.Amount), "amount %s", got.Amount)
	assert.Equal(t, "2025-01-05", got.Date.String())
	assert.Equal(t, tx.Description, got.Description)
	require.NotNil(t, got.Category)
	assert.Equal(t, "Groceries", got.Category.Name)

	_, err = s.GetTransaction(ctx, uuid.NewString())
	var nf *domain.ErrNotFound
	require.True(t, errors.As(err, &nf), "got %v", err)
}

func testTransactionOrdering(t *testing.T, s port.Store) {
	ctx := context.Background()
	c := mustCreateCategory(t, s, NewCategory("Misc", domain.TypeExpense, "#444444"))

	older := mustCreateTransaction(t, s, NewTransaction(domain.TypeExpense, "1", c.ID, domain.NewDate(2025, time.January, 1)))
	first := mustCreateTransaction(t, s, NewTransaction(domain.TypeExpense, "2", c.ID, domain.NewDate(2025, time.January, 10)))
	second := mustCreateTransaction(t, s, NewTransaction(domain.TypeExpense, "3", c.ID, domain.NewDate(2025, time.January, 10)))
	newest := mustCreateTransaction(t, s, NewTransaction(domain.TypeExpense, "4", c.ID, domain.NewDate(2025, time.February, 1)))

	all, err := s.ListTransactions(ctx, domain.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{newest.ID, second.ID, first.ID, older.ID}, ids(all))

	paged, err := s.ListTransactions(ctx, domain.TransactionFilter{Skip: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID, first.ID}, ids(paged))

	beyond, err := s.ListTransactions(ctx, domain.TransactionFilter{Skip: 10})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func testSinceFilter(t *testing.T, s port.Store) {
	ctx := context.Background()
	c := mustCreateCategory(t, s, NewCategory("Misc", domain.TypeExpense, "#444444"))

	mustCreateTransaction(t, s, NewTransaction(domain.TypeExpense, "1", c.ID, domain.NewDate(2024, time.June, 30)))
	onDay := mustCreateTransaction(t, s, NewTransaction(domain.TypeExpense, "2", c.ID, domain.NewDate(2024, time.July, 1)))
	after := mustCreateTransaction(t, s, NewTransaction(domain.TypeIncome, "3", c.ID, domain.NewDate(2024, time.August, 15)))

	got, err := s.ListTransactions(ctx, domain.TransactionFilter{Since: domain.NewDate(2024, time.July, 1)})
	require.NoError(t, err)
	assert.Equal(t, []string{after.ID, onDay.ID}, ids(got))
}

func testUpdateDeleteTransaction(t *testing.T, s port.Store) {
	ctx := context.Background()
	food := mustCreateCategory(t, s, NewCategory("Food", domain.TypeExpense, "#EF4444"))
	pay := mustCreateCategory(t, s, NewCategory("Salary", domain.TypeIncome, "#10B981"))
	tx := mustCreateTransaction(t, s, NewTransaction(domain.TypeExpense, "10", food.ID, domain.NewDate(2025, time.March, 3)))

	tx.Type = domain.TypeIncome
	tx.Amount = decimal.RequireFromString("2500.50")
	tx.CategoryID = pay.ID
	tx.Description = "March salary"
	tx.Date = domain.NewDate(2025, time.March, 31)
	require.NoError(t, s.UpdateTransaction(ctx, tx))

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TypeIncome, got.Type)
	assert.Equal(t, "2500.5", got.Amount.String())
	assert.Equal(t, pay.ID, got.CategoryID)
	assert.Equal(t, "March salary", got.Description)
	assert.Equal(t, "2025-03-31", got.Date.String())
	require.NotNil(t, got.Category)
	assert.Equal(t, "Salary", got.Category.Name)

	require.NoError(t, s.DeleteTransaction(ctx, tx.ID))
	var nf *domain.ErrNotFound
	_, err = s.GetTransaction(ctx, tx.ID)
	require.True(t, errors.As(err, &nf), "got %v", err)
	require.True(t, errors.As(s.DeleteTransaction(ctx, tx.ID), &nf))
	require.True(t, errors.As(s.UpdateTransaction(ctx, tx), &nf))
}

func testCountByCategory(t *testing.T, s port.Store) {
	ctx := context.Background()
	food := mustCreateCategory(t, s, NewCategory("Food", domain.TypeExpense, "#EF4444"))
	rent := mustCreateCategory(t, s, NewCategory("Rent", domain.TypeExpense, "#111111"))

	for i := 1; i <= 3; i++ {
		mustCreateTransaction(t, s, NewTransaction(domain.TypeExpense, "5", food.ID, domain.NewDate(2025, time.April, i)))
	}

	n, err := s.CountTransactionsByCategory(ctx, food.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.CountTransactionsByCategory(ctx, rent.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testReferentialIntegrity(t *testing.T, s port.Store) {
	ctx := context.Background()
	food := mustCreateCategory(t, s, NewCategory("Food", domain.TypeExpense, "#EF4444"))
	tx := mustCreateTransaction(t, s, NewTransaction(domain.TypeExpense, "5", food.ID, domain.NewDate(2025, time.April, 1)))

	err := s.DeleteCategory(ctx, food.ID)
	var conflict *domain.ErrConflict
	require.True(t, errors.As(err, &conflict), "got %v", err)
	_, err = s.GetCategory(ctx, food.ID)
	require.NoError(t, err)

	var verr *domain.ErrValidation
	err = s.CreateTransaction(ctx, NewTransaction(domain.TypeExpense, "5", uuid.NewString(), domain.NewDate(2025, time.April, 2)))
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, "category_id", verr.Field)

	tx.CategoryID = uuid.NewString()
	err = s.UpdateTransaction(ctx, tx)
	require.True(t, errors.As(err, &verr), "got %v", err)
}

func ids(txs []domain.Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}
