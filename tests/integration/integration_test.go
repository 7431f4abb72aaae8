package integration_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/boddenberg/fintrack-go/internal/aggregate"
	"github.com/boddenberg/fintrack-go/internal/color"
	"github.com/boddenberg/fintrack-go/internal/domain"
	"github.com/boddenberg/fintrack-go/internal/handler"
	"github.com/boddenberg/fintrack-go/internal/infra/cache"
	"github.com/boddenberg/fintrack-go/internal/infra/client"
	"github.com/boddenberg/fintrack-go/internal/infra/observability"
	"github.com/boddenberg/fintrack-go/internal/infra/resilience"
	"github.com/boddenberg/fintrack-go/internal/infra/sqlite"
	"github.com/boddenberg/fintrack-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// newStack starts the API on a SQLite file and returns a client for it.
func newStack(t *testing.T) (*client.APIClient, *httptest.Server) {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "fintrack.db"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	c := cache.New[*domain.DashboardSummary](time.Minute)
	t.Cleanup(c.Close)
	dashboard := service.NewDashboardCache(c)

	svc := handler.Services{
		Categories:   service.NewCategoryService(store, dashboard, color.NewGenerator(7), metrics, logger, time.Now),
		Transactions: service.NewTransactionService(store, dashboard, metrics, logger, service.TransactionOptions{}),
		Dashboard: service.NewDashboardService(store, aggregate.New(logger), dashboard, metrics, logger, service.DashboardOptions{
			MaxConcurrency: 4,
		}),
	}

	srv := httptest.NewServer(handler.NewRouter(svc, store, metrics, logger))
	t.Cleanup(srv.Close)

	api := client.NewAPIClient(&http.Client{Timeout: 5 * time.Second}, srv.URL+"/api", resilience.NewCircuitBreaker(t.Name()), resilience.Config{})
	return api, srv
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// TestIntegration_FullFlow drives categories, transactions and the dashboard
// through the HTTP client against a real store.
func TestIntegration_FullFlow(t *testing.T) {
	api, _ := newStack(t)
	ctx := context.Background()

	salary, err := api.CreateCategory(ctx, domain.CategoryInput{Name: "Salary", Type: domain.TypeIncome})
	if err != nil {
		t.Fatalf("create salary: %v", err)
	}
	if !color.Valid(salary.Color) {
		t.Errorf("expected generated color, got %q", salary.Color)
	}
	food, err := api.CreateCategory(ctx, domain.CategoryInput{Name: "Food", Type: domain.TypeExpense, Color: "#ef4444"})
	if err != nil {
		t.Fatalf("create food: %v", err)
	}
	if food.Color != "#EF4444" {
		t.Errorf("expected normalized color, got %q", food.Color)
	}

	inputs := []domain.TransactionInput{
		{Type: domain.TypeIncome, Amount: mustDecimal("3200"), CategoryID: salary.ID, Date: domain.NewDate(2025, time.January, 1)},
		{Type: domain.TypeExpense, Amount: mustDecimal("45.20"), CategoryID: food.ID, Description: "Groceries", Date: domain.NewDate(2025, time.January, 10)},
		{Type: domain.TypeExpense, Amount: mustDecimal("25.30"), CategoryID: food.ID, Description: "Lunch", Date: domain.NewDate(2025, time.January, 10)},
	}
	var created []*domain.Transaction
	for _, in := range inputs {
		tx, err := api.CreateTransaction(ctx, in)
		if err != nil {
			t.Fatalf("create transaction: %v", err)
		}
		created = append(created, tx)
	}

	summary, err := api.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if !summary.TotalIncome.Equal(mustDecimal("3200")) || !summary.TotalExpenses.Equal(mustDecimal("70.5")) || !summary.Balance.Equal(mustDecimal("3129.5")) {
		t.Errorf("unexpected totals: %s / %s / %s", summary.TotalIncome, summary.TotalExpenses, summary.Balance)
	}
	if len(summary.CategoryBreakdown) != 1 || summary.CategoryBreakdown[0].PercentageLabel() != "100.0" {
		t.Fatalf("expected a single 100%% entry, got %+v", summary.CategoryBreakdown)
	}
	if len(summary.RecentTransactions) != 3 || summary.RecentTransactions[0].ID != created[2].ID {
		t.Errorf("expected newest insertion first on equal dates, got %+v", summary.RecentTransactions)
	}

	// Renaming changes the label, not the sums.
	if _, err := api.UpdateCategory(ctx, food.ID, domain.CategoryInput{Name: "Groceries", Type: domain.TypeExpense}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	summary, err = api.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if got := summary.CategoryBreakdown[0]; got.Category != "Groceries" || !got.Amount.Equal(mustDecimal("70.5")) || got.Color != "#EF4444" {
		t.Errorf("unexpected entry after rename: %+v", got)
	}

	// A referenced category cannot be deleted.
	err = api.DeleteCategory(ctx, food.ID)
	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if conflict.Message != "Cannot delete category. It has 2 transactions." {
		t.Errorf("unexpected conflict message: %q", conflict.Message)
	}

	for _, tx := range created[1:] {
		if err := api.DeleteTransaction(ctx, tx.ID); err != nil {
			t.Fatalf("delete transaction: %v", err)
		}
	}
	if err := api.DeleteCategory(ctx, food.ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}

	_, err = api.GetTransaction(ctx, created[1].ID)
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	summary, err = api.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if !summary.TotalExpenses.IsZero() || len(summary.CategoryBreakdown) != 0 {
		t.Errorf("expected no expenses, got %s and %d entries", summary.TotalExpenses, len(summary.CategoryBreakdown))
	}
}

func TestIntegration_ServerRejectsBadInput(t *testing.T) {
	api, _ := newStack(t)
	ctx := context.Background()

	if _, err := api.CreateCategory(ctx, domain.CategoryInput{Name: "Rent", Type: domain.TypeExpense}); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := api.CreateCategory(ctx, domain.CategoryInput{Name: "rent", Type: domain.TypeExpense})
	var dup *domain.ErrConflict
	if !errors.As(err, &dup) {
		t.Errorf("expected a conflict for a duplicate name, got %v", err)
	}

	_, err = api.CreateTransaction(ctx, domain.TransactionInput{
		Type: domain.TypeExpense, Amount: mustDecimal("10"), CategoryID: "missing", Date: domain.NewDate(2025, time.March, 1),
	})
	var verr *domain.ErrValidation
	if !errors.As(err, &verr) || verr.Field != "category_id" {
		t.Errorf("expected validation error on category_id, got %v", err)
	}
}

func TestIntegration_ServerDown(t *testing.T) {
	api, srv := newStack(t)
	srv.Close()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := api.ListCategories(ctx)
		var ext *domain.ErrExternalService
		if !errors.As(err, &ext) {
			t.Fatalf("attempt %d: expected ErrExternalService, got %v", i, err)
		}
	}

	_, err := api.ListCategories(ctx)
	var open *domain.ErrCircuitOpen
	if !errors.As(err, &open) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}
