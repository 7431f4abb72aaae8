package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/boddenberg/fintrack-go/internal/aggregate"
	"github.com/boddenberg/fintrack-go/internal/color"
	"github.com/boddenberg/fintrack-go/internal/domain"
	"github.com/boddenberg/fintrack-go/internal/handler"
	"github.com/boddenberg/fintrack-go/internal/infra/cache"
	"github.com/boddenberg/fintrack-go/internal/infra/memory"
	"github.com/boddenberg/fintrack-go/internal/infra/observability"
	"github.com/boddenberg/fintrack-go/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type downStore struct{ *memory.Store }

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func newRouter(t *testing.T) (http.Handler, *memory.Store) {
	t.Helper()
	return newRouterWithLogger(t, zap.NewNop())
}

func newRouterWithLogger(t *testing.T, logger *zap.Logger) (http.Handler, *memory.Store) {
	t.Helper()
	store := memory.New()
	metrics := observability.NewMetrics()
	c := cache.New[*domain.DashboardSummary](time.Minute)
	t.Cleanup(c.Close)
	dc := service.NewDashboardCache(c)
	now := func() time.Time { return time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC) }

	svc := handler.Services{
		Categories:   service.NewCategoryService(store, dc, color.NewGenerator(7), metrics, logger, now),
		Transactions: service.NewTransactionService(store, dc, metrics, logger, service.TransactionOptions{Clock: now}),
		Dashboard: service.NewDashboardService(store, aggregate.New(logger), dc, metrics, logger, service.DashboardOptions{
			RecentLimit:       5,
			MonthlyWindowDays: 180,
			MaxConcurrency:    8,
			Clock:             now,
		}),
	}
	return handler.NewRouter(svc, store, metrics, logger), store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	router, _ := newRouter(t)

	rec := do(t, router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[domain.HealthStatus](t, rec)
	assert.Equal(t, "healthy", status.Status)
	assert.Len(t, status.Services, 2)
}

func TestHealthz_StoreDown(t *testing.T) {
	metrics := observability.NewMetrics()
	router := handler.NewRouter(handler.Services{}, downStore{memory.New()}, metrics, zap.NewNop())

	rec := do(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decode[domain.HealthStatus](t, rec).Status)
}

func TestOperationalEndpoints(t *testing.T) {
	router, _ := newRouter(t)

	for _, path := range []string{"/readyz", "/metrics", "/ping", "/api/metrics/app"} {
		rec := do(t, router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRoot(t *testing.T) {
	router, _ := newRouter(t)

	rec := do(t, router, http.MethodGet, "/api/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Personal Finance Tracker API", decode[domain.MessageResponse](t, rec).Message)
}

func TestCORS(t *testing.T) {
	router, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/categories", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCategoriesCRUD(t *testing.T) {
	router, _ := newRouter(t)

	rec := do(t, router, http.MethodPost, "/api/categories", `{"name":"Salary","type":"income","color":"#10b981"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	salary := decode[domain.Category](t, rec)
	assert.Equal(t, "#10B981", salary.Color)

	rec = do(t, router, http.MethodPost, "/api/categories", `{"name":"Food","type":"expense"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	food := decode[domain.Category](t, rec)
	assert.True(t, color.Valid(food.Color), food.Color)

	rec = do(t, router, http.MethodGet, "/api/categories", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cats := decode[[]domain.Category](t, rec)
	require.Len(t, cats, 2)
	assert.Equal(t, "Food", cats[0].Name)

	rec = do(t, router, http.MethodPut, "/api/categories/"+food.ID, `{"name":"Groceries","type":"expense","color":"#EF4444"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Groceries", decode[domain.Category](t, rec).Name)

	rec = do(t, router, http.MethodDelete, "/api/categories/"+food.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/categories/"+food.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	router, _ := newRouter(t)
	rec := do(t, router, http.MethodPost, "/api/categories", `{"name":"Rent","type":"expense"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rent := decode[domain.Category](t, rec)
	rec = do(t, router, http.MethodPost, "/api/transactions",
		`{"type":"expense","amount":900,"category_id":"`+rent.ID+`","date":"2025-01-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"malformed json", http.MethodPost, "/api/categories", `{"name":`, http.StatusBadRequest},
		{"bad color", http.MethodPost, "/api/categories", `{"name":"X","type":"expense","color":"blue"}`, http.StatusBadRequest},
		{"duplicate name", http.MethodPost, "/api/categories", `{"name":"rent","type":"expense"}`, http.StatusConflict},
		{"referenced category", http.MethodDelete, "/api/categories/" + rent.ID, "", http.StatusConflict},
		{"missing category", http.MethodPut, "/api/categories/nope", `{"name":"X","type":"expense"}`, http.StatusNotFound},
		{"zero amount", http.MethodPost, "/api/transactions", `{"type":"expense","amount":0,"category_id":"` + rent.ID + `","date":"2025-01-02"}`, http.StatusBadRequest},
		{"bad date", http.MethodPost, "/api/transactions", `{"type":"expense","amount":1,"category_id":"` + rent.ID + `","date":"yesterday"}`, http.StatusBadRequest},
		{"unknown category", http.MethodPost, "/api/transactions", `{"type":"expense","amount":1,"category_id":"nope","date":"2025-01-02"}`, http.StatusBadRequest},
		{"bad paging", http.MethodGet, "/api/transactions?limit=abc", "", http.StatusBadRequest},
		{"paging too large", http.MethodGet, "/api/transactions?limit=501", "", http.StatusBadRequest},
		{"missing transaction", http.MethodDelete, "/api/transactions/nope", "", http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestTransactionsAndDashboard(t *testing.T) {
	router, _ := newRouter(t)

	salary := decode[domain.Category](t, do(t, router, http.MethodPost, "/api/categories", `{"name":"Salary","type":"income","color":"#10B981"}`))
	food := decode[domain.Category](t, do(t, router, http.MethodPost, "/api/categories", `{"name":"Food","type":"expense","color":"#EF4444"}`))

	for _, body := range []string{
		`{"type":"income","amount":3200.00,"category_id":"` + salary.ID + `","description":"Monthly salary","date":"2025-01-01"}`,
		`{"type":"expense","amount":"45.20","category_id":"` + food.ID + `","description":"Weekly groceries","date":"2025-01-05"}`,
		`{"type":"expense","amount":25.30,"category_id":"` + food.ID + `","date":"2025-01-06"}`,
	} {
		rec := do(t, router, http.MethodPost, "/api/transactions", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := do(t, router, http.MethodGet, "/api/transactions?skip=0&limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	txs := decode[[]domain.Transaction](t, rec)
	require.Len(t, txs, 2)
	assert.Equal(t, "2025-01-06", txs[0].Date.String())
	require.NotNil(t, txs[0].Category)
	assert.Equal(t, "Food", txs[0].Category.Name)

	rec = do(t, router, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `"total_income":3200`), body)
	assert.True(t, strings.Contains(body, `"balance":3129.5`), body)

	dash := decode[domain.DashboardSummary](t, rec)
	assert.Equal(t, "70.5", dash.TotalExpenses.String())
	assert.Len(t, dash.RecentTransactions, 3)
	require.Len(t, dash.MonthlyData, 1)
	assert.Equal(t, "Jan 2025", dash.MonthlyData[0].Month)
	require.Len(t, dash.CategoryBreakdown, 1)
	assert.Equal(t, "100.0", dash.CategoryBreakdown[0].PercentageLabel())

	rec = do(t, router, http.MethodGet, "/api/transactions/monthly", "")
	require.Equal(t, http.StatusOK, rec.Code)
	months := decode[[]domain.MonthlyBucket](t, rec)
	require.Len(t, months, 1)
	assert.Equal(t, "2025-01", months[0].Period)
	assert.Equal(t, "3200", months[0].Income.String())

	// Writes invalidate the cached dashboard.
	id := txs[0].ID
	rec = do(t, router, http.MethodPut, "/api/transactions/"+id,
		`{"type":"expense","amount":30,"category_id":"`+food.ID+`","date":"2025-01-06"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	dash = decode[domain.DashboardSummary](t, do(t, router, http.MethodGet, "/api/dashboard", ""))
	assert.Equal(t, "75.2", dash.TotalExpenses.String())

	rec = do(t, router, http.MethodDelete, "/api/transactions/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, router, http.MethodGet, "/api/transactions/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDashboard_RequestLogCarriesSkippedRecords(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	router, _ := newRouterWithLogger(t, zap.New(core))

	food := decode[domain.Category](t, do(t, router, http.MethodPost, "/api/categories", `{"name":"Food","type":"expense","color":"#EF4444"}`))
	rec := do(t, router, http.MethodPost, "/api/transactions",
		`{"type":"expense","amount":12.5,"category_id":"`+food.ID+`","date":"2025-01-05"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)

	entries := logs.FilterMessage("http request").FilterField(zap.String("path", "/api/dashboard")).All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(0), fields["skipped_records"])
	assert.Equal(t, int64(1), fields["recent_transactions"])
}
