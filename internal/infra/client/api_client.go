// Package client is the HTTP client for the tracker API, used by the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/boddenberg/fintrack-go/internal/domain"
	"github.com/boddenberg/fintrack-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

const serviceName = "fintrack-api"

// APIClient talks to the tracker API. Every call runs through the circuit
// breaker; reads are retried only when cfg.MaxRetries > 0 and writes never
// are.
type APIClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewAPIClient creates a client for the API rooted at baseURL, e.g.
// http://localhost:8080/api. httpClient.Timeout bounds each request.
func NewAPIClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *APIClient {
	if cb == nil {
		cb = resilience.NewCircuitBreaker(serviceName)
	}
	return &APIClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cb:         cb,
		cfg:        cfg,
	}
}

// ============================================================
// Categories
// ============================================================

func (c *APIClient) ListCategories(ctx context.Context) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "APIClient.ListCategories")
	defer span.End()

	var out []domain.Category
	err := c.read(ctx, "/categories", "categories", "", &out)
	return out, err
}

func (c *APIClient) CreateCategory(ctx context.Context, in domain.CategoryInput) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "APIClient.CreateCategory")
	defer span.End()

	in.Normalize()
	if err := in.Validate(true); err != nil {
		return nil, err
	}
	var out domain.Category
	if err := c.write(ctx, http.MethodPost, "/categories", "category", "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) UpdateCategory(ctx context.Context, id string, in domain.CategoryInput) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "APIClient.UpdateCategory")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", id))

	in.Normalize()
	if err := in.Validate(true); err != nil {
		return nil, err
	}
	var out domain.Category
	if err := c.write(ctx, http.MethodPut, "/categories/"+url.PathEscape(id), "category", id, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) DeleteCategory(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "APIClient.DeleteCategory")
	defer span.End()
	span.SetAttributes(attribute.String("category.id", id))

	return c.write(ctx, http.MethodDelete, "/categories/"+url.PathEscape(id), "category", id, nil, nil)
}

// ============================================================
// Transactions
// ============================================================

// ListTransactions fetches one page, newest first. Zero limit uses the
// server default.
func (c *APIClient) ListTransactions(ctx context.Context, skip, limit int) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "APIClient.ListTransactions")
	defer span.End()

	q := url.Values{}
	if skip > 0 {
		q.Set("skip", strconv.Itoa(skip))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/transactions"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []domain.Transaction
	err := c.read(ctx, path, "transactions", "", &out)
	return out, err
}

// ListAllTransactions pages through every transaction.
func (c *APIClient) ListAllTransactions(ctx context.Context, pageSize int) ([]domain.Transaction, error) {
	if pageSize <= 0 {
		pageSize = 500
	}
	var all []domain.Transaction
	for skip := 0; ; skip += pageSize {
		page, err := c.ListTransactions(ctx, skip, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

func (c *APIClient) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "APIClient.GetTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	var out domain.Transaction
	if err := c.read(ctx, "/transactions/"+url.PathEscape(id), "transaction", id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) CreateTransaction(ctx context.Context, in domain.TransactionInput) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "APIClient.CreateTransaction")
	defer span.End()

	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out domain.Transaction
	if err := c.write(ctx, http.MethodPost, "/transactions", "transaction", "", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) UpdateTransaction(ctx context.Context, id string, in domain.TransactionInput) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "APIClient.UpdateTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	var out domain.Transaction
	if err := c.write(ctx, http.MethodPut, "/transactions/"+url.PathEscape(id), "transaction", id, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) DeleteTransaction(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "APIClient.DeleteTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	return c.write(ctx, http.MethodDelete, "/transactions/"+url.PathEscape(id), "transaction", id, nil, nil)
}

// ============================================================
// Dashboard
// ============================================================

func (c *APIClient) Dashboard(ctx context.Context) (*domain.DashboardSummary, error) {
	ctx, span := tracer.Start(ctx, "APIClient.Dashboard")
	defer span.End()

	var out domain.DashboardSummary
	if err := c.read(ctx, "/dashboard", "dashboard", "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) Monthly(ctx context.Context) ([]domain.MonthlyBucket, error) {
	ctx, span := tracer.Start(ctx, "APIClient.Monthly")
	defer span.End()

	var out []domain.MonthlyBucket
	err := c.read(ctx, "/transactions/monthly", "monthly", "", &out)
	return out, err
}

// ============================================================
// Transport
// ============================================================

func (c *APIClient) read(ctx context.Context, path, resource, id string, out any) error {
	return resilience.Call(ctx, c.cb, c.cfg, serviceName, func() error {
		return c.do(ctx, http.MethodGet, path, resource, id, nil, out)
	})
}

func (c *APIClient) write(ctx context.Context, method, path, resource, id string, body, out any) error {
	once := c.cfg
	once.MaxRetries = 0
	return resilience.Call(ctx, c.cb, once, serviceName, func() error {
		return c.do(ctx, method, path, resource, id, body, out)
	})
}

func (c *APIClient) do(ctx context.Context, method, path, resource, id string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return &domain.ErrTimeout{Operation: method + " " + path}
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp, resource, id)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", resource, err)
	}
	return nil
}

type errorBody struct {
	Error   string `json:"error"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// statusError mirrors the server's status mapping back into domain errors.
func statusError(resp *http.Response, resource, id string) error {
	var body errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		if body.Field != "" {
			return &domain.ErrValidation{Field: body.Field, Message: body.Message}
		}
		return &domain.ErrValidation{Field: "request", Message: body.Error}
	case http.StatusNotFound:
		return &domain.ErrNotFound{Resource: resource, ID: id}
	case http.StatusConflict:
		return &domain.ErrConflict{Message: body.Error}
	case http.StatusGatewayTimeout:
		return &domain.ErrTimeout{Operation: resource}
	}
	return fmt.Errorf("%s: status %d: %s", resource, resp.StatusCode, body.Error)
}
