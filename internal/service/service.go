// Package service provides the business logic layer (use cases) of the
// tracker: category and transaction management and the dashboard.
package service

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/boddenberg/fintrack-go/internal/domain"
	"github.com/boddenberg/fintrack-go/internal/infra/observability"
	"github.com/boddenberg/fintrack-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("service/fintrack")

// Clock returns the current time. Services take one so tests can pin "now".
type Clock func() time.Time

const dashboardKey = "dashboard"

// DashboardCache holds the last computed dashboard. Writes bump a
// generation so a summary computed before a write is never stored after it.
type DashboardCache struct {
	cache port.Cache[*domain.DashboardSummary]
	gen   atomic.Uint64
}

// NewDashboardCache wraps c. A nil cache disables caching.
func NewDashboardCache(c port.Cache[*domain.DashboardSummary]) *DashboardCache {
	return &DashboardCache{cache: c}
}

func (d *DashboardCache) get() (*domain.DashboardSummary, bool) {
	if d == nil || d.cache == nil {
		return nil, false
	}
	return d.cache.Get(dashboardKey)
}

func (d *DashboardCache) generation() uint64 {
	if d == nil {
		return 0
	}
	return d.gen.Load()
}

// put stores s only if no write happened since gen was read.
func (d *DashboardCache) put(gen uint64, s *domain.DashboardSummary) {
	if d == nil || d.cache == nil || d.gen.Load() != gen {
		return
	}
	d.cache.Set(dashboardKey, s)
}

// Invalidate drops the cached dashboard.
func (d *DashboardCache) Invalidate() {
	if d == nil {
		return
	}
	d.gen.Add(1)
	if d.cache != nil {
		d.cache.Flush()
	}
}

// isDomainError reports whether err is one of the typed domain errors that
// callers map to a client-facing status.
func isDomainError(err error) bool {
	var (
		notFound   *domain.ErrNotFound
		validation *domain.ErrValidation
		duplicate  *domain.ErrDuplicate
		conflict   *domain.ErrConflict
	)
	return errors.As(err, &notFound) || errors.As(err, &validation) ||
		errors.As(err, &duplicate) || errors.As(err, &conflict)
}

// storeFailure counts and records unexpected store errors on span.
func storeFailure(metrics *observability.Metrics, span trace.Span, op string, err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	metrics.IncrStoreError(op)
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	return err
}
