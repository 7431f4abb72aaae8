package observability

import (
	"time"

	"github.com/boddenberg/fintrack-go/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the tracker.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration     *prometheus.HistogramVec
	storeErrors         *prometheus.CounterVec
	cacheHits           *prometheus.CounterVec
	cacheMisses         *prometheus.CounterVec
	transactionsCreated *prometheus.CounterVec
	typeMismatch        prometheus.Counter
	skippedRecords      prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fintrack_operation_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_store_errors_total",
				Help: "Total errors returned by the data store.",
			},
			[]string{"operation"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		transactionsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fintrack_transactions_created_total",
				Help: "Transactions created, by type.",
			},
			[]string{"type"},
		),
		typeMismatch: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fintrack_category_type_mismatch_total",
				Help: "Transactions whose type differs from their category's type.",
			},
		),
		skippedRecords: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fintrack_aggregation_skipped_records_total",
				Help: "Malformed records left out of aggregations.",
			},
		),
	}
}

// RecordDuration records the duration of an operation.
func (m *Metrics) RecordDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrStoreError increments the store error counter.
func (m *Metrics) IncrStoreError(operation string) {
	m.storeErrors.WithLabelValues(operation).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrTransactionCreated counts a created transaction.
func (m *Metrics) IncrTransactionCreated(txType domain.TransactionType) {
	m.transactionsCreated.WithLabelValues(string(txType)).Inc()
}

// IncrTypeMismatch counts a transaction filed under a category of the other type.
func (m *Metrics) IncrTypeMismatch() {
	m.typeMismatch.Inc()
}

// AddSkipped counts malformed records dropped by an aggregation.
func (m *Metrics) AddSkipped(n int) {
	if n > 0 {
		m.skippedRecords.Add(float64(n))
	}
}

// Snapshot returns the current counter values for GET /api/metrics/app.
func (m *Metrics) Snapshot() *domain.AppMetrics {
	hits := counterValue(m.cacheHits.WithLabelValues("dashboard"))
	misses := counterValue(m.cacheMisses.WithLabelValues("dashboard"))
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.AppMetrics{
		TransactionsCreated: map[string]int64{
			string(domain.TypeIncome):  int64(counterValue(m.transactionsCreated.WithLabelValues(string(domain.TypeIncome)))),
			string(domain.TypeExpense): int64(counterValue(m.transactionsCreated.WithLabelValues(string(domain.TypeExpense)))),
		},
		CategoryTypeMismatch: int64(counterValue(m.typeMismatch)),
		SkippedRecords:       int64(counterValue(m.skippedRecords)),
		StoreErrors:          int64(sumCounterVec(m.storeErrors)),
		CacheHitRate:         hitRate,
		Period:               "since_start",
	}
}

// counterValue extracts the current float64 value of a counter.
func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// sumCounterVec adds up every label combination of a CounterVec.
func sumCounterVec(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	total := float64(0)
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err == nil && m.Counter != nil && m.Counter.Value != nil {
			total += *m.Counter.Value
		}
	}
	return total
}
