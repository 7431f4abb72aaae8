package domain

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
}

// AppMetrics is returned by GET /api/metrics/app.
type AppMetrics struct {
	TransactionsCreated  map[string]int64 `json:"transactionsCreated"`
	CategoryTypeMismatch int64            `json:"categoryTypeMismatch"`
	SkippedRecords       int64            `json:"skippedRecords"`
	StoreErrors          int64            `json:"storeErrors"`
	CacheHitRate         float64          `json:"cacheHitRate"`
	Period               string           `json:"period"`
}

// MessageResponse is a plain acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}
