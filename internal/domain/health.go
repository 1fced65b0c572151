package domain

// ServiceHealth describes one dependency's health.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"` // healthy, degraded, unhealthy
	LatencyMs   int64  `json:"latency_ms"`
	LastChecked string `json:"last_checked"`
}

// HealthStatus is the aggregate response for GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"`
	Services []ServiceHealth `json:"services"`
}

// CheckoutMetrics is the snapshot returned by GET /v1/metrics/checkout.
type CheckoutMetrics struct {
	CheckoutsTotal    int64   `json:"checkouts_total"`
	FallbackSessions  int64   `json:"fallback_sessions"`
	FallbackRate      float64 `json:"fallback_rate"`
	ProviderErrors    int64   `json:"provider_errors"`
	StatusChecksTotal int64   `json:"status_checks_total"`
	SessionsPaid      int64   `json:"sessions_paid"`
	SessionsExpired   int64   `json:"sessions_expired"`
	CacheHitRate      float64 `json:"cache_hit_rate"`
	Period            string  `json:"period"`
}
