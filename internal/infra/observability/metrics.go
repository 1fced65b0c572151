package observability

import (
	"time"

	"github.com/drinkpass/drinkpass-api/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the API.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	externalErrors   *prometheus.CounterVec
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	checkoutsTotal   *prometheus.CounterVec
	statusChecks     prometheus.Counter
	sessionOutcomes  *prometheus.CounterVec
	fallbackSessions prometheus.Counter
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
				Name:    "drinkpass_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drinkpass_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drinkpass_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drinkpass_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		checkoutsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drinkpass_checkouts_total",
				Help: "Total checkout sessions created, by plan.",
			},
			[]string{"plan"},
		),
		statusChecks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "drinkpass_status_checks_total",
				Help: "Total payment status checks issued.",
			},
		),
		sessionOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drinkpass_session_outcomes_total",
				Help: "Terminal session outcomes.",
			},
			[]string{"status"},
		),
		fallbackSessions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "drinkpass_fallback_sessions_total",
				Help: "Checkout sessions served by the local fallback after a provider failure.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrCheckout increments the checkout counter for a plan.
func (m *Metrics) IncrCheckout(plan string) {
	m.checkoutsTotal.WithLabelValues(plan).Inc()
}

// IncrStatusCheck increments the status check counter.
func (m *Metrics) IncrStatusCheck() {
	m.statusChecks.Inc()
}

// IncrSessionOutcome records a terminal session outcome (paid, expired, failed).
func (m *Metrics) IncrSessionOutcome(status string) {
	m.sessionOutcomes.WithLabelValues(status).Inc()
}

// IncrFallbackSession increments the fallback session counter.
func (m *Metrics) IncrFallbackSession() {
	m.fallbackSessions.Inc()
}

// GetCheckoutSnapshot returns a snapshot of checkout metrics suitable for the
// GET /v1/metrics/checkout endpoint.
func (m *Metrics) GetCheckoutSnapshot() *domain.CheckoutMetrics {
	// Gather current values from Prometheus counters.
	// Note: Prometheus counters expose cumulative values.
	checkouts := getCounterValue(m.checkoutsTotal, string(domain.PlanMonthly)) +
		getCounterValue(m.checkoutsTotal, string(domain.PlanSemiannual)) +
		getCounterValue(m.checkoutsTotal, string(domain.PlanAnnual))
	fallbacks := getPlainCounterValue(m.fallbackSessions)
	providerErrors := getCounterValue(m.externalErrors, "abacatepay") +
		getCounterValue(m.externalErrors, "stripe")
	statusChecks := getPlainCounterValue(m.statusChecks)
	paid := getCounterValue(m.sessionOutcomes, string(domain.StatusPaid))
	expired := getCounterValue(m.sessionOutcomes, string(domain.StatusExpired))
	cacheHits := getCounterValue(m.cacheHits, "restaurants")
	cacheMisses := getCounterValue(m.cacheMisses, "restaurants")

	fallbackRate := float64(0)
	cacheHitRate := float64(0)

	if checkouts > 0 {
		fallbackRate = fallbacks / checkouts
	}
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.CheckoutMetrics{
		CheckoutsTotal:    int64(checkouts),
		FallbackSessions:  int64(fallbacks),
		FallbackRate:      fallbackRate,
		ProviderErrors:    int64(providerErrors),
		StatusChecksTotal: int64(statusChecks),
		SessionsPaid:      int64(paid),
		SessionsExpired:   int64(expired),
		CacheHitRate:      cacheHitRate,
		Period:            "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func getPlainCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
