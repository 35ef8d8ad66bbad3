package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the ledger service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	providerErrors  *prometheus.CounterVec
	settlements     *prometheus.CounterVec
	webhooks        *prometheus.CounterVec
	overlayHits     *prometheus.CounterVec
	overlayMisses   *prometheus.CounterVec
}

// SettlementSnapshot is a point-in-time view of settlement counters,
// served by the operational metrics endpoint.
type SettlementSnapshot struct {
	Completed      int64 `json:"completed"`
	Failed         int64 `json:"failed"`
	Cancelled      int64 `json:"cancelled"`
	WebhooksOK     int64 `json:"webhooks_ok"`
	WebhooksNoop   int64 `json:"webhooks_noop"`
	ProviderErrors int64 `json:"provider_errors"`
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
				Name:    "ledger_request_duration_seconds",
				Help:    "Duration of orchestrator operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		providerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_provider_errors_total",
				Help: "Total upstream errors by settlement provider.",
			},
			[]string{"provider"},
		),
		settlements: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_settlements_total",
				Help: "Total transactions reaching a terminal status.",
			},
			[]string{"status"},
		),
		webhooks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_webhooks_total",
				Help: "Total webhook deliveries by result.",
			},
			[]string{"result"},
		),
		overlayHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_balance_overlay_hits_total",
				Help: "Live-balance overlay cache hits.",
			},
			[]string{"provider"},
		),
		overlayMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_balance_overlay_misses_total",
				Help: "Live-balance overlay cache misses.",
			},
			[]string{"provider"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrProviderError increments the upstream error counter.
func (m *Metrics) IncrProviderError(provider string) {
	m.providerErrors.WithLabelValues(provider).Inc()
}

// IncrSettlement counts a transaction reaching a terminal status.
func (m *Metrics) IncrSettlement(status string) {
	m.settlements.WithLabelValues(status).Inc()
}

// IncrWebhook counts a webhook delivery by result (applied/noop/rejected).
func (m *Metrics) IncrWebhook(result string) {
	m.webhooks.WithLabelValues(result).Inc()
}

// IncrOverlayHit increments the overlay cache hit counter.
func (m *Metrics) IncrOverlayHit(provider string) {
	m.overlayHits.WithLabelValues(provider).Inc()
}

// IncrOverlayMiss increments the overlay cache miss counter.
func (m *Metrics) IncrOverlayMiss(provider string) {
	m.overlayMisses.WithLabelValues(provider).Inc()
}

// GetSettlementSnapshot returns current settlement counter values for
// the GET /v1/metrics/settlements endpoint.
func (m *Metrics) GetSettlementSnapshot() *SettlementSnapshot {
	var providerErrs float64
	for _, p := range []string{"card_processor", "bank_rail", "core_banking", "card_network"} {
		providerErrs += getCounterValue(m.providerErrors, p)
	}
	return &SettlementSnapshot{
		Completed:      int64(getCounterValue(m.settlements, "completed")),
		Failed:         int64(getCounterValue(m.settlements, "failed")),
		Cancelled:      int64(getCounterValue(m.settlements, "cancelled")),
		WebhooksOK:     int64(getCounterValue(m.webhooks, "applied")),
		WebhooksNoop:   int64(getCounterValue(m.webhooks, "noop")),
		ProviderErrors: int64(providerErrs),
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
