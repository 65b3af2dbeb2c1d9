package metrics

import (
	"taxvault-webhook-layer/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of the service. A nil *Metrics is valid
// and records nothing, which keeps tests free of registry setup.
type Metrics struct {
	webhookEvents      *prometheus.CounterVec
	signatureFailures  prometheus.Counter
	healthChecks       *prometheus.CounterVec
	consecutiveFailure *prometheus.GaugeVec
	platformRequests   *prometheus.CounterVec
	importOrders       *prometheus.CounterVec
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taxvault",
			Subsystem: "webhooks",
			Name:      "events_total",
			Help:      "Inbound webhook deliveries by topic and outcome.",
		}, []string{"topic", "outcome"}),
		signatureFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taxvault",
			Subsystem: "webhooks",
			Name:      "signature_failures_total",
			Help:      "Inbound webhook deliveries rejected by HMAC verification.",
		}),
		healthChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taxvault",
			Subsystem: "webhooks",
			Name:      "health_checks_total",
			Help:      "Webhook convergence passes by overall status.",
		}, []string{"status"}),
		consecutiveFailure: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "taxvault",
			Subsystem: "webhooks",
			Name:      "consecutive_failures",
			Help:      "Consecutive non-healthy convergence passes per integration.",
		}, []string{"integration_id"}),
		platformRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taxvault",
			Subsystem: "platform",
			Name:      "requests_total",
			Help:      "Outbound platform API requests by operation and result.",
		}, []string{"operation", "result"}),
		importOrders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taxvault",
			Subsystem: "import",
			Name:      "orders_total",
			Help:      "Orders processed by historical import by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.webhookEvents,
		m.signatureFailures,
		m.healthChecks,
		m.consecutiveFailure,
		m.platformRequests,
		m.importOrders,
	)
	return m
}

func (m *Metrics) WebhookEvent(topic, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(topic, outcome).Inc()
}

func (m *Metrics) SignatureFailure() {
	if m == nil {
		return
	}
	m.signatureFailures.Inc()
}

func (m *Metrics) HealthCheck(integrationID, status string, consecutiveFailures int64) {
	if m == nil {
		return
	}
	m.healthChecks.WithLabelValues(status).Inc()
	m.consecutiveFailure.WithLabelValues(integrationID).Set(float64(consecutiveFailures))
}

func (m *Metrics) PlatformRequest(operation, result string) {
	if m == nil {
		return
	}
	m.platformRequests.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) ImportOrder(result string) {
	if m == nil {
		return
	}
	m.importOrders.WithLabelValues(result).Inc()
}

var _ ports.Metrics = (*Metrics)(nil)
