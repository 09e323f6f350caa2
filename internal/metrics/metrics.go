package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// UntrustedWebhooks counts signature failures; a non-zero rate here is a
	// human-investigation signal, not something the pipeline retries.
	UntrustedWebhooks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_untrusted_total",
			Help: "Webhook deliveries rejected for bad signatures",
		},
		[]string{"gateway"},
	)

	WebhooksProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_processed_total",
			Help: "Webhook deliveries by outcome",
		},
		[]string{"gateway", "result"}, // processed|already_processed|unresolved|unrecognized|failed
	)

	EscrowTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escrow_transitions_total",
			Help: "Escrow state transitions",
		},
		[]string{"from", "to"},
	)

	SettlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Settlement attempts by outcome",
		},
		[]string{"result"}, // released|skipped|failed
	)

	ReconciliationIssues = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reconciliation_issues_last_run",
			Help: "Issues found by the most recent reconciliation run",
		},
	)

	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(UntrustedWebhooks)
	prometheus.MustRegister(WebhooksProcessed)
	prometheus.MustRegister(EscrowTransitions)
	prometheus.MustRegister(SettlementsTotal)
	prometheus.MustRegister(ReconciliationIssues)
	prometheus.MustRegister(WorkerQueueDepth)
}
