package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(webhookEventsTotal, webhookSignatureFailures, planResolutionFallbacks)
}

var (
	webhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Payment webhook events by type, result and source (delivery|replay).",
		},
		[]string{"type", "result", "source"},
	)

	webhookSignatureFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_signature_failures_total",
			Help: "Webhook deliveries rejected before processing.",
		},
	)

	planResolutionFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plan_resolution_fallbacks_total",
			Help: "Webhook plan lookups that fell back to the default paid plan.",
		},
		[]string{"event_type"},
	)
)

func IncWebhookEvent(eventType, result, source string) {
	webhookEventsTotal.WithLabelValues(norm(eventType), norm(result), norm(source)).Inc()
}

func IncWebhookSignatureFailure() { webhookSignatureFailures.Inc() }

func IncPlanFallback(eventType string) {
	planResolutionFallbacks.WithLabelValues(norm(eventType)).Inc()
}
