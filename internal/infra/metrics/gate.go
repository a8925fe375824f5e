package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(gateDecisionsTotal, checkoutsTotal) }

var (
	gateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscription_gate_decisions_total",
			Help: "Subscription gate outcomes by reason.",
		},
		[]string{"allowed", "reason"},
	)

	checkoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_checkouts_total",
			Help: "Checkout sessions by plan and status (free|created|failed).",
		},
		[]string{"plan", "status"},
	)
)

func IncGateDecision(allowed bool, reason string) {
	a := "false"
	if allowed {
		a = "true"
		reason = "ok"
	}
	gateDecisionsTotal.WithLabelValues(a, norm(reason)).Inc()
}

func IncCheckout(plan, status string) {
	checkoutsTotal.WithLabelValues(norm(plan), norm(status)).Inc()
}
