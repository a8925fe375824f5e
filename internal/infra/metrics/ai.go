package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		aiTokensIn,
		aiTokensOut,
		aiTokensTotal,
		aiCallsLatencyMs,
		chatMessagesTotal,
	)
}

var (
	aiTokensIn = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_in",
			Help: "Sum of prompt (input) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiTokensOut = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_out",
			Help: "Sum of completion (output) tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_total",
			Help: "Sum of total tokens per provider/model.",
		},
		[]string{"provider", "model"},
	)

	aiCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ai_calls_latency_ms",
			Help:    "Completion call latency distribution in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000, 32000, 60000},
		},
		[]string{"provider", "model", "success"},
	)

	chatMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Chat messages by role and persistence result.",
		},
		[]string{"role", "result"}, // result: stored|store_failed
	)
)

func ObserveCompletion(provider, model string, tokensIn, tokensOut, tokensTotal int, latencyMs int64, success bool) {
	lbl := []string{norm(provider), norm(model)}
	if success {
		aiTokensIn.WithLabelValues(lbl...).Add(float64(tokensIn))
		aiTokensOut.WithLabelValues(lbl...).Add(float64(tokensOut))
		aiTokensTotal.WithLabelValues(lbl...).Add(float64(tokensTotal))
	}
	aiCallsLatencyMs.WithLabelValues(norm(provider), norm(model), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func IncChatMessage(role string, stored bool) {
	result := "stored"
	if !stored {
		result = "store_failed"
	}
	chatMessagesTotal.WithLabelValues(norm(role), result).Inc()
}
