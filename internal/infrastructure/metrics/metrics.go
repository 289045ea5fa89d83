package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatdesk",
			Subsystem: "chat_api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatdesk",
			Subsystem: "chat_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	ChatsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatdesk",
			Subsystem: "chat_api",
			Name:      "chats_created_total",
			Help:      "Total chats created",
		},
	)

	TokensPromptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatdesk",
			Subsystem: "chat_api",
			Name:      "tokens_prompt_total",
			Help:      "Total prompt tokens consumed",
		},
		[]string{"model"},
	)

	TokensCompletionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatdesk",
			Subsystem: "chat_api",
			Name:      "tokens_completion_total",
			Help:      "Total completion tokens generated",
		},
		[]string{"model"},
	)

	ProviderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatdesk",
			Subsystem: "chat_api",
			Name:      "provider_errors_total",
			Help:      "Total provider call failures",
		},
		[]string{"operation"},
	)

	StreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chatdesk",
			Subsystem: "chat_api",
			Name:      "streams_active",
			Help:      "Chat completion streams currently open",
		},
	)
)

// NormalizeEndpoint collapses path parameters so the endpoint label stays low
// cardinality.
func NormalizeEndpoint(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if strings.HasPrefix(part, "chat_") || strings.HasPrefix(part, "msg_") {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
