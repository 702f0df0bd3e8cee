package observability

import (
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce        sync.Once
	realtimeEventsTotal *prometheus.CounterVec
	duplicateMessages   prometheus.Counter
	expiryCorrections   prometheus.Counter
	seenRollbacks       prometheus.Counter
	cooldownRejections  prometheus.Counter
	conversationsMerged prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the chat sync
// and listing expiry paths.
func RegisterMetrics() {
	registerOnce.Do(func() {
		realtimeEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketplace_realtime_events_total",
			Help: "Change-feed events routed to live conversation views.",
		}, []string{"kind"})

		duplicateMessages = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_duplicate_messages_total",
			Help: "Messages dropped because the view already held their id.",
		})

		expiryCorrections = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_expiry_corrections_total",
			Help: "Approved listings written back as expired.",
		})

		seenRollbacks = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_seen_rollbacks_total",
			Help: "Seen-flag changes reverted after the remote write failed.",
		})

		cooldownRejections = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_cooldown_rejections_total",
			Help: "Message sends refused by the per-session cooldown.",
		})

		conversationsMerged = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketplace_conversations_merged_total",
			Help: "Duplicate conversations folded into a survivor.",
		})

		prometheus.MustRegister(
			realtimeEventsTotal,
			duplicateMessages,
			expiryCorrections,
			seenRollbacks,
			cooldownRejections,
			conversationsMerged,
		)
	})
}

func RealtimeEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return realtimeEventsTotal
}

func DuplicateMessages() prometheus.Counter {
	RegisterMetrics()
	return duplicateMessages
}

func ExpiryCorrections() prometheus.Counter {
	RegisterMetrics()
	return expiryCorrections
}

func SeenRollbacks() prometheus.Counter {
	RegisterMetrics()
	return seenRollbacks
}

func CooldownRejections() prometheus.Counter {
	RegisterMetrics()
	return cooldownRejections
}

func ConversationsMerged() prometheus.Counter {
	RegisterMetrics()
	return conversationsMerged
}

// MetricsHandler exposes the Prometheus scrape endpoint via Echo.
func MetricsHandler() echo.HandlerFunc {
	RegisterMetrics()
	return echo.WrapHandler(promhttp.Handler())
}
