// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesAppended = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chatify",
		Name:      "messages_appended_total",
		Help:      "Messages durably appended to a room log.",
	})

	PagesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chatify",
		Name:      "pages_created_total",
		Help:      "Log pages created by rollover.",
	})

	MutationConflicts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chatify",
		Name:      "page_mutation_conflicts_total",
		Help:      "Page writes retried after a concurrent version change.",
	})

	PublishFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatify",
		Name:      "publish_failures_total",
		Help:      "Room events that were stored but could not be broadcast.",
	}, []string{"event"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatify",
		Name:      "active_room_sessions",
		Help:      "Room sessions currently held by the registry.",
	})

	ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatify",
		Name:      "websocket_clients",
		Help:      "Open websocket connections.",
	})

	ScheduledDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatify",
		Name:      "scheduled_dispatch_total",
		Help:      "Scheduled message dispatch outcomes.",
	}, []string{"outcome"})

	DispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chatify",
		Name:      "scheduled_dispatch_cycle_seconds",
		Help:      "Duration of one dispatcher cycle.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		MessagesAppended,
		PagesCreated,
		MutationConflicts,
		PublishFailures,
		ActiveSessions,
		ConnectedClients,
		ScheduledDispatched,
		DispatchDuration,
	)
}

// Handler exposes the default registry for gin.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
