package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	outboxDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agentforge_events_outbox_depth",
		Help:    "Pending events in a subscriber outbox, observed at each publish.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})

	droppedLogsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentforge_events_dropped_logs_total",
		Help: "LOG_EMITTED events dropped because a subscriber outbox was full.",
	})

	overflowDisconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentforge_events_overflow_disconnects_total",
		Help: "Subscribers disconnected with an overflow error on a full outbox.",
	})
)
