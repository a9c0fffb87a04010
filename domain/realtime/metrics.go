package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections",
		Help: "Currently open WebSocket connections on this replica.",
	})

	eventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ws_events_delivered_total",
		Help: "Events enqueued to local WebSocket subscribers.",
	})
)
