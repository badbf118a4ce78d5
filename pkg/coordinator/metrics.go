package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sketchcast"

var (
	connections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections",
		Help:      "The number of connections in the room.",
	})
	broadcasterPresent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "broadcaster_present",
		Help:      "1 if the room has a broadcaster.",
	})
	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "Inbound messages applied to the room by type.",
	}, []string{"type"})
	droppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dropped_total",
		Help:      "Messages that were not delivered or applied.",
	}, []string{"reason"})
)

const (
	dropQueueFull   = "queue-full"
	dropClosed      = "closed"
	dropRateLimited = "rate-limited"
	dropMalformed   = "malformed"
	dropUnknown     = "unknown-target"
)
