// Package metrics provides Prometheus metrics for the chat service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks the number of open websocket connections.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_active_connections",
			Help: "Number of currently open chat connections",
		},
	)

	// ActiveRooms tracks rooms with at least one local member.
	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_active_rooms",
			Help: "Number of conversation rooms with at least one member",
		},
	)

	// RoomJoins counts join attempts by outcome.
	RoomJoins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_room_joins_total",
			Help: "Total number of joinRoom events processed",
		},
		[]string{"result"},
	)

	// MessagesPersisted counts messages durably stored.
	MessagesPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Total number of chat messages persisted",
		},
	)

	// MessageErrors counts messageError events by reason.
	MessageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_message_errors_total",
			Help: "Total number of messageError events sent to clients",
		},
		[]string{"reason"},
	)

	// DroppedFrames counts outbound frames dropped because a client queue was full.
	DroppedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_dropped_frames_total",
			Help: "Total number of outbound frames dropped for slow clients",
		},
	)

	// HistoryRequests counts history requests by HTTP status.
	HistoryRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_history_requests_total",
			Help: "Total number of message history requests",
		},
		[]string{"status"},
	)

	// StoreDuration tracks message store latency per operation.
	StoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_store_duration_seconds",
			Help:    "Duration of message store operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation", "result"},
	)
)

// RecordConnectionOpened increments the open connection gauge.
func RecordConnectionOpened() {
	ActiveConnections.Inc()
}

// RecordConnectionClosed decrements the open connection gauge.
func RecordConnectionClosed() {
	ActiveConnections.Dec()
}

func RecordJoin(result string) {
	RoomJoins.WithLabelValues(result).Inc()
}

func RecordMessageError(reason string) {
	MessageErrors.WithLabelValues(reason).Inc()
}
