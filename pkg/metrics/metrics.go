package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atenda",
			Name:      "booking_commands_total",
			Help:      "Booking commands by type and outcome.",
		},
		[]string{"command", "outcome"},
	)

	conflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "atenda",
			Name:      "slot_conflicts_total",
			Help:      "Slot conflicts detected during booking commands.",
		},
	)

	outboxPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "atenda",
			Name:      "outbox_events_total",
			Help:      "Outbox events by dispatch result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(commands, conflicts, outboxPublished)
	})
}

// IncCommand counts one booking command with its outcome label.
func IncCommand(command, outcome string) {
	commands.WithLabelValues(command, outcome).Inc()
}

// IncConflict counts one detected slot conflict.
func IncConflict() {
	conflicts.Inc()
}

// IncOutbox counts one outbox dispatch attempt result (sent, retried, dead).
func IncOutbox(result string) {
	outboxPublished.WithLabelValues(result).Inc()
}
