// Package metrics holds the bridge's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricPrefix = "closedown_"

// Telemetry results.
const (
	TelemetryDecoded = "decoded"
	TelemetryInvalid = "invalid"
)

// Metrics groups every instrument the bridge updates.
type Metrics struct {
	Registry *prometheus.Registry

	commands          *prometheus.CounterVec
	commandRejections *prometheus.CounterVec
	telemetryMessages *prometheus.CounterVec
	statusChanges     prometheus.Counter
	notifications     *prometheus.CounterVec
	droppedEvents     *prometheus.CounterVec
	transportErrors   *prometheus.CounterVec
}

// New creates the instruments and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "commands_total",
				Help: "Routed commands by operation",
			},
			[]string{"operation"},
		),
		commandRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "command_rejections_total",
				Help: "Chat messages that looked like commands but were not routed, by reason",
			},
			[]string{"reason"},
		),
		telemetryMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "telemetry_messages_total",
				Help: "Telemetry payloads received by decode result",
			},
			[]string{"result"},
		),
		statusChanges: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "status_changes_total",
				Help: "Station status changes announced to chat",
			},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Chat notifications queued by kind",
			},
			[]string{"kind"},
		),
		droppedEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bus_dropped_events_total",
				Help: "Events dropped because a bus subscriber was lagging",
			},
			[]string{"event"},
		),
		transportErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transport_errors_total",
				Help: "Failed sends and publishes by transport",
			},
			[]string{"transport"},
		),
	}

	m.Registry.MustRegister(
		m.commands,
		m.commandRejections,
		m.telemetryMessages,
		m.statusChanges,
		m.notifications,
		m.droppedEvents,
		m.transportErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// CommandRouted counts a command that passed the filter.
func (m *Metrics) CommandRouted(operation string) {
	m.commands.WithLabelValues(operation).Inc()
}

// CommandRejected counts a command-like message that was dropped or refused.
func (m *Metrics) CommandRejected(reason string) {
	m.commandRejections.WithLabelValues(reason).Inc()
}

// TelemetryReceived counts a telemetry payload.
func (m *Metrics) TelemetryReceived(result string) {
	m.telemetryMessages.WithLabelValues(result).Inc()
}

// StatusChanged counts an announced status change.
func (m *Metrics) StatusChanged() {
	m.statusChanges.Inc()
}

// NotificationQueued counts a chat message handed to the bus.
func (m *Metrics) NotificationQueued(kind string) {
	m.notifications.WithLabelValues(kind).Inc()
}

// EventDropped implements events.DropRecorder.
func (m *Metrics) EventDropped(name string) {
	m.droppedEvents.WithLabelValues(name).Inc()
}

// TransportError counts a failed send or publish.
func (m *Metrics) TransportError(transport string) {
	m.transportErrors.WithLabelValues(transport).Inc()
}
