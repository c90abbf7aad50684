package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	// Setup
	m := New()

	// Execute
	m.CommandRouted("power_on")
	m.CommandRouted("power_on")
	m.CommandRejected("unauthorized")
	m.TelemetryReceived(TelemetryInvalid)
	m.StatusChanged()
	m.EventDropped("chat_message_send")
	m.TransportError("mqtt")
	m.NotificationQueued("status")

	// Assert
	assert.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues("power_on")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commandRejections.WithLabelValues("unauthorized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.telemetryMessages.WithLabelValues(TelemetryInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statusChanges))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.droppedEvents.WithLabelValues("chat_message_send")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transportErrors.WithLabelValues("mqtt")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("status")))
}

func TestMetrics_RegistryGathers(t *testing.T) {
	m := New()
	m.CommandRouted("help")

	families, err := m.Registry.Gather()
	assert.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["closedown_commands_total"])
}
