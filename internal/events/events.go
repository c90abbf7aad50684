// Package events defines the messages exchanged between the bridge's services
// and the broadcast bus that carries them.
package events

// Event is anything that can travel on the Bus.
type Event interface {
	eventName() string
}

// ChatMessageReceived is a text message seen in a chat room.
type ChatMessageReceived struct {
	Room   string
	Sender string
	Body   string
}

// ChatMessageSend asks the chat transport to post markdown to a room.
type ChatMessageSend struct {
	Room string
	Body string
}

// TelemetryReceived carries a raw payload from the station's status topic.
type TelemetryReceived struct {
	Topic   string
	Payload string
}

// TelemetryPublish asks the telemetry transport to publish a command payload.
type TelemetryPublish struct {
	Payload string
}

// Exit tells every consumer to stop.
type Exit struct{}

func (ChatMessageReceived) eventName() string { return "chat_message_received" }
func (ChatMessageSend) eventName() string     { return "chat_message_send" }
func (TelemetryReceived) eventName() string   { return "telemetry_received" }
func (TelemetryPublish) eventName() string    { return "telemetry_publish" }
func (Exit) eventName() string                { return "exit" }

// Name returns a stable identifier for the event type, used in logs and metrics.
func Name(e Event) string {
	if e == nil {
		return "nil"
	}
	return e.eventName()
}
