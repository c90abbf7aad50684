package constants

import "time"

const (
	DefaultMQTTBroker   = "tcp://localhost:1883"
	DefaultMQTTClientID = "matrix-remote-closedown"

	// DefaultPublishTimeout bounds how long a publish waits for the broker.
	DefaultPublishTimeout = 5 * time.Second
	DefaultPublishWorkers = 2

	// MQTTKeepAlive matches the station firmware's expectations.
	MQTTKeepAlive         = 5 * time.Second
	MQTTConnectTimeout    = 10 * time.Second
	MQTTMaxReconnectDelay = 5 * time.Second
	MQTTDisconnectQuiesce = 250 // milliseconds

	DefaultSyncTimeout    = 30 * time.Second
	DefaultSyncRetryDelay = 5 * time.Second
	MatrixDeviceName      = "matrix-remote-closedown"
	MatrixSendTimeout     = 10 * time.Second

	// MatrixMinimumVersion is the oldest client-server API version with the v3 endpoints.
	MatrixMinimumVersion = "1.1"

	DefaultObservabilityAddress = "127.0.0.1:9090"

	DefaultBusCapacity       = 16
	DefaultBusHandoffTimeout = 100 * time.Millisecond

	// DefaultShutdownTimeout bounds each service's Stop before it is abandoned.
	DefaultShutdownTimeout = 5 * time.Second
)
