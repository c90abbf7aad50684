package service_registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/DanNixon/matrix-remote-closedown/internal/authz"
	"github.com/DanNixon/matrix-remote-closedown/internal/constants"
	"github.com/DanNixon/matrix-remote-closedown/internal/events"
	"github.com/DanNixon/matrix-remote-closedown/internal/metrics"
	"github.com/DanNixon/matrix-remote-closedown/internal/registry"
	"github.com/DanNixon/matrix-remote-closedown/internal/services"
	"github.com/DanNixon/matrix-remote-closedown/internal/utils"
	"github.com/DanNixon/matrix-remote-closedown/pkg/mqtt"
	"github.com/rs/zerolog"
)

// ErrStopTimeout is returned for a service that did not stop in time.
var ErrStopTimeout = errors.New("service did not stop in time")

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]registry.Service // Stores registered services
	serviceKeys []string                    // Maintains order of service registration
	stopTimeout time.Duration
	mqttClient  mqtt.MQTTClient
	chatSession services.ChatSession
	bus         *events.Bus
	metrics     *metrics.Metrics
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
func NewServiceRegistry(mqttClient mqtt.MQTTClient, chatSession services.ChatSession, bus *events.Bus,
	m *metrics.Metrics, stopTimeout time.Duration, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:    make(map[string]registry.Service),
		stopTimeout: stopTimeout,
		mqttClient:  mqttClient,
		chatSession: chatSession,
		bus:         bus,
		metrics:     m,
		Logger:      logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc registry.Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Services returns the registered service names in start order.
func (sr *ServiceRegistry) Services() []string {
	return append([]string(nil), sr.serviceKeys...)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			// Stop already started services before returning
			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.stopService(startedServices[i])
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.stopService(name); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// stopService stops one service, abandoning it if Stop outlives the stop timeout.
func (sr *ServiceRegistry) stopService(name string) error {
	done := make(chan error, 1)
	go func() {
		done <- sr.services[name].Stop()
	}()

	timer := time.NewTimer(sr.stopTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		sr.Logger.Error().Dur("timeout", sr.stopTimeout).Msgf("Service %s did not stop, abandoning it", name)
		return ErrStopTimeout
	}
}

// RegisterServices creates and registers the bridge services based on configuration.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config) error {
	filter := authz.NewFilter(authz.FilterConfig{
		BotUserID:             sr.chatSession.UserID(),
		StationName:           config.Station.Name,
		Rooms:                 config.Matrix.Rooms,
		Operators:             config.Station.Operators,
		QuietForeignMalformed: config.Station.QuietForeignMalformed,
	}, sr.Logger.With().Str("service", "authz").Logger())

	// Consumers start before producers so no early event is missed.
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func(logger zerolog.Logger) (registry.Service, error)
	}{
		{
			name:    "metrics",
			enabled: config.Observability.Address != "",
			constructor: func(logger zerolog.Logger) (registry.Service, error) {
				return services.NewMetricsService(config.Observability.Address, sr.metrics, logger), nil
			},
		},
		{
			name:    "processing",
			enabled: true,
			constructor: func(logger zerolog.Logger) (registry.Service, error) {
				return services.NewProcessingService(
					sr.bus,
					filter,
					config.Station.Name,
					config.Matrix.Rooms,
					config.Station.Operators,
					sr.metrics,
					logger,
				), nil
			},
		},
		{
			name:    "mqtt",
			enabled: true,
			constructor: func(logger zerolog.Logger) (registry.Service, error) {
				return services.NewMQTTBridgeService(
					config.MQTT.StatusTopic,
					config.MQTT.CommandTopic,
					config.MQTT.QOS,
					config.MQTT.PublishTimeout,
					config.MQTT.Workers,
					sr.mqttClient,
					sr.bus,
					sr.metrics,
					logger,
				), nil
			},
		},
		{
			name:    "matrix",
			enabled: true,
			constructor: func(logger zerolog.Logger) (registry.Service, error) {
				return services.NewMatrixBridgeService(
					sr.chatSession,
					config.Matrix.Rooms,
					config.Matrix.SyncTimeout,
					config.Matrix.RetryDelay,
					constants.MatrixSendTimeout,
					sr.bus,
					sr.metrics,
					logger,
				), nil
			},
		},
	}

	// Register services in the predefined order
	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor(sr.Logger.With().Str("service", svc.name).Logger())
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}
