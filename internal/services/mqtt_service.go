package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DanNixon/matrix-remote-closedown/internal/events"
	"github.com/DanNixon/matrix-remote-closedown/internal/metrics"
	"github.com/DanNixon/matrix-remote-closedown/internal/utils"
	"github.com/DanNixon/matrix-remote-closedown/pkg/mqtt"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

const transportMQTT = "mqtt"

// MQTTBridgeService forwards station telemetry onto the bus and publishes
// actuation commands from the bus to the command topic.
type MQTTBridgeService struct {
	StatusTopic    string
	CommandTopic   string
	QOS            int
	PublishTimeout time.Duration
	Workers        int
	MqttClient     mqtt.MQTTClient
	Bus            *events.Bus
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sub    *events.Subscription
	pool   *utils.WorkerPool
}

// NewMQTTBridgeService initializes a new MQTTBridgeService.
func NewMQTTBridgeService(statusTopic, commandTopic string, qos int, publishTimeout time.Duration, workers int,
	mqttClient mqtt.MQTTClient, bus *events.Bus, m *metrics.Metrics, logger zerolog.Logger) *MQTTBridgeService {

	return &MQTTBridgeService{
		StatusTopic:    statusTopic,
		CommandTopic:   commandTopic,
		QOS:            qos,
		PublishTimeout: publishTimeout,
		Workers:        workers,
		MqttClient:     mqttClient,
		Bus:            bus,
		Metrics:        m,
		Logger:         logger,
	}
}

// Start subscribes to the status topic and starts forwarding commands.
func (s *MQTTBridgeService) Start() error {
	if s.ctx != nil {
		s.Logger.Warn().Msg("MQTTBridgeService is already running")
		return errors.New("mqtt bridge service is already running")
	}

	token := s.MqttClient.Subscribe(s.StatusTopic, byte(s.QOS), s.handleStatusMessage)
	if err := mqtt.WaitToken(token, s.PublishTimeout); err != nil {
		s.Logger.Error().Err(err).Str("topic", s.StatusTopic).Msg("Failed to subscribe to status topic")
		return fmt.Errorf("failed to subscribe to %s: %w", s.StatusTopic, err)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.sub = s.Bus.Subscribe("mqtt", events.TelemetryPublish{}, events.Exit{})
	s.pool = utils.NewWorkerPool(s.Workers)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.forwardCommands(s.ctx, s.sub)
	}()

	s.Logger.Info().
		Str("status_topic", s.StatusTopic).
		Str("command_topic", s.CommandTopic).
		Msg("MQTTBridgeService started successfully")
	return nil
}

// Stop unsubscribes from the status topic and waits for pending publishes.
func (s *MQTTBridgeService) Stop() error {
	if s.ctx == nil {
		s.Logger.Warn().Msg("MQTTBridgeService is not running")
		return errors.New("mqtt bridge service is not running")
	}

	s.cancel()
	s.wg.Wait()
	s.sub.Close()
	s.pool.Shutdown()

	var err error
	if unsubErr := mqtt.WaitToken(s.MqttClient.Unsubscribe(s.StatusTopic), s.PublishTimeout); unsubErr != nil {
		s.Logger.Warn().Err(unsubErr).Str("topic", s.StatusTopic).Msg("Failed to unsubscribe from status topic")
		err = fmt.Errorf("failed to unsubscribe from %s: %w", s.StatusTopic, unsubErr)
	}

	s.ctx = nil
	s.cancel = nil
	s.sub = nil
	s.pool = nil

	s.Logger.Info().Msg("MQTTBridgeService stopped successfully")
	return err
}

// handleStatusMessage is the paho callback for the status topic.
func (s *MQTTBridgeService) handleStatusMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	s.Logger.Debug().Str("topic", msg.Topic()).Int("bytes", len(msg.Payload())).Msg("Status message received")
	s.Bus.Publish(events.TelemetryReceived{Topic: msg.Topic(), Payload: string(msg.Payload())})
}

func (s *MQTTBridgeService) forwardCommands(ctx context.Context, sub *events.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case event := <-sub.C():
			switch e := event.(type) {
			case events.Exit:
				s.Logger.Debug().Msg("Exit event received")
				return
			case events.TelemetryPublish:
				payload := e.Payload
				if !s.pool.Submit(func() { s.publish(payload) }, s.PublishTimeout) {
					s.Logger.Error().Msg("Publish queue is full, dropping command message")
					s.Metrics.TransportError(transportMQTT)
				}
			}
		}
	}
}

func (s *MQTTBridgeService) publish(payload string) {
	token := s.MqttClient.Publish(s.CommandTopic, byte(s.QOS), false, payload)
	if err := mqtt.WaitToken(token, s.PublishTimeout); err != nil {
		s.Logger.Error().Err(err).Str("topic", s.CommandTopic).Msg("Failed to publish command message")
		s.Metrics.TransportError(transportMQTT)
		return
	}
	s.Logger.Info().Str("topic", s.CommandTopic).Str("payload", payload).Msg("Command message published")
}
