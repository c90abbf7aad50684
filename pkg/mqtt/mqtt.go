package mqtt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

var (
	// ErrNotConnected is returned when the broker connection could not be established.
	ErrNotConnected = errors.New("mqtt: not connected")
	// ErrPublishTimeout is returned when a token does not complete in time.
	ErrPublishTimeout = errors.New("mqtt: timed out waiting for broker")
)

// MQTTClient defines the interface for an MQTT client.
type MQTTClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
}

// Options configures the broker connection.
type Options struct {
	Broker            string
	ClientID          string
	Username          string
	Password          string
	KeepAlive         time.Duration
	ConnectTimeout    time.Duration
	MaxReconnectDelay time.Duration
}

type subscription struct {
	qos      byte
	callback mqtt.MessageHandler
}

// MqttService provides methods for MQTT operations.
// Subscriptions are restored every time the connection is (re)established.
type MqttService struct {
	client mqtt.Client
	logger zerolog.Logger

	mu            sync.Mutex
	subscriptions map[string]subscription
}

var _ MQTTClient = (*MqttService)(nil)

// NewMqttService creates a new MqttService instance.
func NewMqttService(logger zerolog.Logger) *MqttService {
	return &MqttService{
		logger:        logger,
		subscriptions: make(map[string]subscription),
	}
}

// Initialize configures the client and connects to the broker.
// Reconnection after a lost connection is handled by paho.
func (s *MqttService) Initialize(o Options) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(o.KeepAlive)
	opts.SetMaxReconnectInterval(o.MaxReconnectDelay)
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn().Err(err).Msg("Lost connection to MQTT broker")
	})

	s.client = mqtt.NewClient(opts)

	token := s.client.Connect()
	if !token.WaitTimeout(o.ConnectTimeout) {
		return fmt.Errorf("%w: connect to %s timed out after %v", ErrNotConnected, o.Broker, o.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	}

	s.logger.Info().Str("broker", o.Broker).Str("client_id", o.ClientID).Msg("Connected to MQTT broker")
	return nil
}

// onConnect re-subscribes to every remembered topic.
func (s *MqttService) onConnect(c mqtt.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for topic, sub := range s.subscriptions {
		token := c.Subscribe(topic, sub.qos, sub.callback)
		go func(topic string) {
			token.Wait()
			if err := token.Error(); err != nil {
				s.logger.Error().Err(err).Str("topic", topic).Msg("Failed to restore subscription")
				return
			}
			s.logger.Info().Str("topic", topic).Msg("Subscription restored")
		}(topic)
	}
}

// Publish sends a message to the specified topic.
func (s *MqttService) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return s.client.Publish(topic, qos, retained, payload)
}

// Subscribe subscribes to the specified topic with a message handler.
func (s *MqttService) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	s.mu.Lock()
	s.subscriptions[topic] = subscription{qos: qos, callback: callback}
	s.mu.Unlock()
	return s.client.Subscribe(topic, qos, callback)
}

// Unsubscribe unsubscribes from the specified topics.
func (s *MqttService) Unsubscribe(topics ...string) mqtt.Token {
	s.mu.Lock()
	for _, topic := range topics {
		delete(s.subscriptions, topic)
	}
	s.mu.Unlock()
	return s.client.Unsubscribe(topics...)
}

// Disconnect gracefully disconnects the MQTT client.
func (s *MqttService) Disconnect(quiesce uint) {
	s.client.Disconnect(quiesce)
	s.logger.Info().Msg("Disconnected from MQTT broker")
}

// WaitToken waits for token to complete within timeout.
func WaitToken(token mqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return ErrPublishTimeout
	}
	return token.Error()
}
