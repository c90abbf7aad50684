package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/DanNixon/matrix-remote-closedown/internal/constants"
	"github.com/DanNixon/matrix-remote-closedown/pkg/file"
	"github.com/spf13/pflag"
)

// ErrInvalidConfig is returned by Validate for an unusable configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// MQTTConfig configures the telemetry/control broker connection.
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`          // MQTT broker address
	ClientID       string        `yaml:"client_id"`       // MQTT client ID (a unique suffix is appended)
	QOS            int           `yaml:"qos"`             // MQTT QoS for subscribe and publish, 0-2
	Username       string        `yaml:"username"`        // Optional broker username
	Password       string        `yaml:"password"`        // Optional broker password
	PasswordFile   string        `yaml:"password_file"`   // Read the password from this file instead
	StatusTopic    string        `yaml:"status_topic"`    // Topic the station publishes status on
	CommandTopic   string        `yaml:"command_topic"`   // Topic actuation commands are published to
	PublishTimeout time.Duration `yaml:"publish_timeout"` // Max wait for a publish to be acknowledged
	Workers        int           `yaml:"workers"`         // Publish worker pool size
}

// MatrixConfig configures the chat side.
type MatrixConfig struct {
	Username     string        `yaml:"username"`      // Fully qualified bot user ID, @local:server
	Password     string        `yaml:"password"`      // Bot account password
	PasswordFile string        `yaml:"password_file"` // Read the password from this file instead
	Homeserver   string        `yaml:"homeserver"`    // Homeserver base URL, derived from Username if empty
	Rooms        []string      `yaml:"rooms"`         // Rooms to watch for commands and notify
	SyncTimeout  time.Duration `yaml:"sync_timeout"`  // Long-poll timeout for /sync
	RetryDelay   time.Duration `yaml:"retry_delay"`   // Delay after a failed sync before trying again
}

// StationConfig identifies the controlled station and who may operate it.
type StationConfig struct {
	Name                  string   `yaml:"name"`                    // Station name used in commands
	Operators             []string `yaml:"operators"`               // Matrix IDs allowed to issue privileged commands
	QuietForeignMalformed bool     `yaml:"quiet_foreign_malformed"` // Stay silent on malformed commands for other stations
}

// Config represents the structure of the configuration file.
type Config struct {
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Matrix  MatrixConfig  `yaml:"matrix"`
	Station StationConfig `yaml:"station"`

	Observability struct {
		Address string `yaml:"address"` // Listen address for /metrics, empty disables
	} `yaml:"observability"`

	Logging struct {
		Level  string `yaml:"level"`  // debug, info, warn or error
		Format string `yaml:"format"` // json or console
	} `yaml:"logging"`

	Bus struct {
		Capacity       int           `yaml:"capacity"`        // Per-subscriber event buffer
		HandoffTimeout time.Duration `yaml:"handoff_timeout"` // Max wait when a subscriber buffer is full
	} `yaml:"bus"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // Max wait for each service to stop
}

// DefaultConfig returns a Config populated with defaults.
func DefaultConfig() *Config {
	config := &Config{}
	config.MQTT.Broker = constants.DefaultMQTTBroker
	config.MQTT.ClientID = constants.DefaultMQTTClientID
	config.MQTT.PublishTimeout = constants.DefaultPublishTimeout
	config.MQTT.Workers = constants.DefaultPublishWorkers
	config.Matrix.SyncTimeout = constants.DefaultSyncTimeout
	config.Matrix.RetryDelay = constants.DefaultSyncRetryDelay
	config.Observability.Address = constants.DefaultObservabilityAddress
	config.Logging.Level = "info"
	config.Logging.Format = "json"
	config.Bus.Capacity = constants.DefaultBusCapacity
	config.Bus.HandoffTimeout = constants.DefaultBusHandoffTimeout
	config.ShutdownTimeout = constants.DefaultShutdownTimeout
	return config
}

// LoadConfig loads the YAML configuration from the specified file on top of the defaults.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	config := DefaultConfig()

	exists, err := fileClient.IsFileExists(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("config file %s does not exist", filename)
	}

	if err := fileClient.ReadYamlFile(filename, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return config, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"MQTT_BROKER":           &c.MQTT.Broker,
		"MQTT_CLIENT_ID":        &c.MQTT.ClientID,
		"MQTT_USERNAME":         &c.MQTT.Username,
		"MQTT_PASSWORD":         &c.MQTT.Password,
		"MQTT_PASSWORD_FILE":    &c.MQTT.PasswordFile,
		"STATUS_TOPIC":          &c.MQTT.StatusTopic,
		"COMMAND_TOPIC":         &c.MQTT.CommandTopic,
		"MATRIX_USERNAME":       &c.Matrix.Username,
		"MATRIX_PASSWORD":       &c.Matrix.Password,
		"MATRIX_PASSWORD_FILE":  &c.Matrix.PasswordFile,
		"MATRIX_HOMESERVER":     &c.Matrix.Homeserver,
		"STATION_NAME":          &c.Station.Name,
		"OBSERVABILITY_ADDRESS": &c.Observability.Address,
		"LOG_LEVEL":             &c.Logging.Level,
	}
	for key, field := range strs {
		if v, ok := lookup(key); ok {
			*field = v
		}
	}

	if v, ok := lookup("MQTT_QOS"); ok {
		qos, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: MQTT_QOS: %w", ErrInvalidConfig, err)
		}
		c.MQTT.QOS = qos
	}
	return nil
}

// Flag names shared by BindFlags and ApplyFlags.
const (
	FlagConfig                = "config"
	flagMQTTBroker            = "mqtt-broker"
	flagMQTTClientID          = "mqtt-client-id"
	flagMQTTQOS               = "mqtt-qos"
	flagMQTTUsername          = "mqtt-username"
	flagMQTTPassword          = "mqtt-password"
	flagMQTTPasswordFile      = "mqtt-password-file"
	flagMatrixUsername        = "matrix-username"
	flagMatrixPassword        = "matrix-password"
	flagMatrixPasswordFile    = "matrix-password-file"
	flagMatrixHomeserver      = "matrix-homeserver"
	flagStatusTopic           = "status-topic"
	flagCommandTopic          = "command-topic"
	flagStationName           = "station-name"
	flagOperator              = "operator"
	flagRoom                  = "room"
	flagObservabilityAddress  = "observability-address"
	flagQuietForeignMalformed = "quiet-foreign-malformed"
	flagLogLevel              = "log-level"
	flagLogFormat             = "log-format"
)

// BindFlags registers the command-line flags. Flags only override the
// file and environment when explicitly given.
func BindFlags(fs *pflag.FlagSet) {
	defaults := DefaultConfig()
	fs.String(FlagConfig, "", "Path to a YAML configuration file")
	fs.String(flagMQTTBroker, defaults.MQTT.Broker, "Address of MQTT broker to connect to")
	fs.String(flagMQTTClientID, defaults.MQTT.ClientID, "Client ID to use when connecting to MQTT broker")
	fs.Int(flagMQTTQOS, defaults.MQTT.QOS, "MQTT QoS, must be 0, 1 or 2")
	fs.String(flagMQTTUsername, "", "MQTT username")
	fs.String(flagMQTTPassword, "", "MQTT password")
	fs.String(flagMQTTPasswordFile, "", "File containing the MQTT password")
	fs.String(flagMatrixUsername, "", "Matrix username (@user:server)")
	fs.String(flagMatrixPassword, "", "Matrix password")
	fs.String(flagMatrixPasswordFile, "", "File containing the Matrix password")
	fs.String(flagMatrixHomeserver, "", "Matrix homeserver URL (default https://<server part of username>)")
	fs.String(flagStatusTopic, "", "Topic to listen for status messages on")
	fs.String(flagCommandTopic, "", "Topic to send command messages on")
	fs.String(flagStationName, "", "Station name")
	fs.StringArray(flagOperator, nil, "Station operator Matrix ID (repeatable)")
	fs.StringArray(flagRoom, nil, "Matrix room to send messages to and listen for commands from (repeatable)")
	fs.String(flagObservabilityAddress, defaults.Observability.Address, "Address to serve metrics on, empty disables")
	fs.Bool(flagQuietForeignMalformed, false, "Do not reply to malformed commands addressed to other stations")
	fs.String(flagLogLevel, defaults.Logging.Level, "Log level (debug, info, warn, error)")
	fs.String(flagLogFormat, defaults.Logging.Format, "Log format (json, console)")
}

// ApplyFlags copies explicitly set flags over the configuration.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	strs := map[string]*string{
		flagMQTTBroker:           &c.MQTT.Broker,
		flagMQTTClientID:         &c.MQTT.ClientID,
		flagMQTTUsername:         &c.MQTT.Username,
		flagMQTTPassword:         &c.MQTT.Password,
		flagMQTTPasswordFile:     &c.MQTT.PasswordFile,
		flagMatrixUsername:       &c.Matrix.Username,
		flagMatrixPassword:       &c.Matrix.Password,
		flagMatrixPasswordFile:   &c.Matrix.PasswordFile,
		flagMatrixHomeserver:     &c.Matrix.Homeserver,
		flagStatusTopic:          &c.MQTT.StatusTopic,
		flagCommandTopic:         &c.MQTT.CommandTopic,
		flagStationName:          &c.Station.Name,
		flagObservabilityAddress: &c.Observability.Address,
		flagLogLevel:             &c.Logging.Level,
		flagLogFormat:            &c.Logging.Format,
	}
	for name, field := range strs {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*field = v
	}

	if fs.Changed(flagMQTTQOS) {
		qos, err := fs.GetInt(flagMQTTQOS)
		if err != nil {
			return err
		}
		c.MQTT.QOS = qos
	}

	lists := map[string]*[]string{
		flagOperator: &c.Station.Operators,
		flagRoom:     &c.Matrix.Rooms,
	}
	for name, field := range lists {
		if !fs.Changed(name) {
			continue
		}
		v, err := fs.GetStringArray(name)
		if err != nil {
			return err
		}
		*field = v
	}

	if fs.Changed(flagQuietForeignMalformed) {
		quiet, err := fs.GetBool(flagQuietForeignMalformed)
		if err != nil {
			return err
		}
		c.Station.QuietForeignMalformed = quiet
	}
	return nil
}

// ResolveSecrets replaces empty passwords with the contents of their password files.
func (c *Config) ResolveSecrets(fileClient file.FileOperations) error {
	secrets := []struct {
		path  string
		value *string
	}{
		{c.MQTT.PasswordFile, &c.MQTT.Password},
		{c.Matrix.PasswordFile, &c.Matrix.Password},
	}
	for _, s := range secrets {
		if s.path == "" || *s.value != "" {
			continue
		}
		secret, err := fileClient.ReadSecret(s.path)
		if err != nil {
			return err
		}
		*s.value = secret
	}
	return nil
}

// Validate checks the configuration and fills in derived values.
func (c *Config) Validate() error {
	var problems []error
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	server, ok := ServerName(c.Matrix.Username)
	if !ok {
		fail("matrix username %q must be of the form @user:server", c.Matrix.Username)
	}
	if c.Matrix.Password == "" {
		fail("matrix password is required")
	}
	if c.Matrix.Homeserver == "" && ok {
		c.Matrix.Homeserver = "https://" + server
	}
	for _, room := range c.Matrix.Rooms {
		if !strings.HasPrefix(room, "!") {
			fail("room %q must be a room ID starting with '!'", room)
		}
	}
	if len(c.Matrix.Rooms) == 0 {
		fail("at least one room is required")
	}

	if c.MQTT.Broker == "" {
		fail("mqtt broker is required")
	}
	if c.MQTT.StatusTopic == "" {
		fail("status topic is required")
	}
	if c.MQTT.CommandTopic == "" {
		fail("command topic is required")
	}
	if c.MQTT.QOS < 0 || c.MQTT.QOS > 2 {
		fail("mqtt qos must be 0, 1 or 2, got %d", c.MQTT.QOS)
	}
	if c.MQTT.Workers < 1 {
		c.MQTT.Workers = constants.DefaultPublishWorkers
	}

	c.Station.Name = strings.TrimSpace(c.Station.Name)
	if c.Station.Name == "" {
		fail("station name is required")
	}
	for _, operator := range c.Station.Operators {
		if _, ok := ServerName(operator); !ok {
			fail("operator %q must be a Matrix user ID", operator)
		}
	}

	if c.Bus.Capacity < 1 {
		c.Bus.Capacity = constants.DefaultBusCapacity
	}
	if c.Bus.HandoffTimeout <= 0 {
		fail("bus handoff timeout must be positive, got %s", c.Bus.HandoffTimeout)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(problems...))
	}
	return nil
}

// ServerName returns the server part of a Matrix user ID.
func ServerName(userID string) (string, bool) {
	if !strings.HasPrefix(userID, "@") {
		return "", false
	}
	local, server, found := strings.Cut(userID[1:], ":")
	if !found || local == "" || server == "" {
		return "", false
	}
	return server, true
}
