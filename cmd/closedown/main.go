package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/DanNixon/matrix-remote-closedown/internal/constants"
	"github.com/DanNixon/matrix-remote-closedown/internal/events"
	"github.com/DanNixon/matrix-remote-closedown/internal/metrics"
	"github.com/DanNixon/matrix-remote-closedown/internal/service_registry"
	"github.com/DanNixon/matrix-remote-closedown/internal/utils"
	"github.com/DanNixon/matrix-remote-closedown/pkg/file"
	"github.com/DanNixon/matrix-remote-closedown/pkg/matrix"
	"github.com/DanNixon/matrix-remote-closedown/pkg/mqtt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "matrix-remote-closedown",
		Short:        "Remote closedown of a radio station over Matrix and MQTT",
		SilenceUsage: true,
		RunE:         run,
	}
	utils.BindFlags(rootCmd.Flags())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, fileClient file.FileOperations) (*utils.Config, error) {
	config := utils.DefaultConfig()
	if path, _ := cmd.Flags().GetString(utils.FlagConfig); path != "" {
		var err error
		if config, err = utils.LoadConfig(path, fileClient); err != nil {
			return nil, err
		}
	}

	if err := config.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := config.ApplyFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	if err := config.ResolveSecrets(fileClient); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func run(cmd *cobra.Command, _ []string) error {
	fileClient := file.NewFileService()
	config, err := loadConfig(cmd, fileClient)
	if err != nil {
		return err
	}

	log, err := newLogger(os.Stdout, config.Logging.Level, config.Logging.Format)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Generate a unique MQTT Client ID by appending a UUID
	config.MQTT.ClientID = config.MQTT.ClientID + "-" + uuid.New().String()
	log.Info().Str("client_id", config.MQTT.ClientID).Msg("Using MQTT Client ID")

	// Initialize the shared MQTT connection
	mqttClient := mqtt.NewMqttService(log.With().Str("component", "mqtt").Logger())
	err = mqttClient.Initialize(mqtt.Options{
		Broker:            config.MQTT.Broker,
		ClientID:          config.MQTT.ClientID,
		Username:          config.MQTT.Username,
		Password:          config.MQTT.Password,
		KeepAlive:         constants.MQTTKeepAlive,
		ConnectTimeout:    constants.MQTTConnectTimeout,
		MaxReconnectDelay: constants.MQTTMaxReconnectDelay,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize MQTT connection")
		return err
	}
	defer mqttClient.Disconnect(constants.MQTTDisconnectQuiesce)

	session, err := loginMatrix(ctx, config, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to log in to Matrix")
		return err
	}

	m := metrics.New()
	bus := events.NewBus(config.Bus.Capacity, config.Bus.HandoffTimeout, m, log.With().Str("component", "bus").Logger())
	exitSub := bus.Subscribe("main", events.Exit{})
	defer exitSub.Close()

	serviceRegistry := service_registry.NewServiceRegistry(mqttClient, session, bus, m, config.ShutdownTimeout, log)
	if err := serviceRegistry.RegisterServices(config); err != nil {
		return err
	}
	if err := serviceRegistry.StartServices(); err != nil {
		return err
	}
	log.Info().Str("station", config.Station.Name).Msg("All services started successfully")

	waitForShutdown(ctx, exitSub)
	exitSub.Close()

	log.Info().Msg("Shutting down gracefully...")
	bus.Publish(events.Exit{})
	if err := serviceRegistry.StopServices(); err != nil {
		return err
	}
	return nil
}

// waitForShutdown blocks until a signal arrives or some component publishes Exit.
func waitForShutdown(ctx context.Context, sub *events.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-sub.C():
			if _, ok := event.(events.Exit); ok {
				return
			}
		}
	}
}

func loginMatrix(ctx context.Context, config *utils.Config, log zerolog.Logger) (*matrix.Session, error) {
	client, err := matrix.NewClient(matrix.ClientConfig{
		HomeserverURL: config.Matrix.Homeserver,
		Logger:        log.With().Str("component", "matrix").Logger(),
	})
	if err != nil {
		return nil, err
	}

	versions, err := client.ServerVersions(ctx)
	if err != nil {
		return nil, err
	}
	supported, err := versions.SupportsVersion(constants.MatrixMinimumVersion)
	if err != nil {
		return nil, err
	}
	if !supported {
		return nil, fmt.Errorf("homeserver %s does not support client-server API v%s or later (advertises %v)",
			config.Matrix.Homeserver, constants.MatrixMinimumVersion, versions.Versions)
	}

	return client.Login(ctx, config.Matrix.Username, config.Matrix.Password, constants.MatrixDeviceName)
}
