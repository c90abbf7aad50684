package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/DanNixon/matrix-remote-closedown/internal/actuation"
	"github.com/DanNixon/matrix-remote-closedown/internal/authz"
	"github.com/DanNixon/matrix-remote-closedown/internal/command"
	"github.com/DanNixon/matrix-remote-closedown/internal/events"
	"github.com/DanNixon/matrix-remote-closedown/internal/metrics"
	"github.com/DanNixon/matrix-remote-closedown/internal/models"
	"github.com/DanNixon/matrix-remote-closedown/internal/status"
	"github.com/rs/zerolog"
)

const projectLink = "[matrix-remote-closedown](https://github.com/DanNixon/matrix-remote-closedown)"

// Notification kinds, used as metric labels.
const (
	notificationHelp       = "help"
	notificationUsageError = "usage_error"
	notificationStatus     = "status"
	notificationMessage    = "message"
)

// ProcessingService is the event dispatch core. It turns chat messages into
// actuation commands and telemetry into chat notifications. The station
// status is owned by the single loop goroutine.
type ProcessingService struct {
	Bus    *events.Bus
	Filter *authz.Filter
	// Station is the configured name, echoed as written in notifications.
	Station string
	Rooms   []string
	// Operators are listed in help and message notifications.
	Operators []string
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sub    *events.Subscription
}

// NewProcessingService initializes a new ProcessingService.
func NewProcessingService(bus *events.Bus, filter *authz.Filter, station string, rooms, operators []string,
	m *metrics.Metrics, logger zerolog.Logger) *ProcessingService {

	return &ProcessingService{
		Bus:       bus,
		Filter:    filter,
		Station:   station,
		Rooms:     rooms,
		Operators: operators,
		Metrics:   m,
		Logger:    logger,
	}
}

// Start subscribes to the bus and launches the dispatch loop.
func (p *ProcessingService) Start() error {
	if p.ctx != nil {
		p.Logger.Warn().Msg("ProcessingService is already running")
		return errors.New("processing service is already running")
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.sub = p.Bus.Subscribe("processing", events.ChatMessageReceived{}, events.TelemetryReceived{}, events.Exit{})

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(p.ctx, p.sub)
	}()

	p.Logger.Info().Str("station", p.Station).Int("rooms", len(p.Rooms)).Msg("ProcessingService started successfully")
	return nil
}

// Stop cancels the dispatch loop and waits for it to return.
func (p *ProcessingService) Stop() error {
	if p.ctx == nil {
		p.Logger.Warn().Msg("ProcessingService is not running")
		return errors.New("processing service is not running")
	}

	p.cancel()
	p.wg.Wait()
	p.sub.Close()

	p.ctx = nil
	p.cancel = nil
	p.sub = nil

	p.Logger.Info().Msg("ProcessingService stopped successfully")
	return nil
}

// run consumes the bus until the context is cancelled or an Exit event arrives.
func (p *ProcessingService) run(ctx context.Context, sub *events.Subscription) {
	var current models.StationStatus

	for {
		// Shutdown wins over pending input.
		select {
		case <-ctx.Done():
			p.Logger.Info().Msg("ProcessingService stopping gracefully")
			return
		default:
		}

		select {
		case <-ctx.Done():
			p.Logger.Info().Msg("ProcessingService stopping gracefully")
			return
		case <-sub.Done():
			return
		case event := <-sub.C():
			var outbound []events.Event
			switch e := event.(type) {
			case events.Exit:
				p.Logger.Debug().Msg("Exit event received")
				return
			case events.ChatMessageReceived:
				outbound = p.handleChatMessage(e)
			case events.TelemetryReceived:
				current, outbound = p.handleTelemetry(current, e)
			}
			for _, out := range outbound {
				p.Bus.Publish(out)
			}
		}
	}
}

// handleChatMessage evaluates one inbound chat message and returns the events it produces.
func (p *ProcessingService) handleChatMessage(e events.ChatMessageReceived) []events.Event {
	decision := p.Filter.Evaluate(authz.Message{Room: e.Room, Sender: e.Sender, Body: e.Body})

	switch decision.Verdict {
	case authz.RespondWithUsageError:
		p.Metrics.CommandRejected("malformed")
		p.Metrics.NotificationQueued(notificationUsageError)
		return []events.Event{events.ChatMessageSend{
			Room: e.Room,
			Body: p.usageError(e.Sender),
		}}

	case authz.RouteCommand:
		return p.routeCommand(e.Room, decision.Command)

	default:
		switch decision.Reason {
		case authz.ReasonNotACommand, authz.ReasonUnwatchedRoom:
		default:
			p.Metrics.CommandRejected(string(decision.Reason))
		}
		return nil
	}
}

func (p *ProcessingService) routeCommand(room string, cmd command.Command) []events.Event {
	p.Logger.Info().Str("room", room).Str("operation", cmd.Operation.String()).Msg("Processing command")
	p.Metrics.CommandRouted(cmd.Operation.String())

	if cmd.Operation == command.Help {
		p.Metrics.NotificationQueued(notificationHelp)
		return []events.Event{events.ChatMessageSend{Room: room, Body: p.help()}}
	}

	actuationCmd, ok := actuation.Build(cmd.Operation)
	if !ok {
		return nil
	}
	payload, err := actuationCmd.Encode()
	if err != nil {
		p.Logger.Error().Err(err).Msg("Failed to serialize command message")
		return nil
	}
	return []events.Event{events.TelemetryPublish{Payload: string(payload)}}
}

// handleTelemetry decodes one telemetry payload and returns the new status and the notifications to send.
func (p *ProcessingService) handleTelemetry(current models.StationStatus, e events.TelemetryReceived) (models.StationStatus, []events.Event) {
	report, err := models.DecodeTelemetryReport([]byte(e.Payload))
	if err != nil {
		p.Logger.Warn().Err(err).Str("topic", e.Topic).Msg("Failed to parse response from MQTT message")
		p.Metrics.TelemetryReceived(metrics.TelemetryInvalid)
		return current, nil
	}
	p.Metrics.TelemetryReceived(metrics.TelemetryDecoded)
	p.Logger.Info().Interface("status", report.Status).Time("timestamp", report.Timestamp).Msg("Received response/status message")

	var outbound []events.Event

	next, changed := status.Observe(current, report.Status)
	if changed {
		p.Metrics.StatusChanged()
		outbound = append(outbound, p.toAllRooms(notificationStatus, p.statusNotification(report))...)
	}

	if report.HasMessage() {
		outbound = append(outbound, p.toAllRooms(notificationMessage, p.messageNotification(report))...)
	}

	return next, outbound
}

func (p *ProcessingService) toAllRooms(kind, body string) []events.Event {
	out := make([]events.Event, 0, len(p.Rooms))
	for _, room := range p.Rooms {
		p.Metrics.NotificationQueued(kind)
		out = append(out, events.ChatMessageSend{Room: room, Body: body})
	}
	return out
}

func (p *ProcessingService) operatorList() string {
	return strings.Join(p.Operators, ", ")
}

func (p *ProcessingService) help() string {
	text := fmt.Sprintf("%s for station **%s**.<br>\nUsage: !%s COMMAND<br>\nCommands: %s",
		projectLink, p.Station, p.Station, strings.Join(command.Verbs, ", "))
	if len(p.Operators) > 0 {
		text += "<br>\nStation operators: " + p.operatorList()
	}
	return text
}

func (p *ProcessingService) usageError(sender string) string {
	return fmt.Sprintf("%s: That command failed, try `!%s help` for usage details", sender, p.Station)
}

func (p *ProcessingService) statusNotification(report models.TelemetryReport) string {
	s := report.Status
	return fmt.Sprintf("**%s** at %s<br>\nTX Power: [%s] [%s]<br>\nPTT: [%s] [%s]",
		p.Station,
		formatTimestamp(report.Timestamp),
		s.TxPowerEnabled.Render("ENABLED", "DISABLED", "unknown"),
		s.TxPowerActive.Render("ON", "OFF", "unknown"),
		s.PttEnabled.Render("ENABLED", "DISABLED", "unknown"),
		s.PttActive.Render("ON AIR", "IDLE", "unknown"),
	)
}

func (p *ProcessingService) messageNotification(report models.TelemetryReport) string {
	return fmt.Sprintf("(%s)<br>\n**%s** at %s<br>\nMessage: %s",
		p.operatorList(), p.Station, formatTimestamp(report.Timestamp), *report.Message)
}

func formatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}
