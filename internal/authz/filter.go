// Package authz decides whether an inbound chat message becomes a routed command.
package authz

import (
	"errors"
	"strings"

	"github.com/DanNixon/matrix-remote-closedown/internal/command"
	"github.com/DanNixon/matrix-remote-closedown/internal/utils"
	"github.com/rs/zerolog"
)

// Verdict is the outcome kind of an evaluation.
type Verdict int

const (
	// Drop means the message is ignored without any reply.
	Drop Verdict = iota
	// RouteCommand means the command should be executed.
	RouteCommand
	// RespondWithUsageError means the sender should be told the command failed.
	RespondWithUsageError
)

// DropReason explains a Drop verdict.
type DropReason string

const (
	ReasonNotACommand      DropReason = "not_a_command"
	ReasonUnwatchedRoom    DropReason = "unwatched_room"
	ReasonOwnMessage       DropReason = "own_message"
	ReasonStationMismatch  DropReason = "station_mismatch"
	ReasonUnauthorized     DropReason = "unauthorized"
	ReasonForeignMalformed DropReason = "foreign_malformed"
)

// Message is an inbound chat message.
type Message struct {
	Room   string
	Sender string
	Body   string
}

// Decision is the result of evaluating one message.
type Decision struct {
	Verdict Verdict
	Reason  DropReason
	Command command.Command
	Err     error
}

// FilterConfig holds the identities the filter checks against.
type FilterConfig struct {
	BotUserID   string
	StationName string
	Rooms       []string
	Operators   []string

	// QuietForeignMalformed drops malformed commands that name another
	// station instead of replying with a usage error.
	QuietForeignMalformed bool
}

// Filter applies the routing and authorization policy.
type Filter struct {
	botUserID             string
	stationName           string
	rooms                 utils.Set[string]
	operators             utils.Set[string]
	quietForeignMalformed bool
	logger                zerolog.Logger
}

// NewFilter creates a Filter. The station name is compared case-insensitively.
func NewFilter(cfg FilterConfig, logger zerolog.Logger) *Filter {
	return &Filter{
		botUserID:             cfg.BotUserID,
		stationName:           strings.ToLower(cfg.StationName),
		rooms:                 utils.SliceToSet(cfg.Rooms),
		operators:             utils.SliceToSet(cfg.Operators),
		quietForeignMalformed: cfg.QuietForeignMalformed,
		logger:                logger,
	}
}

// Evaluate runs the policy checks in order. The cheap silent checks come
// before parsing so that chatter in a shared room never provokes a reply.
func (f *Filter) Evaluate(msg Message) Decision {
	if !strings.HasPrefix(msg.Body, command.Marker) {
		return Decision{Verdict: Drop, Reason: ReasonNotACommand}
	}

	if !f.rooms.Contains(msg.Room) {
		return Decision{Verdict: Drop, Reason: ReasonUnwatchedRoom}
	}

	if msg.Sender == f.botUserID {
		return Decision{Verdict: Drop, Reason: ReasonOwnMessage}
	}

	cmd, err := command.Parse(msg.Body)
	if err != nil {
		var parseErr *command.ParseError
		if f.quietForeignMalformed && errors.As(err, &parseErr) && parseErr.Station != "" && parseErr.Station != f.stationName {
			f.logger.Debug().Str("station", parseErr.Station).Msg("Ignoring malformed command for another station")
			return Decision{Verdict: Drop, Reason: ReasonForeignMalformed, Err: err}
		}
		f.logger.Warn().Err(err).Str("room", msg.Room).Str("sender", msg.Sender).Msg("Failed to parse command from message")
		return Decision{Verdict: RespondWithUsageError, Err: err}
	}

	if cmd.StationName != f.stationName {
		f.logger.Debug().Str("station", cmd.StationName).Msg("Ignoring command with unknown station name")
		return Decision{Verdict: Drop, Reason: ReasonStationMismatch, Command: cmd}
	}

	if cmd.Operation.IsOperatorOnly() && !f.IsOperator(msg.Sender) {
		f.logger.Info().
			Str("station", f.stationName).
			Str("sender", msg.Sender).
			Str("operation", cmd.Operation.String()).
			Msg("Ignoring operator only command issued by non-operator")
		return Decision{Verdict: Drop, Reason: ReasonUnauthorized, Command: cmd}
	}

	return Decision{Verdict: RouteCommand, Command: cmd}
}

// IsOperator reports whether userID is a configured station operator.
func (f *Filter) IsOperator(userID string) bool {
	return f.operators.Contains(userID)
}
