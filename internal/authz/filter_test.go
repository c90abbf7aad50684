package authz

import (
	"testing"

	"github.com/DanNixon/matrix-remote-closedown/internal/command"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

const (
	testRoom     = "!room:example.org"
	testBot      = "@bot:example.org"
	testOperator = "@op:example.org"
	testUser     = "@user:example.org"
)

func newTestFilter(quiet bool) *Filter {
	return NewFilter(FilterConfig{
		BotUserID:             testBot,
		StationName:           "MB7PMF",
		Rooms:                 []string{testRoom},
		Operators:             []string{testOperator},
		QuietForeignMalformed: quiet,
	}, zerolog.Nop())
}

func TestEvaluate_NonOperatorShutdownDropped(t *testing.T) {
	// Setup
	f := newTestFilter(false)

	// Execute
	decision := f.Evaluate(Message{Room: testRoom, Sender: testUser, Body: "!mb7pmf shutdown"})

	// Assert
	assert.Equal(t, Drop, decision.Verdict)
	assert.Equal(t, ReasonUnauthorized, decision.Reason)
}

func TestEvaluate_NonOperatorHelpRouted(t *testing.T) {
	// Setup
	f := newTestFilter(false)

	// Execute
	decision := f.Evaluate(Message{Room: testRoom, Sender: testUser, Body: "!mb7pmf help"})

	// Assert
	assert.Equal(t, RouteCommand, decision.Verdict)
	assert.Equal(t, command.Command{StationName: "mb7pmf", Operation: command.Help}, decision.Command)
}

func TestEvaluate_OperatorRouted(t *testing.T) {
	// Setup
	f := newTestFilter(false)

	// Execute
	decision := f.Evaluate(Message{Room: testRoom, Sender: testOperator, Body: "!MB7PMF Power ON"})

	// Assert
	assert.Equal(t, RouteCommand, decision.Verdict)
	assert.Equal(t, command.PowerOn, decision.Command.Operation)
}

func TestEvaluate_PolicyOrder(t *testing.T) {
	f := newTestFilter(false)

	cases := []struct {
		name    string
		msg     Message
		verdict Verdict
		reason  DropReason
	}{
		{"plain chatter", Message{Room: testRoom, Sender: testUser, Body: "hello"}, Drop, ReasonNotACommand},
		{"leading whitespace", Message{Room: testRoom, Sender: testUser, Body: " !mb7pmf help"}, Drop, ReasonNotACommand},
		{"chatter in unwatched room", Message{Room: "!other:example.org", Sender: testUser, Body: "hello"}, Drop, ReasonNotACommand},
		{"malformed in unwatched room", Message{Room: "!other:example.org", Sender: testUser, Body: "!mb7pmf flergle"}, Drop, ReasonUnwatchedRoom},
		{"own malformed message", Message{Room: testRoom, Sender: testBot, Body: "!mb7pmf flergle"}, Drop, ReasonOwnMessage},
		{"malformed", Message{Room: testRoom, Sender: testUser, Body: "!mb7pmf flergle"}, RespondWithUsageError, ""},
		{"malformed from operator", Message{Room: testRoom, Sender: testOperator, Body: "!mb7pmf"}, RespondWithUsageError, ""},
		{"other station", Message{Room: testRoom, Sender: testOperator, Body: "!gb3xx power on"}, Drop, ReasonStationMismatch},
		{"other station help", Message{Room: testRoom, Sender: testUser, Body: "!gb3xx help"}, Drop, ReasonStationMismatch},
	}

	for _, tc := range cases {
		decision := f.Evaluate(tc.msg)
		assert.Equal(t, tc.verdict, decision.Verdict, tc.name)
		assert.Equal(t, tc.reason, decision.Reason, tc.name)
	}
}

func TestEvaluate_UsageErrorCarriesParseError(t *testing.T) {
	// Setup
	f := newTestFilter(false)

	// Execute
	decision := f.Evaluate(Message{Room: testRoom, Sender: testUser, Body: "!gb3xx flergle"})

	// Assert
	assert.Equal(t, RespondWithUsageError, decision.Verdict)
	assert.ErrorIs(t, decision.Err, command.ErrMalformed)
}

func TestEvaluate_QuietForeignMalformed(t *testing.T) {
	// Setup
	f := newTestFilter(true)

	// Execute
	foreign := f.Evaluate(Message{Room: testRoom, Sender: testUser, Body: "!gb3xx flergle"})
	own := f.Evaluate(Message{Room: testRoom, Sender: testUser, Body: "!mb7pmf flergle"})

	// Assert
	assert.Equal(t, Drop, foreign.Verdict)
	assert.Equal(t, ReasonForeignMalformed, foreign.Reason)
	assert.Equal(t, RespondWithUsageError, own.Verdict)
}

func TestIsOperator(t *testing.T) {
	f := newTestFilter(false)
	assert.True(t, f.IsOperator(testOperator))
	assert.False(t, f.IsOperator(testUser))
}
