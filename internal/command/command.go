package command

import (
	"errors"
	"fmt"
	"strings"
)

// Marker prefixes every command addressed to a station.
const Marker = "!"

// ErrMalformed is returned for any input that is not a valid command.
var ErrMalformed = errors.New("malformed command")

// ParseError describes why a command could not be parsed.
// Station is set when the input carried a station token.
type ParseError struct {
	Station string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformed, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrMalformed
}

// Command identifies which station a request targets and what is requested.
type Command struct {
	StationName string
	Operation   Operation
}

// Parse converts raw chat text into a Command.
// Input is case-insensitive and tolerant of extra whitespace.
func Parse(raw string) (Command, error) {
	parts := strings.Fields(strings.ToLower(raw))
	if len(parts) == 0 {
		return Command{}, &ParseError{Reason: "empty input"}
	}

	if !strings.HasPrefix(parts[0], Marker) {
		return Command{}, &ParseError{Reason: "missing command marker"}
	}
	station := strings.TrimPrefix(parts[0], Marker)

	op, ok := lookupOperation(parts[1:])
	if !ok {
		return Command{}, &ParseError{
			Station: station,
			Reason:  fmt.Sprintf("unknown operation %q", strings.Join(parts[1:], " ")),
		}
	}

	return Command{StationName: station, Operation: op}, nil
}
