package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TriState is a boolean that may also be unknown. In telemetry it means the
// field was never reported; in actuation commands it means "leave unchanged".
// The zero value is Unknown.
type TriState uint8

const (
	Unknown TriState = iota
	True
	False
)

// FromBool converts a concrete bool.
func FromBool(b bool) TriState {
	if b {
		return True
	}
	return False
}

// IsKnown reports whether the value is True or False.
func (t TriState) IsKnown() bool {
	return t == True || t == False
}

// Bool returns the concrete value and whether it is known.
func (t TriState) Bool() (value bool, known bool) {
	switch t {
	case True:
		return true, true
	case False:
		return false, true
	default:
		return false, false
	}
}

// Render picks one of three labels for the value.
func (t TriState) Render(whenTrue, whenFalse, whenUnknown string) string {
	switch t {
	case True:
		return whenTrue
	case False:
		return whenFalse
	default:
		return whenUnknown
	}
}

func (t TriState) String() string {
	return t.Render("true", "false", "unknown")
}

// MarshalJSON encodes Unknown as null.
func (t TriState) MarshalJSON() ([]byte, error) {
	switch t {
	case True:
		return []byte("true"), nil
	case False:
		return []byte("false"), nil
	case Unknown:
		return []byte("null"), nil
	default:
		return nil, fmt.Errorf("invalid tristate value %d", uint8(t))
	}
}

// UnmarshalJSON accepts true, false or null.
func (t *TriState) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = Unknown
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("tristate must be a bool or null: %w", err)
	}
	*t = FromBool(b)
	return nil
}
