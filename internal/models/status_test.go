package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTelemetryReport_Success(t *testing.T) {
	// Setup
	payload := `{"status":{"tx_power_enabled":true,"tx_power_active":null,"ptt_enabled":false,"ptt_active":null},"message":null,"timestamp":"2024-01-01T00:00:00Z"}`

	// Execute
	report, err := DecodeTelemetryReport([]byte(payload))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, StationStatus{TxPowerEnabled: True, PttEnabled: False}, report.Status)
	assert.Nil(t, report.Message)
	assert.False(t, report.HasMessage())
	assert.True(t, report.Timestamp.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDecodeTelemetryReport_MissingFieldsAreUnknown(t *testing.T) {
	// Execute
	report, err := DecodeTelemetryReport([]byte(`{"status":{},"message":"hello","timestamp":"2024-01-01T12:30:00+01:00"}`))

	// Assert
	require.NoError(t, err)
	assert.Equal(t, StationStatus{}, report.Status)
	assert.True(t, report.HasMessage())
	assert.Equal(t, "hello", *report.Message)
}

func TestDecodeTelemetryReport_Failures(t *testing.T) {
	for _, payload := range []string{
		``,
		`not json`,
		`{"message":null,"timestamp":"2024-01-01T00:00:00Z"}`,
		`{"status":{},"message":null}`,
		`{"status":{"ptt_active":"yes"},"message":null,"timestamp":"2024-01-01T00:00:00Z"}`,
		`{"status":{},"message":null,"timestamp":"yesterday"}`,
	} {
		_, err := DecodeTelemetryReport([]byte(payload))
		assert.Error(t, err, payload)
		assert.True(t, errors.Is(err, ErrDecode), payload)
	}
}

func TestTriState_JSON(t *testing.T) {
	var values []TriState
	require.NoError(t, json.Unmarshal([]byte(`[true,false,null]`), &values))
	assert.Equal(t, []TriState{True, False, Unknown}, values)

	out, err := json.Marshal(values)
	require.NoError(t, err)
	assert.Equal(t, `[true,false,null]`, string(out))
}

func TestTriState_Render(t *testing.T) {
	assert.Equal(t, "ON", True.Render("ON", "OFF", "unknown"))
	assert.Equal(t, "OFF", False.Render("ON", "OFF", "unknown"))
	assert.Equal(t, "unknown", Unknown.Render("ON", "OFF", "unknown"))

	_, known := Unknown.Bool()
	assert.False(t, known)
	value, known := False.Bool()
	assert.True(t, known)
	assert.False(t, value)
}
