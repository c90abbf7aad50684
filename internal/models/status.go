package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrDecode is returned when a telemetry payload cannot be decoded.
var ErrDecode = errors.New("failed to decode telemetry report")

// StationStatus is the last fully-known snapshot of the remote station.
// The zero value has every field Unknown.
type StationStatus struct {
	TxPowerEnabled TriState `json:"tx_power_enabled"`
	TxPowerActive  TriState `json:"tx_power_active"`
	PttEnabled     TriState `json:"ptt_enabled"`
	PttActive      TriState `json:"ptt_active"`
}

// TelemetryReport is a single status/response message published by the station.
type TelemetryReport struct {
	Status    StationStatus `json:"status"`
	Message   *string       `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}

// HasMessage reports whether the report carries a non-empty one-shot message.
func (r TelemetryReport) HasMessage() bool {
	return r.Message != nil && *r.Message != ""
}

// DecodeTelemetryReport parses a telemetry JSON payload.
func DecodeTelemetryReport(payload []byte) (TelemetryReport, error) {
	var envelope struct {
		Status    *StationStatus `json:"status"`
		Message   *string        `json:"message"`
		Timestamp *time.Time     `json:"timestamp"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return TelemetryReport{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if envelope.Status == nil {
		return TelemetryReport{}, fmt.Errorf("%w: missing status", ErrDecode)
	}
	if envelope.Timestamp == nil {
		return TelemetryReport{}, fmt.Errorf("%w: missing timestamp", ErrDecode)
	}

	return TelemetryReport{
		Status:    *envelope.Status,
		Message:   envelope.Message,
		Timestamp: *envelope.Timestamp,
	}, nil
}
