package actuation

import (
	"testing"

	"github.com/DanNixon/matrix-remote-closedown/internal/command"
	"github.com/DanNixon/matrix-remote-closedown/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Table(t *testing.T) {
	cases := []struct {
		op       command.Operation
		expected models.ActuationCommand
	}{
		{command.Shutdown, models.ActuationCommand{EnableTxPower: models.False, EnablePtt: models.False}},
		{command.PowerOn, models.ActuationCommand{EnableTxPower: models.True, EnablePtt: models.Unknown}},
		{command.PowerOff, models.ActuationCommand{EnableTxPower: models.False, EnablePtt: models.Unknown}},
		{command.PttEnable, models.ActuationCommand{EnableTxPower: models.Unknown, EnablePtt: models.True}},
		{command.PttDisable, models.ActuationCommand{EnableTxPower: models.Unknown, EnablePtt: models.False}},
	}

	for _, tc := range cases {
		cmd, ok := Build(tc.op)
		assert.True(t, ok, tc.op.String())
		assert.Equal(t, tc.expected, cmd, tc.op.String())
	}
}

func TestBuild_HelpIsNotActuated(t *testing.T) {
	_, ok := Build(command.Help)
	assert.False(t, ok)
}

func TestBuild_WireFormat(t *testing.T) {
	// Setup
	cmd, ok := Build(command.PowerOn)
	require.True(t, ok)

	// Execute
	payload, err := cmd.Encode()

	// Assert
	require.NoError(t, err)
	assert.JSONEq(t, `{"enable_tx_power":true,"enable_ptt":null}`, string(payload))

	cmd, _ = Build(command.Shutdown)
	payload, err = cmd.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"enable_tx_power":false,"enable_ptt":false}`, string(payload))
}
