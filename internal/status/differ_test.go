package status

import (
	"testing"

	"github.com/DanNixon/matrix-remote-closedown/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestObserve_SameStatusTwice(t *testing.T) {
	// Setup
	incoming := models.StationStatus{
		TxPowerEnabled: models.True,
		TxPowerActive:  models.False,
	}

	// Execute
	stored, notify := Observe(models.StationStatus{}, incoming)
	assert.True(t, notify)
	stored, notify = Observe(stored, incoming)

	// Assert
	assert.False(t, notify)
	assert.Equal(t, incoming, stored)
}

func TestObserve_UnknownToKnown(t *testing.T) {
	// Execute
	stored, notify := Observe(models.StationStatus{}, models.StationStatus{PttActive: models.True})

	// Assert
	assert.True(t, notify)
	assert.Equal(t, models.True, stored.PttActive)
}

func TestObserve_KnownToUnknown(t *testing.T) {
	// Setup
	previous := models.StationStatus{PttEnabled: models.False}

	// Execute
	stored, notify := Observe(previous, models.StationStatus{})

	// Assert
	assert.True(t, notify)
	assert.Equal(t, models.StationStatus{}, stored)
}

func TestObserve_FalseIsNotUnknown(t *testing.T) {
	// Execute
	_, notify := Observe(models.StationStatus{}, models.StationStatus{
		TxPowerEnabled: models.False,
		TxPowerActive:  models.False,
		PttEnabled:     models.False,
		PttActive:      models.False,
	})

	// Assert
	assert.True(t, notify)
}

func TestObserve_InitialUnknownHeartbeat(t *testing.T) {
	// Execute
	stored, notify := Observe(models.StationStatus{}, models.StationStatus{})

	// Assert
	assert.False(t, notify)
	assert.Equal(t, models.StationStatus{}, stored)
}
