// Package actuation maps operations onto partial actuator updates.
package actuation

import (
	"github.com/DanNixon/matrix-remote-closedown/internal/command"
	"github.com/DanNixon/matrix-remote-closedown/internal/models"
)

// Build returns the actuation command for op. The second result is false
// for operations that are not actuated (Help).
// Fields the operation does not concern are left Unknown.
func Build(op command.Operation) (models.ActuationCommand, bool) {
	switch op {
	case command.Shutdown:
		return models.ActuationCommand{EnableTxPower: models.False, EnablePtt: models.False}, true
	case command.PowerOn:
		return models.ActuationCommand{EnableTxPower: models.True}, true
	case command.PowerOff:
		return models.ActuationCommand{EnableTxPower: models.False}, true
	case command.PttEnable:
		return models.ActuationCommand{EnablePtt: models.True}, true
	case command.PttDisable:
		return models.ActuationCommand{EnablePtt: models.False}, true
	default:
		return models.ActuationCommand{}, false
	}
}
