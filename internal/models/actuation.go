package models

import "encoding/json"

// ActuationCommand is a partial update sent to the station.
// Unknown fields mean "do not change this actuator".
type ActuationCommand struct {
	EnableTxPower TriState `json:"enable_tx_power"`
	EnablePtt     TriState `json:"enable_ptt"`
}

// Encode serialises the command to its wire form.
func (c ActuationCommand) Encode() ([]byte, error) {
	return json.Marshal(c)
}
