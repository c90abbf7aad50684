// Package status decides which station status reports are worth telling people about.
package status

import "github.com/DanNixon/matrix-remote-closedown/internal/models"

// Observe compares an incoming status with the previously stored one.
// It returns the status to store and whether the change should be announced.
// Unknown compares equal only to Unknown, so a field becoming known counts as a change.
func Observe(previous, incoming models.StationStatus) (models.StationStatus, bool) {
	if previous == incoming {
		return previous, false
	}
	return incoming, true
}
