// Package uuid generates run identifiers.
package uuid

import (
	"github.com/google/uuid"
)

// NewRunID returns a UUIDv7 string so run ids sort by start time. It falls
// back to a random v4 id when the v7 generator fails.
func NewRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
