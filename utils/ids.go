package utils

import (
	"os"

	"github.com/google/uuid"
)

// NewEventID returns a random identifier for an outgoing event message
func NewEventID() string {
	return uuid.NewString()
}

// NewInstanceID identifies this process among replicas, e.g. as a lease owner.
// It is "<hostname>-<uuid>" when the hostname is known.
func NewInstanceID() string {
	id := uuid.NewString()
	if host, err := os.Hostname(); err == nil && host != "" {
		return host + "-" + id
	}
	return id
}
