package storage

import (
	"time"

	"github.com/google/uuid"
)

// generateID generates a new UUID
func generateID() string {
	return uuid.New().String()
}

// timestamp returns the current time in the canonical log format
func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// normalize fills in generated fields before a record is written so the
// persisted row and the in-memory record stay identical.
func normalize(d *Deployment) {
	if d.ID == "" {
		d.ID = generateID()
	}
	if d.CreatedAt == "" {
		d.CreatedAt = timestamp()
	}
}
