package utils

import "github.com/google/uuid"

// GenerateRunID returns a random (v4) UUID string for an analysis run.
func GenerateRunID() string {
	return uuid.NewString()
}

// ValidRunID reports whether id parses as a UUID.
func ValidRunID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
