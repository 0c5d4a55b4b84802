package helpers

import "github.com/google/uuid"

// GenerateUUID returns a fresh random identifier for opaque handles.
func GenerateUUID() string {
	return uuid.New().String()
}
