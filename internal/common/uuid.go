package common

import (
	"github.com/google/uuid"
)

// IDGenerator produces record identifiers.
type IDGenerator interface {
	NewID() string
}

// UUIDGenerator generates random (v4) UUID strings.
type UUIDGenerator struct{}

// NewID generates a UUID v4 string
func (UUIDGenerator) NewID() string {
	return uuid.NewString()
}

// ValidateUUID validates if a string is a valid UUID
func ValidateUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
