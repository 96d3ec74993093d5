package utils

import (
	"github.com/google/uuid"
)

// NewRunID returns a random UUID identifying one pipeline run
func NewRunID() string {
	return uuid.NewString()
}

// ShortID returns the first 8 characters of an id, for logs
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
