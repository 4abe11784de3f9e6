package util

import "github.com/google/uuid"

// NewID generates a new unique identifier for events and runs.
func NewID() string { return uuid.NewString() }
