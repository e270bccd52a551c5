package random

import (
	"crypto/rand"
	"fmt"
)

// CollisionResistantLength is a byte count suitable for generating
// collision-resistant identifiers (used by pkg/identifier).
const CollisionResistantLength = 16

// New returns a byte slice of the specified length with cryptographically
// random conents.
func New(length int) ([]byte, error) {
	// Create the buffer.
	result := make([]byte, length)

	// Read random data.
	if _, err := rand.Read(result[:]); err != nil {
		return nil, fmt.Errorf("unable to read random data: %w", err)
	}

	// Success.
	return result, nil
}
