// Package crypto provides token generation and hashing for pantry.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// TokenBytes is the number of random bytes in a generated token.
const TokenBytes = 20

// GenerateToken generates a random 40-character hex token.
// Example: "9944b09199c62bcf9418ad846dd0e4bbdfc6ee4b"
func GenerateToken() (string, error) {
	return generateRandomHex(TokenBytes)
}

// generateRandomHex returns n random bytes as a hex string.
func generateRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
