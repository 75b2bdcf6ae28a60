package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// bcryptMaxPassword is the longest input bcrypt accepts.
const bcryptMaxPassword = 72

// HashToken returns the hex-encoded SHA-256 of a token. Only hashes are persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidateSHA256 validates that a string is a valid SHA-256 hex hash.
func ValidateSHA256(hash string) bool {
	return isHex(hash, sha256.Size*2)
}

// ValidateToken reports whether token has the shape GenerateToken produces.
func ValidateToken(token string) bool {
	return isHex(token, TokenBytes*2)
}

// PasswordBytes returns the bcrypt input for password. Passwords longer than
// bcrypt's limit are replaced by the base64 of their SHA-256 so that every
// byte still counts.
func PasswordBytes(password string) []byte {
	if len(password) <= bcryptMaxPassword {
		return []byte(password)
	}
	sum := sha256.Sum256([]byte(password))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

func isHex(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
