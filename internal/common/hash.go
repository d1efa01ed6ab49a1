package common

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// KeyDigest returns the lowercase hex SHA-256 of parts joined by "|".
func KeyDigest(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// ShortDigest is the first 16 characters of KeyDigest, used inside Redis keys.
func ShortDigest(parts ...string) string {
	return KeyDigest(parts...)[:16]
}
