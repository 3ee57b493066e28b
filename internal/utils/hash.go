package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashURI returns the hex SHA-256 of uri. Media keys use it so the same
// remote reference always maps to the same object name.
func HashURI(uri string) string {
	sum := sha256.Sum256([]byte(uri))
	return hex.EncodeToString(sum[:])
}
