package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the hex SHA-256 digest of data
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ETag is a strong entity tag for a response body
func ETag(body []byte) string {
	return `"` + Hash(body) + `"`
}
