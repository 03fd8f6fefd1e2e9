package common

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sha256Hex returns the SHA-256 digest of the input encoded as lowercase hex.
func Sha256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// HashKey joins parts with "|" and returns prefix followed by the hex digest.
// Callers use it to build fixed-length cache and lock keys from user input.
func HashKey(prefix string, parts ...string) string {
	return prefix + Sha256Hex(strings.Join(parts, "|"))
}
