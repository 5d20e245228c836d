package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashPrefix marks an integrity hash produced by GenerateDataHash
const HashPrefix = "sha256:"

// GenerateDataHash generates a SHA256 hash of the data
func GenerateDataHash(data []byte) string {
	hash := sha256.Sum256(data)
	return HashPrefix + hex.EncodeToString(hash[:])
}

// AddressFromIdentity derives a fixed-length principal address from an
// authenticated identity string. The last 20 bytes of its SHA256 are used.
func AddressFromIdentity(identity string) string {
	hash := sha256.Sum256([]byte(identity))
	return "0x" + hex.EncodeToString(hash[12:])
}
