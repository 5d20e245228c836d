package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// Validation constants
const (
	MaxRecordIDLen  = 128
	MaxLocatorLen   = 512
	MaxPublicKeyLen = 4096
)

// Regular expressions for validation
var (
	addressRegex = regexp.MustCompile(`^0x[0-9a-f]{40}$`)
	hashRegex    = regexp.MustCompile(`^(sha256:)?[0-9a-fA-F]{64}$`)
)

// NormalizeAddress trims and lowercases an address
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// ValidateAddress checks the fixed-length principal address format
func ValidateAddress(address string) error {
	if !addressRegex.MatchString(address) {
		return fmt.Errorf("invalid address: %q", address)
	}
	return nil
}

// ValidateRecordID checks a patient-chosen record identifier
func ValidateRecordID(recordID string) error {
	if recordID == "" {
		return fmt.Errorf("record ID is required")
	}
	if len(recordID) > MaxRecordIDLen {
		return fmt.Errorf("record ID exceeds %d characters", MaxRecordIDLen)
	}
	if strings.Contains(recordID, KeySeparator) || strings.ContainsRune(recordID, 0) {
		return fmt.Errorf("record ID contains a reserved character")
	}
	return nil
}

// ValidateLocator checks a content locator
func ValidateLocator(locator string) error {
	if strings.TrimSpace(locator) == "" {
		return fmt.Errorf("locator is required")
	}
	if len(locator) > MaxLocatorLen {
		return fmt.Errorf("locator exceeds %d characters", MaxLocatorLen)
	}
	return nil
}

// ValidateIntegrityHash checks a hex SHA-256 digest, optionally prefixed
func ValidateIntegrityHash(hash string) error {
	if !hashRegex.MatchString(hash) {
		return fmt.Errorf("integrity hash must be a hex sha256 digest")
	}
	return nil
}

// ValidatePublicKey checks a public key blob
func ValidatePublicKey(publicKey string) error {
	if strings.TrimSpace(publicKey) == "" {
		return fmt.Errorf("public key is required")
	}
	if len(publicKey) > MaxPublicKeyLen {
		return fmt.Errorf("public key exceeds %d bytes", MaxPublicKeyLen)
	}
	return nil
}

// SanitizeString removes surrounding whitespace
func SanitizeString(input string) string {
	return strings.TrimSpace(input)
}
