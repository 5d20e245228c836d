package models

import (
	"time"
)

// Policy holds the engine limits. It can be anchored on the ledger so every
// endorsing peer evaluates grants against the same limits.
type Policy struct {
	MaxGrantDuration time.Duration `json:"maxGrantDuration"`
	LogAccess        bool          `json:"logAccess"`
	MaxDEKBytes      int           `json:"maxDekBytes"`
	ObjectType       string        `json:"objectType"`
}

// Policy defaults
const (
	DefaultMaxGrantDuration = 365 * 24 * time.Hour
	DefaultMaxDEKBytes      = 4096
)

// DefaultPolicy returns the policy used when none is stored
func DefaultPolicy() Policy {
	return Policy{
		MaxGrantDuration: DefaultMaxGrantDuration,
		LogAccess:        true,
		MaxDEKBytes:      DefaultMaxDEKBytes,
		ObjectType:       ObjectTypePolicy,
	}
}
