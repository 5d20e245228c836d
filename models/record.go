package models

import (
	"time"
)

// Ledger object types
const (
	ObjectTypePrincipal  = "principal"
	ObjectTypeRecord     = "medicalRecord"
	ObjectTypeGrant      = "consentGrant"
	ObjectTypeTransition = "transition"
	ObjectTypePolicy     = "policy"
)

// Record anchors one encrypted medical artifact. The owner never changes and
// records are never updated or deleted.
type Record struct {
	RecordID      string    `json:"recordId"`
	OwnerID       string    `json:"ownerId"`
	Locator       string    `json:"locator"`
	IntegrityHash string    `json:"integrityHash"`
	CreatedAt     time.Time `json:"createdAt"`
	ObjectType    string    `json:"objectType"`
}

// NewRecord creates a new record instance
func NewRecord(recordID, ownerID, locator, integrityHash string, createdAt time.Time) *Record {
	return &Record{
		RecordID:      recordID,
		OwnerID:       ownerID,
		Locator:       locator,
		IntegrityHash: integrityHash,
		CreatedAt:     createdAt,
		ObjectType:    ObjectTypeRecord,
	}
}

// Principal binds an identity to its current public encryption key
type Principal struct {
	Address      string    `json:"address"`
	PublicKey    string    `json:"publicKey"`
	RegisteredAt time.Time `json:"registeredAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	KeyVersion   int       `json:"keyVersion"`
	ObjectType   string    `json:"objectType"`
}

// HasKey reports whether the principal currently holds a key
func (p *Principal) HasKey() bool {
	return p != nil && p.PublicKey != ""
}
