package models

import (
	"time"
)

// GrantStatus is the lifecycle state of a consent grant
type GrantStatus string

// Grant status constants
const (
	GrantStatusPending GrantStatus = "pending"
	GrantStatusActive  GrantStatus = "active"
	GrantStatusRevoked GrantStatus = "revoked"
	GrantStatusExpired GrantStatus = "expired"
)

// IsTerminal reports whether no transition leaves this status
func (s GrantStatus) IsTerminal() bool {
	return s == GrantStatusRevoked || s == GrantStatusExpired
}

// ConsentGrant links one record, one doctor, one encrypted DEK and an expiry.
// Only Status changes after creation.
type ConsentGrant struct {
	GrantID      uint64      `json:"grantId"`
	RecordID     string      `json:"recordId"`
	PatientID    string      `json:"patientId"`
	DoctorID     string      `json:"doctorId"`
	EncryptedDEK string      `json:"encryptedDek"`
	CreatedAt    time.Time   `json:"createdAt"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	Status       GrantStatus `json:"status"`
	RevokedAt    time.Time   `json:"revokedAt,omitempty"`
	ObjectType   string      `json:"objectType"`
}

// GrantView is a grant as seen at a point in time. EncryptedDEK is never
// part of a view; it is only released through an access check.
type GrantView struct {
	GrantID         uint64      `json:"grantId"`
	RecordID        string      `json:"recordId"`
	PatientID       string      `json:"patientId"`
	DoctorID        string      `json:"doctorId"`
	CreatedAt       time.Time   `json:"createdAt"`
	ExpiresAt       time.Time   `json:"expiresAt"`
	StoredStatus    GrantStatus `json:"storedStatus"`
	EffectiveStatus GrantStatus `json:"effectiveStatus"`
}

// AccessDecision is the answer of the access verifier for one doctor and grant
type AccessDecision struct {
	Authorized      bool        `json:"authorized"`
	GrantID         uint64      `json:"grantId"`
	EffectiveStatus GrantStatus `json:"effectiveStatus"`
	EncryptedDEK    string      `json:"encryptedDek,omitempty"`
	RecordLocator   string      `json:"recordLocator,omitempty"`
	IntegrityHash   string      `json:"integrityHash,omitempty"`
	ExpiresAt       time.Time   `json:"expiresAt,omitempty"`
	Reason          string      `json:"reason"`
	CheckedAt       time.Time   `json:"checkedAt"`
}

// Access decision reasons
const (
	ReasonAuthorized     = "access granted"
	ReasonDoctorMismatch = "grant does not name this doctor"
	ReasonNotActive      = "grant is not active"
)

// NewConsentGrant creates an active grant valid for duration from createdAt
func NewConsentGrant(grantID uint64, recordID, patientID, doctorID, encryptedDEK string, createdAt time.Time, duration time.Duration) *ConsentGrant {
	return &ConsentGrant{
		GrantID:      grantID,
		RecordID:     recordID,
		PatientID:    patientID,
		DoctorID:     doctorID,
		EncryptedDEK: encryptedDEK,
		CreatedAt:    createdAt,
		ExpiresAt:    createdAt.Add(duration),
		Status:       GrantStatusActive,
		ObjectType:   ObjectTypeGrant,
	}
}

// EffectiveStatus computes a grant's status at now. An active grant whose
// expiry has been reached reads as expired without any write.
func EffectiveStatus(stored GrantStatus, now, expiresAt time.Time) GrantStatus {
	if stored == GrantStatusActive && !now.Before(expiresAt) {
		return GrantStatusExpired
	}
	return stored
}

// EffectiveStatus returns the grant's status at now
func (g *ConsentGrant) EffectiveStatus(now time.Time) GrantStatus {
	return EffectiveStatus(g.Status, now, g.ExpiresAt)
}

// IsActive checks if the grant is active at now
func (g *ConsentGrant) IsActive(now time.Time) bool {
	return g.EffectiveStatus(now) == GrantStatusActive
}

// View returns the grant without its DEK, evaluated at now
func (g *ConsentGrant) View(now time.Time) *GrantView {
	return &GrantView{
		GrantID:         g.GrantID,
		RecordID:        g.RecordID,
		PatientID:       g.PatientID,
		DoctorID:        g.DoctorID,
		CreatedAt:       g.CreatedAt,
		ExpiresAt:       g.ExpiresAt,
		StoredStatus:    g.Status,
		EffectiveStatus: g.EffectiveStatus(now),
	}
}

// GrantHistoryEntry is one committed version of a grant's stored state
type GrantHistoryEntry struct {
	TxID      string      `json:"txId"`
	Status    GrantStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}
