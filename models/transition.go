package models

import (
	"fmt"
	"time"
)

// TransitionKind names the operation that produced a transition
type TransitionKind string

// Transition kinds
const (
	TransitionKeyRegistered    TransitionKind = "key_registered"
	TransitionRecordRegistered TransitionKind = "record_registered"
	TransitionGrantCreated     TransitionKind = "grant_created"
	TransitionGrantRevoked     TransitionKind = "grant_revoked"
	TransitionGrantAccessed    TransitionKind = "grant_accessed"
)

// Transition is one immutable entry of the append-only transition log.
// Seq orders the log; it is assigned from a ledger counter starting at 1.
type Transition struct {
	Seq        uint64         `json:"seq"`
	TxID       string         `json:"txId"`
	Kind       TransitionKind `json:"kind"`
	Actor      string         `json:"actor"`
	Target     string         `json:"target"`
	GrantID    uint64         `json:"grantId,omitempty"`
	RecordID   string         `json:"recordId,omitempty"`
	PatientID  string         `json:"patientId,omitempty"`
	DoctorID   string         `json:"doctorId,omitempty"`
	ExpiresAt  time.Time      `json:"expiresAt,omitempty"`
	Status     GrantStatus    `json:"status,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	ObjectType string         `json:"objectType"`
}

// AuditAction is the kind of an audit projection entry
type AuditAction string

// Audit actions
const (
	AuditGranted  AuditAction = "granted"
	AuditAccessed AuditAction = "accessed"
	AuditRevoked  AuditAction = "revoked"
	AuditExpired  AuditAction = "expired"
)

// AuditEntry is one line of the audit projection. Seq is zero for expiry
// entries, which are derived rather than logged.
type AuditEntry struct {
	Seq       uint64      `json:"seq,omitempty"`
	Action    AuditAction `json:"action"`
	GrantID   uint64      `json:"grantId"`
	RecordID  string      `json:"recordId"`
	PatientID string      `json:"patientId"`
	DoctorID  string      `json:"doctorId"`
	Actor     string      `json:"actor,omitempty"`
	TxID      string      `json:"txId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// AuditRole selects which side of a grant a principal filter matches
type AuditRole string

// Audit roles. The patient of a grant is always the record owner.
const (
	AuditRoleAny     AuditRole = ""
	AuditRolePatient AuditRole = "patient"
	AuditRoleDoctor  AuditRole = "doctor"
)

// ParseAuditRole accepts "patient", "doctor" or "" for either side
func ParseAuditRole(role string) (AuditRole, error) {
	switch r := AuditRole(role); r {
	case AuditRoleAny, AuditRolePatient, AuditRoleDoctor:
		return r, nil
	}
	return "", fmt.Errorf("invalid role %q", role)
}

// AuditFilter narrows the audit projection. Zero values match everything;
// the time range is [From, To).
type AuditFilter struct {
	Principal string    `json:"principal,omitempty"`
	Role      AuditRole `json:"role,omitempty"`
	RecordID  string    `json:"recordId,omitempty"`
	From      time.Time `json:"from,omitempty"`
	To        time.Time `json:"to,omitempty"`
}

// Matches checks an entry against the filter
func (f AuditFilter) Matches(e *AuditEntry) bool {
	if f.RecordID != "" && e.RecordID != f.RecordID {
		return false
	}
	if f.Principal != "" {
		switch f.Role {
		case AuditRolePatient:
			if e.PatientID != f.Principal {
				return false
			}
		case AuditRoleDoctor:
			if e.DoctorID != f.Principal {
				return false
			}
		default:
			if e.PatientID != f.Principal && e.DoctorID != f.Principal {
				return false
			}
		}
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !e.Timestamp.Before(f.To) {
		return false
	}
	return true
}
