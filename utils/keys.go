package utils

import (
	"fmt"
	"strconv"
	"strings"
)

// Key prefixes for different object types
const (
	PrefixPrincipal       = "PRINCIPAL"
	PrefixRecord          = "RECORD"
	PrefixGrant           = "GRANT"
	PrefixTransition      = "TRANSITION"
	PrefixSequence        = "SEQ"
	PrefixPolicy          = "POLICY"
	PrefixOwnerRecords    = "OWNER~RECORDS"
	PrefixPatientGrants   = "PATIENT~GRANTS"
	PrefixDoctorGrants    = "DOCTOR~GRANTS"
	PrefixRecordGrants    = "RECORD~GRANTS"
	PrefixRecordDoctorIdx = "RECORD~DOCTOR~GRANTS"
)

// Sequence names
const (
	SequenceGrant      = "grant"
	SequenceTransition = "transition"
)

// KeySeparator joins key parts. Identifiers containing it are rejected.
const KeySeparator = "~"

// seqWidth zero-pads sequence numbers so lexical and numeric order agree
const seqWidth = 20

// PolicyKey is the ledger key of the engine policy
const PolicyKey = PrefixPolicy + KeySeparator + "engine"

func join(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

func formatSeq(n uint64) string {
	return fmt.Sprintf("%0*d", seqWidth, n)
}

// CreatePrincipalKey creates the key of a principal entry
func CreatePrincipalKey(address string) string {
	return join(PrefixPrincipal, address)
}

// CreateRecordKey creates the key of a record
func CreateRecordKey(recordID string) string {
	return join(PrefixRecord, recordID)
}

// CreateGrantKey creates the key of a consent grant
func CreateGrantKey(grantID uint64) string {
	return join(PrefixGrant, formatSeq(grantID))
}

// CreateTransitionKey creates the key of a transition log entry
func CreateTransitionKey(seq uint64) string {
	return join(PrefixTransition, formatSeq(seq))
}

// TransitionPrefix returns the prefix covering the whole transition log
func TransitionPrefix() string {
	return PrefixTransition + KeySeparator
}

// CreateSequenceKey creates the key of a named counter
func CreateSequenceKey(name string) string {
	return join(PrefixSequence, name)
}

// CreateOwnerRecordKey creates an owner → record index key
func CreateOwnerRecordKey(ownerID, recordID string) string {
	return join(PrefixOwnerRecords, ownerID, recordID)
}

// OwnerRecordsPrefix returns the index prefix for one owner
func OwnerRecordsPrefix(ownerID string) string {
	return join(PrefixOwnerRecords, ownerID) + KeySeparator
}

// CreatePatientGrantKey creates a patient → grant index key
func CreatePatientGrantKey(patientID string, grantID uint64) string {
	return join(PrefixPatientGrants, patientID, formatSeq(grantID))
}

// PatientGrantsPrefix returns the index prefix for one patient
func PatientGrantsPrefix(patientID string) string {
	return join(PrefixPatientGrants, patientID) + KeySeparator
}

// CreateDoctorGrantKey creates a doctor → grant index key
func CreateDoctorGrantKey(doctorID string, grantID uint64) string {
	return join(PrefixDoctorGrants, doctorID, formatSeq(grantID))
}

// DoctorGrantsPrefix returns the index prefix for one doctor
func DoctorGrantsPrefix(doctorID string) string {
	return join(PrefixDoctorGrants, doctorID) + KeySeparator
}

// CreateRecordGrantKey creates a record → grant index key
func CreateRecordGrantKey(recordID string, grantID uint64) string {
	return join(PrefixRecordGrants, recordID, formatSeq(grantID))
}

// RecordGrantsPrefix returns the index prefix for one record
func RecordGrantsPrefix(recordID string) string {
	return join(PrefixRecordGrants, recordID) + KeySeparator
}

// CreateRecordDoctorGrantKey creates a (record, doctor) → grant index key
func CreateRecordDoctorGrantKey(recordID, doctorID string, grantID uint64) string {
	return join(PrefixRecordDoctorIdx, recordID, doctorID, formatSeq(grantID))
}

// RecordDoctorGrantsPrefix returns the index prefix for one (record, doctor) pair
func RecordDoctorGrantsPrefix(recordID, doctorID string) string {
	return join(PrefixRecordDoctorIdx, recordID, doctorID) + KeySeparator
}

// ParseGrantIndexKey extracts the grant ID from any grant index key
func ParseGrantIndexKey(key string) (uint64, error) {
	i := strings.LastIndex(key, KeySeparator)
	if i < 0 || i == len(key)-1 {
		return 0, fmt.Errorf("invalid grant index key format: %s", key)
	}
	id, err := strconv.ParseUint(key[i+1:], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid grant index key format: %s", key)
	}
	return id, nil
}

// ParseOwnerRecordKey extracts the record ID from an owner index key
func ParseOwnerRecordKey(compositeKey string) (ownerID, recordID string, err error) {
	rest := strings.TrimPrefix(compositeKey, PrefixOwnerRecords+KeySeparator)
	parts := strings.Split(rest, KeySeparator)
	if rest == compositeKey || len(parts) != 2 {
		return "", "", fmt.Errorf("invalid owner record key format: %s", compositeKey)
	}
	return parts[0], parts[1], nil
}
