package engine

import (
	"errors"
	"fmt"
)

// Category groups engine errors by how a caller should react.
// No category is retried inside the engine and every failure leaves state unchanged.
type Category string

const (
	// CategoryValidation rejects malformed input; retry with corrected input.
	CategoryValidation Category = "validation"
	// CategoryAuthorization rejects the actor or a missing precondition.
	CategoryAuthorization Category = "authorization"
	// CategoryConflict signals a race or a stale client view; re-read first.
	CategoryConflict Category = "conflict"
	// CategoryNotFound signals a missing target.
	CategoryNotFound Category = "not_found"
)

// Error is a categorized engine failure. Sentinels below are compared with
// errors.Is; wrapped instances keep the sentinel's identity.
type Error struct {
	Code     string
	Category Category
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(category Category, code, message string) *Error {
	return &Error{Code: code, Category: category, Message: message}
}

// Validation errors
var (
	ErrInvalidKey           = newError(CategoryValidation, "InvalidKey", "public key is empty or malformed")
	ErrInvalidLocator       = newError(CategoryValidation, "InvalidLocator", "content locator is empty or malformed")
	ErrInvalidDuration      = newError(CategoryValidation, "InvalidDuration", "grant duration must be positive and within the policy maximum")
	ErrInvalidRecordID      = newError(CategoryValidation, "InvalidRecordID", "record ID is empty or malformed")
	ErrInvalidIntegrityHash = newError(CategoryValidation, "InvalidIntegrityHash", "integrity hash must be a hex sha256 digest")
	ErrInvalidDEK           = newError(CategoryValidation, "InvalidDEK", "encrypted DEK is empty or too large")
	ErrInvalidDoctor        = newError(CategoryValidation, "InvalidDoctor", "doctor address is malformed or names the patient")
	ErrInvalidAddress       = newError(CategoryValidation, "InvalidAddress", "principal address is malformed")
)

// Authorization errors
var (
	ErrNotRecordOwner   = newError(CategoryAuthorization, "NotRecordOwner", "caller does not own the record")
	ErrDoctorKeyMissing = newError(CategoryAuthorization, "DoctorKeyMissing", "doctor has no registered public key")
	ErrIdentityMismatch = newError(CategoryAuthorization, "IdentityMismatch", "a principal's key can only be written by that principal")
	ErrNotAdmin         = newError(CategoryAuthorization, "NotAdmin", "caller is not a chaincode administrator")
)

// Conflict errors
var (
	ErrDuplicateRecord      = newError(CategoryConflict, "DuplicateRecord", "record ID already registered")
	ErrDuplicateActiveGrant = newError(CategoryConflict, "DuplicateActiveGrant", "an active grant already exists for this record and doctor")
	ErrGrantNotActive       = newError(CategoryConflict, "GrantNotActive", "grant is already revoked or expired")
)

// Not-found errors
var (
	ErrRecordNotFound = newError(CategoryNotFound, "RecordNotFound", "record does not exist")
	ErrGrantNotFound  = newError(CategoryNotFound, "GrantNotFound", "grant does not exist")
)

// wrap attaches context to a sentinel
func wrap(sentinel *Error, format string, args ...any) error {
	return fmt.Errorf("%w (%s)", sentinel, fmt.Sprintf(format, args...))
}

// CategoryOf returns the category of an engine error, or "" for
// infrastructure failures
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}

// CodeOf returns the stable code of an engine error, or ""
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
