package engine

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/haven-health-passport/chaincode/consent/ledger"
	"github.com/haven-health-passport/chaincode/consent/models"
	"github.com/haven-health-passport/chaincode/consent/utils"
)

// GrantConsent creates an active grant letting doctor decrypt recordID until
// the duration elapses. encryptedDEK is opaque to the engine; the patient
// seals it to the doctor's registered key beforehand.
//
// A pair that already has an active grant is rejected with
// ErrDuplicateActiveGrant. Replacing a grant takes an explicit revoke first,
// so a DEK already handed to the doctor is never silently orphaned.
func (e *Engine) GrantConsent(tx ledger.Tx, caller, recordID, doctor, encryptedDEK string, duration time.Duration) (*models.ConsentGrant, error) {
	caller = utils.NormalizeAddress(caller)
	doctor = utils.NormalizeAddress(doctor)
	recordID = utils.SanitizeString(recordID)
	fields := logrus.Fields{"caller": caller, "recordId": recordID, "doctor": doctor}

	policy, err := e.Policy(tx)
	if err != nil {
		return nil, err
	}

	if err := utils.ValidateAddress(caller); err != nil {
		return nil, e.rejected("grantConsent", wrap(ErrInvalidAddress, "%v", err), fields)
	}
	if err := utils.ValidateRecordID(recordID); err != nil {
		return nil, e.rejected("grantConsent", wrap(ErrInvalidRecordID, "%v", err), fields)
	}
	if err := utils.ValidateAddress(doctor); err != nil {
		return nil, e.rejected("grantConsent", wrap(ErrInvalidDoctor, "%v", err), fields)
	}
	if encryptedDEK == "" || len(encryptedDEK) > policy.MaxDEKBytes {
		return nil, e.rejected("grantConsent", wrap(ErrInvalidDEK, "%d bytes, limit %d", len(encryptedDEK), policy.MaxDEKBytes), fields)
	}
	if duration <= 0 || duration > policy.MaxGrantDuration {
		return nil, e.rejected("grantConsent", wrap(ErrInvalidDuration, "%s, limit %s", duration, policy.MaxGrantDuration), fields)
	}

	record, err := e.GetRecord(tx, recordID)
	if err != nil {
		return nil, e.rejected("grantConsent", err, fields)
	}
	if record.OwnerID != caller {
		return nil, e.rejected("grantConsent", wrap(ErrNotRecordOwner, "record %s", recordID), fields)
	}
	if doctor == record.OwnerID {
		return nil, e.rejected("grantConsent", wrap(ErrInvalidDoctor, "owner cannot be granted its own record"), fields)
	}

	_, hasKey, err := e.GetKey(tx, doctor)
	if err != nil {
		return nil, err
	}
	if !hasKey {
		return nil, e.rejected("grantConsent", wrap(ErrDoctorKeyMissing, "doctor %s", doctor), fields)
	}

	ts, err := now(tx)
	if err != nil {
		return nil, err
	}

	active, err := e.activeGrantFor(tx, recordID, doctor, ts)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, e.rejected("grantConsent", wrap(ErrDuplicateActiveGrant, "grant %d", active.GrantID), fields)
	}

	grantID, err := nextSequence(tx, utils.SequenceGrant)
	if err != nil {
		return nil, fmt.Errorf("failed to generate grant ID: %w", err)
	}

	grant := models.NewConsentGrant(grantID, recordID, caller, doctor, encryptedDEK, ts, duration)
	if err := putJSON(tx, utils.CreateGrantKey(grantID), grant); err != nil {
		return nil, fmt.Errorf("failed to store grant: %w", err)
	}

	for _, key := range []string{
		utils.CreatePatientGrantKey(caller, grantID),
		utils.CreateDoctorGrantKey(doctor, grantID),
		utils.CreateRecordGrantKey(recordID, grantID),
		utils.CreateRecordDoctorGrantKey(recordID, doctor, grantID),
	} {
		if err := index(tx, key); err != nil {
			return nil, fmt.Errorf("failed to create grant index: %w", err)
		}
	}

	t := &models.Transition{
		Kind:      models.TransitionGrantCreated,
		Actor:     caller,
		Target:    grantTarget(grantID),
		GrantID:   grantID,
		RecordID:  recordID,
		PatientID: caller,
		DoctorID:  doctor,
		ExpiresAt: grant.ExpiresAt,
		Status:    grant.EffectiveStatus(ts),
		Timestamp: ts,
	}
	if err := e.appendTransition(tx, t, EventConsentGranted); err != nil {
		return nil, err
	}

	e.log.WithFields(fields).WithFields(logrus.Fields{
		"grantId":   grantID,
		"expiresAt": grant.ExpiresAt.Format(time.RFC3339),
		"seq":       t.Seq,
	}).Info("consent granted")
	return grant, nil
}

// RevokeConsent moves an active grant to revoked. Revoking a grant that is
// already revoked or expired fails with ErrGrantNotActive and writes nothing.
func (e *Engine) RevokeConsent(tx ledger.Tx, caller string, grantID uint64) (*models.ConsentGrant, error) {
	caller = utils.NormalizeAddress(caller)
	fields := logrus.Fields{"caller": caller, "grantId": grantID}

	grant, err := e.loadGrant(tx, grantID)
	if err != nil {
		return nil, e.rejected("revokeConsent", err, fields)
	}

	record, err := e.GetRecord(tx, grant.RecordID)
	if err != nil {
		return nil, err
	}
	if record.OwnerID != caller {
		return nil, e.rejected("revokeConsent", wrap(ErrNotRecordOwner, "record %s", grant.RecordID), fields)
	}

	ts, err := now(tx)
	if err != nil {
		return nil, err
	}
	if status := grant.EffectiveStatus(ts); status != models.GrantStatusActive {
		return nil, e.rejected("revokeConsent", wrap(ErrGrantNotActive, "grant %d is %s", grantID, status), fields)
	}

	grant.Status = models.GrantStatusRevoked
	grant.RevokedAt = ts
	if err := putJSON(tx, utils.CreateGrantKey(grantID), grant); err != nil {
		return nil, fmt.Errorf("failed to update grant: %w", err)
	}

	t := &models.Transition{
		Kind:      models.TransitionGrantRevoked,
		Actor:     caller,
		Target:    grantTarget(grantID),
		GrantID:   grantID,
		RecordID:  grant.RecordID,
		PatientID: grant.PatientID,
		DoctorID:  grant.DoctorID,
		Status:    grant.EffectiveStatus(ts),
		Timestamp: ts,
	}
	if err := e.appendTransition(tx, t, EventConsentRevoked); err != nil {
		return nil, err
	}

	e.log.WithFields(fields).WithFields(logrus.Fields{
		"recordId": grant.RecordID,
		"doctor":   grant.DoctorID,
		"seq":      t.Seq,
	}).Info("consent revoked")
	return grant, nil
}

// GetGrant returns the grant evaluated at the transaction time. The view
// carries no DEK; any principal may read it.
func (e *Engine) GetGrant(tx ledger.Tx, grantID uint64) (*models.GrantView, error) {
	grant, err := e.loadGrant(tx, grantID)
	if err != nil {
		return nil, err
	}
	ts, err := now(tx)
	if err != nil {
		return nil, err
	}
	return grant.View(ts), nil
}

// ListGrantsByPatient returns every grant issued by patient, oldest first
func (e *Engine) ListGrantsByPatient(tx ledger.Tx, patient string) ([]*models.GrantView, error) {
	patient = utils.NormalizeAddress(patient)
	if err := utils.ValidateAddress(patient); err != nil {
		return nil, wrap(ErrInvalidAddress, "%v", err)
	}
	return e.listGrants(tx, utils.PatientGrantsPrefix(patient))
}

// ListGrantsByDoctor returns every grant naming doctor, oldest first
func (e *Engine) ListGrantsByDoctor(tx ledger.Tx, doctor string) ([]*models.GrantView, error) {
	doctor = utils.NormalizeAddress(doctor)
	if err := utils.ValidateAddress(doctor); err != nil {
		return nil, wrap(ErrInvalidAddress, "%v", err)
	}
	return e.listGrants(tx, utils.DoctorGrantsPrefix(doctor))
}

// ListGrantsByRecord returns every grant issued against recordID, oldest first
func (e *Engine) ListGrantsByRecord(tx ledger.Tx, recordID string) ([]*models.GrantView, error) {
	recordID = utils.SanitizeString(recordID)
	if err := utils.ValidateRecordID(recordID); err != nil {
		return nil, wrap(ErrInvalidRecordID, "%v", err)
	}
	return e.listGrants(tx, utils.RecordGrantsPrefix(recordID))
}

func (e *Engine) listGrants(tx ledger.Tx, prefix string) ([]*models.GrantView, error) {
	ts, err := now(tx)
	if err != nil {
		return nil, err
	}
	grants, err := e.grantsByIndex(tx, prefix)
	if err != nil {
		return nil, err
	}
	views := make([]*models.GrantView, 0, len(grants))
	for _, g := range grants {
		views = append(views, g.View(ts))
	}
	return views, nil
}

// activeGrantFor returns the grant that is effectively active for the pair at
// ts, or nil. Expired grants never hold the pair.
func (e *Engine) activeGrantFor(tx ledger.Tx, recordID, doctor string, ts time.Time) (*models.ConsentGrant, error) {
	grants, err := e.grantsByIndex(tx, utils.RecordDoctorGrantsPrefix(recordID, doctor))
	if err != nil {
		return nil, err
	}
	for _, g := range grants {
		if g.IsActive(ts) {
			return g, nil
		}
	}
	return nil, nil
}

func (e *Engine) grantsByIndex(tx ledger.Tx, prefix string) ([]*models.ConsentGrant, error) {
	entries, err := tx.Scan(prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get grant index: %w", err)
	}
	grants := make([]*models.ConsentGrant, 0, len(entries))
	for _, kv := range entries {
		grantID, err := utils.ParseGrantIndexKey(kv.Key)
		if err != nil {
			return nil, err
		}
		grant, err := e.loadGrant(tx, grantID)
		if err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	return grants, nil
}

func (e *Engine) loadGrant(tx ledger.Tx, grantID uint64) (*models.ConsentGrant, error) {
	if grantID == 0 {
		return nil, wrap(ErrGrantNotFound, "grant 0")
	}
	var grant models.ConsentGrant
	found, err := getJSON(tx, utils.CreateGrantKey(grantID), &grant)
	if err != nil {
		return nil, fmt.Errorf("failed to read grant: %w", err)
	}
	if !found {
		return nil, wrap(ErrGrantNotFound, "grant %d", grantID)
	}
	return &grant, nil
}

func grantTarget(grantID uint64) string {
	return fmt.Sprintf("grant:%d", grantID)
}
