package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/haven-health-passport/chaincode/consent/ledger"
	"github.com/haven-health-passport/chaincode/consent/models"
	"github.com/haven-health-passport/chaincode/consent/utils"
)

// CheckAccess decides whether doctor may decrypt under grantID right now.
// The encrypted DEK and record locator are only disclosed when authorized.
//
// It is the only path that releases a DEK. Status is recomputed from the
// transaction time on every call. When the policy logs access, an authorized
// decision appends one grant_accessed transition; denied checks never write.
func (e *Engine) CheckAccess(tx ledger.Tx, doctor string, grantID uint64) (*models.AccessDecision, error) {
	doctor = utils.NormalizeAddress(doctor)
	fields := logrus.Fields{"doctor": doctor, "grantId": grantID}

	grant, err := e.loadGrant(tx, grantID)
	if err != nil {
		return nil, err
	}
	ts, err := now(tx)
	if err != nil {
		return nil, err
	}

	status := grant.EffectiveStatus(ts)
	decision := &models.AccessDecision{
		GrantID:         grantID,
		EffectiveStatus: status,
		CheckedAt:       ts,
	}

	switch {
	case grant.DoctorID != doctor:
		decision.Reason = models.ReasonDoctorMismatch
	case status != models.GrantStatusActive:
		decision.Reason = models.ReasonNotActive
	default:
		decision.Authorized = true
		decision.Reason = models.ReasonAuthorized
	}

	if !decision.Authorized {
		e.log.WithFields(fields).WithField("reason", decision.Reason).Debug("access denied")
		return decision, nil
	}

	record, err := e.GetRecord(tx, grant.RecordID)
	if err != nil {
		return nil, err
	}
	decision.EncryptedDEK = grant.EncryptedDEK
	decision.RecordLocator = record.Locator
	decision.IntegrityHash = record.IntegrityHash
	decision.ExpiresAt = grant.ExpiresAt

	policy, err := e.Policy(tx)
	if err != nil {
		return nil, err
	}
	if policy.LogAccess {
		t := &models.Transition{
			Kind:      models.TransitionGrantAccessed,
			Actor:     doctor,
			Target:    grantTarget(grantID),
			GrantID:   grantID,
			RecordID:  grant.RecordID,
			PatientID: grant.PatientID,
			DoctorID:  grant.DoctorID,
			Status:    status,
			Timestamp: ts,
		}
		if err := e.appendTransition(tx, t, EventAccessRecorded); err != nil {
			return nil, err
		}
		fields["seq"] = t.Seq
	}

	e.log.WithFields(fields).Info("access authorized")
	return decision, nil
}
