package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/haven-health-passport/chaincode/consent/ledger"
	"github.com/haven-health-passport/chaincode/consent/models"
	"github.com/haven-health-passport/chaincode/consent/utils"
)

// RegisterRecord anchors a record owned by owner. Records cannot be updated or
// deleted; a correction is a new record under a new ID.
func (e *Engine) RegisterRecord(tx ledger.Tx, owner, recordID, locator, integrityHash string) (*models.Record, error) {
	owner = utils.NormalizeAddress(owner)
	recordID = utils.SanitizeString(recordID)
	locator = utils.SanitizeString(locator)
	integrityHash = utils.SanitizeString(integrityHash)
	fields := logrus.Fields{"owner": owner, "recordId": recordID}

	if err := utils.ValidateAddress(owner); err != nil {
		return nil, e.rejected("registerRecord", wrap(ErrInvalidAddress, "%v", err), fields)
	}
	if err := utils.ValidateRecordID(recordID); err != nil {
		return nil, e.rejected("registerRecord", wrap(ErrInvalidRecordID, "%v", err), fields)
	}
	if err := utils.ValidateLocator(locator); err != nil {
		return nil, e.rejected("registerRecord", wrap(ErrInvalidLocator, "%v", err), fields)
	}
	if err := utils.ValidateIntegrityHash(integrityHash); err != nil {
		return nil, e.rejected("registerRecord", wrap(ErrInvalidIntegrityHash, "%v", err), fields)
	}

	key := utils.CreateRecordKey(recordID)
	existing, err := tx.Get(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	if existing != nil {
		return nil, e.rejected("registerRecord", wrap(ErrDuplicateRecord, "record %s", recordID), fields)
	}

	ts, err := now(tx)
	if err != nil {
		return nil, err
	}

	record := models.NewRecord(recordID, owner, locator, integrityHash, ts)
	if err := putJSON(tx, key, record); err != nil {
		return nil, fmt.Errorf("failed to store record: %w", err)
	}
	if err := index(tx, utils.CreateOwnerRecordKey(owner, recordID)); err != nil {
		return nil, fmt.Errorf("failed to put owner index: %w", err)
	}

	t := &models.Transition{
		Kind:      models.TransitionRecordRegistered,
		Actor:     owner,
		Target:    "record:" + recordID,
		RecordID:  recordID,
		PatientID: owner,
		Timestamp: ts,
	}
	if err := e.appendTransition(tx, t, EventRecordRegistered); err != nil {
		return nil, err
	}

	e.log.WithFields(fields).WithField("seq", t.Seq).Info("record registered")
	return record, nil
}

// GetRecord returns the record or ErrRecordNotFound
func (e *Engine) GetRecord(tx ledger.Tx, recordID string) (*models.Record, error) {
	recordID = utils.SanitizeString(recordID)
	if err := utils.ValidateRecordID(recordID); err != nil {
		return nil, wrap(ErrInvalidRecordID, "%v", err)
	}

	var record models.Record
	found, err := getJSON(tx, utils.CreateRecordKey(recordID), &record)
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	if !found {
		return nil, wrap(ErrRecordNotFound, "record %s", recordID)
	}
	return &record, nil
}

// ListRecordsByOwner returns the owner's records in record ID order
func (e *Engine) ListRecordsByOwner(tx ledger.Tx, owner string) ([]*models.Record, error) {
	owner = utils.NormalizeAddress(owner)
	if err := utils.ValidateAddress(owner); err != nil {
		return nil, wrap(ErrInvalidAddress, "%v", err)
	}

	entries, err := tx.Scan(utils.OwnerRecordsPrefix(owner))
	if err != nil {
		return nil, fmt.Errorf("failed to get owner records: %w", err)
	}

	records := make([]*models.Record, 0, len(entries))
	for _, kv := range entries {
		_, recordID, err := utils.ParseOwnerRecordKey(kv.Key)
		if err != nil {
			return nil, err
		}
		record, err := e.GetRecord(tx, recordID)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}
