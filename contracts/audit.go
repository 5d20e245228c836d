package contracts

import (
	"fmt"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/haven-health-passport/chaincode/consent/engine"
	"github.com/haven-health-passport/chaincode/consent/models"
)

// AuditContract exposes the consent history
type AuditContract struct {
	contractapi.Contract
	base
}

// NewAuditContract creates the contract over e
func NewAuditContract(e *engine.Engine) *AuditContract {
	return &AuditContract{base: base{engine: e}}
}

// GetAuditTrail returns granted, accessed, revoked and expired entries in
// time order. Empty arguments do not filter; role is "patient", "doctor" or
// empty for either side; from and to are RFC3339 and bound [from, to).
func (c *AuditContract) GetAuditTrail(
	ctx contractapi.TransactionContextInterface,
	principal string,
	role string,
	recordID string,
	from string,
	to string,
) ([]*models.AuditEntry, error) {
	auditRole, err := models.ParseAuditRole(role)
	if err != nil {
		return nil, err
	}
	filter := models.AuditFilter{
		Principal: principal,
		Role:      auditRole,
		RecordID:  recordID,
	}

	if filter.From, err = parseBound(from); err != nil {
		return nil, err
	}
	if filter.To, err = parseBound(to); err != nil {
		return nil, err
	}

	return c.engine.Audit(c.txn(ctx), filter)
}

// GetTransitions returns the raw transition log starting at fromSeq
func (c *AuditContract) GetTransitions(ctx contractapi.TransactionContextInterface, fromSeq uint64) ([]*models.Transition, error) {
	return c.engine.Transitions(c.txn(ctx), fromSeq)
}

func parseBound(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %v", value, err)
	}
	return t, nil
}
