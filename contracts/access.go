package contracts

import (
	"fmt"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/haven-health-passport/chaincode/consent/engine"
	"github.com/haven-health-passport/chaincode/consent/models"
)

// AccessContract answers doctors' access checks. Submit rather than evaluate
// these functions when the policy logs access, or the access entry is lost.
type AccessContract struct {
	contractapi.Contract
	base
}

// AccessDetails is what an authorized doctor needs to fetch and decrypt a record
type AccessDetails struct {
	GrantID       uint64    `json:"grantId"`
	RecordID      string    `json:"recordId"`
	RecordLocator string    `json:"recordLocator"`
	IntegrityHash string    `json:"integrityHash"`
	EncryptedDEK  string    `json:"encryptedDek"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// NewAccessContract creates the contract over e
func NewAccessContract(e *engine.Engine) *AccessContract {
	return &AccessContract{base: base{engine: e}}
}

// CheckAccess decides whether the caller may decrypt under grantID now
func (c *AccessContract) CheckAccess(ctx contractapi.TransactionContextInterface, grantID uint64) (*models.AccessDecision, error) {
	tx, caller, err := c.txnAs(ctx)
	if err != nil {
		return nil, err
	}
	return c.engine.CheckAccess(tx, caller, grantID)
}

// GetAccessDetails returns the record locator and encrypted DEK of an
// authorized grant, and fails for any caller the grant does not authorize
func (c *AccessContract) GetAccessDetails(ctx contractapi.TransactionContextInterface, grantID uint64) (*AccessDetails, error) {
	tx, caller, err := c.txnAs(ctx)
	if err != nil {
		return nil, err
	}
	decision, err := c.engine.CheckAccess(tx, caller, grantID)
	if err != nil {
		return nil, err
	}
	if !decision.Authorized {
		return nil, fmt.Errorf("access denied for grant %d: %s", grantID, decision.Reason)
	}

	grant, err := c.engine.GetGrant(tx, grantID)
	if err != nil {
		return nil, err
	}
	return &AccessDetails{
		GrantID:       grantID,
		RecordID:      grant.RecordID,
		RecordLocator: decision.RecordLocator,
		IntegrityHash: decision.IntegrityHash,
		EncryptedDEK:  decision.EncryptedDEK,
		ExpiresAt:     decision.ExpiresAt,
	}, nil
}
