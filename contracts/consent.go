package contracts

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/haven-health-passport/chaincode/consent/engine"
	"github.com/haven-health-passport/chaincode/consent/models"
	"github.com/haven-health-passport/chaincode/consent/utils"
)

// maxDurationSeconds is the longest duration a time.Duration can hold
const maxDurationSeconds = int64(math.MaxInt64 / int64(time.Second))

// ConsentContract issues and revokes consent grants
type ConsentContract struct {
	contractapi.Contract
	base
}

// NewConsentContract creates the contract over e
func NewConsentContract(e *engine.Engine) *ConsentContract {
	return &ConsentContract{base: base{engine: e}}
}

// InitLedger anchors the consent policy. An empty policyJSON anchors the
// chaincode default. The policy can only be anchored once, by an identity
// carrying the admin attribute.
func (c *ConsentContract) InitLedger(ctx contractapi.TransactionContextInterface, policyJSON string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}

	existing, err := ctx.GetStub().GetState(utils.PolicyKey)
	if err != nil {
		return fmt.Errorf("failed to read from world state: %v", err)
	}
	if existing != nil {
		return fmt.Errorf("ledger already initialized")
	}

	policy := c.engine.DefaultPolicy()
	if policyJSON != "" {
		if err := json.Unmarshal([]byte(policyJSON), &policy); err != nil {
			return fmt.Errorf("failed to parse policy: %v", err)
		}
	}
	return c.engine.StorePolicy(c.txn(ctx), policy)
}

// GetPolicy returns the policy grants are evaluated against
func (c *ConsentContract) GetPolicy(ctx contractapi.TransactionContextInterface) (*models.Policy, error) {
	p, err := c.engine.Policy(c.txn(ctx))
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GrantConsent lets doctor decrypt recordID for durationSeconds. encryptedDEK
// is the record key sealed to the doctor's registered public key.
func (c *ConsentContract) GrantConsent(
	ctx contractapi.TransactionContextInterface,
	recordID string,
	doctor string,
	encryptedDEK string,
	durationSeconds int64,
) (*models.GrantView, error) {
	tx, caller, err := c.txnAs(ctx)
	if err != nil {
		return nil, err
	}
	if durationSeconds <= 0 || durationSeconds > maxDurationSeconds {
		return nil, fmt.Errorf("%w (%d seconds)", engine.ErrInvalidDuration, durationSeconds)
	}
	grant, err := c.engine.GrantConsent(tx, caller, recordID, doctor, encryptedDEK, time.Duration(durationSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	return grant.View(grant.CreatedAt), nil
}

// RevokeConsent revokes an active grant on one of the caller's records
func (c *ConsentContract) RevokeConsent(ctx contractapi.TransactionContextInterface, grantID uint64) (*models.GrantView, error) {
	tx, caller, err := c.txnAs(ctx)
	if err != nil {
		return nil, err
	}
	grant, err := c.engine.RevokeConsent(tx, caller, grantID)
	if err != nil {
		return nil, err
	}
	return grant.View(grant.RevokedAt), nil
}

// GetGrant returns a grant with its status at the transaction time
func (c *ConsentContract) GetGrant(ctx contractapi.TransactionContextInterface, grantID uint64) (*models.GrantView, error) {
	return c.engine.GetGrant(c.txn(ctx), grantID)
}

// ListGrantsByPatient returns the grants a patient issued
func (c *ConsentContract) ListGrantsByPatient(ctx contractapi.TransactionContextInterface, patient string) ([]*models.GrantView, error) {
	return c.engine.ListGrantsByPatient(c.txn(ctx), patient)
}

// ListGrantsByDoctor returns the grants naming a doctor
func (c *ConsentContract) ListGrantsByDoctor(ctx contractapi.TransactionContextInterface, doctor string) ([]*models.GrantView, error) {
	return c.engine.ListGrantsByDoctor(c.txn(ctx), doctor)
}

// ListGrantsByRecord returns the grants issued against a record
func (c *ConsentContract) ListGrantsByRecord(ctx contractapi.TransactionContextInterface, recordID string) ([]*models.GrantView, error) {
	return c.engine.ListGrantsByRecord(c.txn(ctx), recordID)
}

// GetGrantHistory returns every committed version of a grant, oldest first.
// Expiry never writes, so an expired grant's last version reads active.
func (c *ConsentContract) GetGrantHistory(ctx contractapi.TransactionContextInterface, grantID uint64) ([]*models.GrantHistoryEntry, error) {
	resultsIterator, err := ctx.GetStub().GetHistoryForKey(utils.CreateGrantKey(grantID))
	if err != nil {
		return nil, fmt.Errorf("failed to get grant history: %v", err)
	}
	defer resultsIterator.Close()

	var history []*models.GrantHistoryEntry
	for resultsIterator.HasNext() {
		queryResponse, err := resultsIterator.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate history: %v", err)
		}

		var grant models.ConsentGrant
		if err := json.Unmarshal(queryResponse.Value, &grant); err != nil {
			return nil, fmt.Errorf("failed to unmarshal grant: %v", err)
		}
		history = append(history, &models.GrantHistoryEntry{
			TxID:      queryResponse.TxId,
			Status:    grant.Status,
			Timestamp: time.Unix(queryResponse.Timestamp.Seconds, int64(queryResponse.Timestamp.Nanos)).UTC(),
		})
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("%w (grant %d)", engine.ErrGrantNotFound, grantID)
	}
	return history, nil
}
