package contracts

import (
	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/haven-health-passport/chaincode/consent/engine"
	"github.com/haven-health-passport/chaincode/consent/models"
)

// RecordContract anchors encrypted medical records. Only the locator and
// integrity hash go on the ledger; the ciphertext lives off-chain.
type RecordContract struct {
	contractapi.Contract
	base
}

// NewRecordContract creates the contract over e
func NewRecordContract(e *engine.Engine) *RecordContract {
	return &RecordContract{base: base{engine: e}}
}

// RegisterRecord anchors a record owned by the caller
func (c *RecordContract) RegisterRecord(
	ctx contractapi.TransactionContextInterface,
	recordID string,
	locator string,
	integrityHash string,
) (*models.Record, error) {
	tx, caller, err := c.txnAs(ctx)
	if err != nil {
		return nil, err
	}
	return c.engine.RegisterRecord(tx, caller, recordID, locator, integrityHash)
}

// GetRecord returns a record by ID
func (c *RecordContract) GetRecord(ctx contractapi.TransactionContextInterface, recordID string) (*models.Record, error) {
	return c.engine.GetRecord(c.txn(ctx), recordID)
}

// ListRecordsByOwner returns the records owned by owner
func (c *RecordContract) ListRecordsByOwner(ctx contractapi.TransactionContextInterface, owner string) ([]*models.Record, error) {
	return c.engine.ListRecordsByOwner(c.txn(ctx), owner)
}
