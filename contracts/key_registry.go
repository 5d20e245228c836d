package contracts

import (
	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/haven-health-passport/chaincode/consent/engine"
	"github.com/haven-health-passport/chaincode/consent/models"
)

// KeyRegistryContract publishes principals' encryption public keys
type KeyRegistryContract struct {
	contractapi.Contract
	base
}

// NewKeyRegistryContract creates the contract over e
func NewKeyRegistryContract(e *engine.Engine) *KeyRegistryContract {
	return &KeyRegistryContract{base: base{engine: e}}
}

// WhoAmI returns the principal address of the caller
func (c *KeyRegistryContract) WhoAmI(ctx contractapi.TransactionContextInterface) (string, error) {
	return callerAddress(ctx)
}

// RegisterKey sets principal's public key. Only the principal itself may
// write its key.
func (c *KeyRegistryContract) RegisterKey(
	ctx contractapi.TransactionContextInterface,
	principal string,
	publicKey string,
) (*models.Principal, error) {
	tx, caller, err := c.txnAs(ctx)
	if err != nil {
		return nil, err
	}
	return c.engine.RegisterKey(tx, caller, principal, publicKey)
}

// RegisterPublicKey sets the caller's own public key
func (c *KeyRegistryContract) RegisterPublicKey(ctx contractapi.TransactionContextInterface, publicKey string) (*models.Principal, error) {
	tx, caller, err := c.txnAs(ctx)
	if err != nil {
		return nil, err
	}
	return c.engine.RegisterKey(tx, caller, caller, publicKey)
}

// GetKey returns principal's current public key, or "" if none is registered
func (c *KeyRegistryContract) GetKey(ctx contractapi.TransactionContextInterface, principal string) (string, error) {
	key, _, err := c.engine.GetKey(c.txn(ctx), principal)
	return key, err
}
