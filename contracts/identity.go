package contracts

import (
	"fmt"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"

	"github.com/haven-health-passport/chaincode/consent/engine"
	"github.com/haven-health-passport/chaincode/consent/ledger"
	"github.com/haven-health-passport/chaincode/consent/utils"
)

// AddressAttribute is the enrollment certificate attribute that pins a
// principal address. Identities without it get an address derived from
// their MSP and certificate identity.
const AddressAttribute = "hhp.address"

// AdminAttribute marks identities allowed to anchor the consent policy. Its
// value must be "true".
const AdminAttribute = "hhp.admin"

// callerAddress resolves the submitting client to its principal address
func callerAddress(ctx contractapi.TransactionContextInterface) (string, error) {
	identity := ctx.GetClientIdentity()

	pinned, found, err := identity.GetAttributeValue(AddressAttribute)
	if err != nil {
		return "", fmt.Errorf("failed to read identity attribute: %v", err)
	}
	if found {
		address := utils.NormalizeAddress(pinned)
		if err := utils.ValidateAddress(address); err != nil {
			return "", fmt.Errorf("identity attribute %s: %v", AddressAttribute, err)
		}
		return address, nil
	}

	mspID, err := identity.GetMSPID()
	if err != nil {
		return "", fmt.Errorf("failed to get client MSP ID: %v", err)
	}
	id, err := identity.GetID()
	if err != nil {
		return "", fmt.Errorf("failed to get client identity: %v", err)
	}
	return principalAddress(mspID, id), nil
}

// requireAdmin rejects callers whose certificate lacks the admin attribute
func requireAdmin(ctx contractapi.TransactionContextInterface) error {
	val, found, err := ctx.GetClientIdentity().GetAttributeValue(AdminAttribute)
	if err != nil {
		return fmt.Errorf("failed to read identity attribute: %v", err)
	}
	if !found || val != "true" {
		return fmt.Errorf("%w (attribute %s=true required)", engine.ErrNotAdmin, AdminAttribute)
	}
	return nil
}

func principalAddress(mspID, id string) string {
	return utils.AddressFromIdentity(mspID + "/" + id)
}

// base is embedded by every contract of the chaincode
type base struct {
	engine *engine.Engine
}

// txn opens the ledger view of the current invocation
func (b *base) txn(ctx contractapi.TransactionContextInterface) *ledger.StubTx {
	return ledger.NewStubTx(ctx.GetStub())
}

// txnAs opens the ledger view and resolves the caller
func (b *base) txnAs(ctx contractapi.TransactionContextInterface) (*ledger.StubTx, string, error) {
	caller, err := callerAddress(ctx)
	if err != nil {
		return nil, "", err
	}
	return b.txn(ctx), caller, nil
}
