package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/haven-health-passport/chaincode/consent/ledger"
	"github.com/haven-health-passport/chaincode/consent/models"
	"github.com/haven-health-passport/chaincode/consent/utils"
)

// RegisterKey binds publicKey to principal, overwriting any previous key.
// Only the principal itself may write its entry.
func (e *Engine) RegisterKey(tx ledger.Tx, caller, principal, publicKey string) (*models.Principal, error) {
	caller = utils.NormalizeAddress(caller)
	principal = utils.NormalizeAddress(principal)
	fields := logrus.Fields{"caller": caller, "principal": principal}

	if err := utils.ValidateAddress(principal); err != nil {
		return nil, e.rejected("registerKey", wrap(ErrInvalidAddress, "%v", err), fields)
	}
	if caller != principal {
		return nil, e.rejected("registerKey", wrap(ErrIdentityMismatch, "caller %s, principal %s", caller, principal), fields)
	}
	if err := utils.ValidatePublicKey(publicKey); err != nil {
		return nil, e.rejected("registerKey", wrap(ErrInvalidKey, "%v", err), fields)
	}

	ts, err := now(tx)
	if err != nil {
		return nil, err
	}

	key := utils.CreatePrincipalKey(principal)
	var p models.Principal
	found, err := getJSON(tx, key, &p)
	if err != nil {
		return nil, fmt.Errorf("failed to read principal: %w", err)
	}
	if !found {
		p = models.Principal{
			Address:      principal,
			RegisteredAt: ts,
			ObjectType:   models.ObjectTypePrincipal,
		}
	}
	p.PublicKey = publicKey
	p.UpdatedAt = ts
	p.KeyVersion++

	if err := putJSON(tx, key, p); err != nil {
		return nil, fmt.Errorf("failed to store principal: %w", err)
	}

	t := &models.Transition{
		Kind:      models.TransitionKeyRegistered,
		Actor:     caller,
		Target:    "principal:" + principal,
		Timestamp: ts,
	}
	if err := e.appendTransition(tx, t, EventKeyRegistered); err != nil {
		return nil, err
	}

	e.log.WithFields(fields).WithFields(logrus.Fields{
		"keyVersion": p.KeyVersion,
		"seq":        t.Seq,
	}).Info("public key registered")
	return &p, nil
}

// GetKey returns the principal's current key. found is false when no key has
// been registered; that is a valid state, not an error.
func (e *Engine) GetKey(tx ledger.Tx, principal string) (publicKey string, found bool, err error) {
	p, err := e.GetPrincipal(tx, principal)
	if err != nil {
		return "", false, err
	}
	if !p.HasKey() {
		return "", false, nil
	}
	return p.PublicKey, true, nil
}

// GetPrincipal returns the principal entry, or nil when none exists
func (e *Engine) GetPrincipal(tx ledger.Tx, principal string) (*models.Principal, error) {
	principal = utils.NormalizeAddress(principal)
	if err := utils.ValidateAddress(principal); err != nil {
		return nil, wrap(ErrInvalidAddress, "%v", err)
	}

	var p models.Principal
	found, err := getJSON(tx, utils.CreatePrincipalKey(principal), &p)
	if err != nil {
		return nil, fmt.Errorf("failed to read principal: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &p, nil
}
