package engine

import (
	"context"
	"time"

	"github.com/haven-health-passport/chaincode/consent/ledger"
	"github.com/haven-health-passport/chaincode/consent/models"
)

// Service runs engine operations against a local ledger.Store, one atomic
// transaction per call. Callers pass the authenticated principal as caller.
type Service struct {
	engine *Engine
	store  ledger.Store
}

// NewService binds an engine to a store
func NewService(e *Engine, s ledger.Store) *Service {
	return &Service{engine: e, store: s}
}

// Engine returns the underlying engine
func (s *Service) Engine() *Engine {
	return s.engine
}

// StorePolicy anchors p on the ledger
func (s *Service) StorePolicy(ctx context.Context, p models.Policy) error {
	return s.store.Update(ctx, func(tx ledger.Tx) error {
		return s.engine.StorePolicy(tx, p)
	})
}

// Policy returns the effective policy
func (s *Service) Policy(ctx context.Context) (p models.Policy, err error) {
	err = s.store.View(ctx, func(tx ledger.Tx) error {
		p, err = s.engine.Policy(tx)
		return err
	})
	return p, err
}

// RegisterKey registers caller's public key
func (s *Service) RegisterKey(ctx context.Context, caller, principal, publicKey string) (p *models.Principal, err error) {
	err = s.store.Update(ctx, func(tx ledger.Tx) error {
		p, err = s.engine.RegisterKey(tx, caller, principal, publicKey)
		return err
	})
	return p, err
}

// GetKey returns a principal's current key
func (s *Service) GetKey(ctx context.Context, principal string) (key string, found bool, err error) {
	err = s.store.View(ctx, func(tx ledger.Tx) error {
		key, found, err = s.engine.GetKey(tx, principal)
		return err
	})
	return key, found, err
}

// RegisterRecord anchors a record owned by caller
func (s *Service) RegisterRecord(ctx context.Context, caller, recordID, locator, integrityHash string) (r *models.Record, err error) {
	err = s.store.Update(ctx, func(tx ledger.Tx) error {
		r, err = s.engine.RegisterRecord(tx, caller, recordID, locator, integrityHash)
		return err
	})
	return r, err
}

// GetRecord returns a record
func (s *Service) GetRecord(ctx context.Context, recordID string) (r *models.Record, err error) {
	err = s.store.View(ctx, func(tx ledger.Tx) error {
		r, err = s.engine.GetRecord(tx, recordID)
		return err
	})
	return r, err
}

// ListRecordsByOwner returns an owner's records
func (s *Service) ListRecordsByOwner(ctx context.Context, owner string) (rs []*models.Record, err error) {
	err = s.store.View(ctx, func(tx ledger.Tx) error {
		rs, err = s.engine.ListRecordsByOwner(tx, owner)
		return err
	})
	return rs, err
}

// GrantConsent creates a grant issued by caller
func (s *Service) GrantConsent(ctx context.Context, caller, recordID, doctor, encryptedDEK string, duration time.Duration) (g *models.ConsentGrant, err error) {
	err = s.store.Update(ctx, func(tx ledger.Tx) error {
		g, err = s.engine.GrantConsent(tx, caller, recordID, doctor, encryptedDEK, duration)
		return err
	})
	return g, err
}

// RevokeConsent revokes a grant issued by caller
func (s *Service) RevokeConsent(ctx context.Context, caller string, grantID uint64) (g *models.ConsentGrant, err error) {
	err = s.store.Update(ctx, func(tx ledger.Tx) error {
		g, err = s.engine.RevokeConsent(tx, caller, grantID)
		return err
	})
	return g, err
}

// GetGrant returns a grant view
func (s *Service) GetGrant(ctx context.Context, grantID uint64) (g *models.GrantView, err error) {
	err = s.store.View(ctx, func(tx ledger.Tx) error {
		g, err = s.engine.GetGrant(tx, grantID)
		return err
	})
	return g, err
}

// ListGrantsByPatient returns a patient's grants
func (s *Service) ListGrantsByPatient(ctx context.Context, patient string) (gs []*models.GrantView, err error) {
	err = s.store.View(ctx, func(tx ledger.Tx) error {
		gs, err = s.engine.ListGrantsByPatient(tx, patient)
		return err
	})
	return gs, err
}

// ListGrantsByDoctor returns a doctor's grants
func (s *Service) ListGrantsByDoctor(ctx context.Context, doctor string) (gs []*models.GrantView, err error) {
	err = s.store.View(ctx, func(tx ledger.Tx) error {
		gs, err = s.engine.ListGrantsByDoctor(tx, doctor)
		return err
	})
	return gs, err
}

// ListGrantsByRecord returns the grants issued against a record
func (s *Service) ListGrantsByRecord(ctx context.Context, recordID string) (gs []*models.GrantView, err error) {
	err = s.store.View(ctx, func(tx ledger.Tx) error {
		gs, err = s.engine.ListGrantsByRecord(tx, recordID)
		return err
	})
	return gs, err
}

// CheckAccess runs the access verifier. It runs as an update because an
// authorized decision may append an access transition.
func (s *Service) CheckAccess(ctx context.Context, doctor string, grantID uint64) (d *models.AccessDecision, err error) {
	err = s.store.Update(ctx, func(tx ledger.Tx) error {
		d, err = s.engine.CheckAccess(tx, doctor, grantID)
		return err
	})
	return d, err
}

// Audit returns the audit projection
func (s *Service) Audit(ctx context.Context, filter models.AuditFilter) (es []*models.AuditEntry, err error) {
	err = s.store.View(ctx, func(tx ledger.Tx) error {
		es, err = s.engine.Audit(tx, filter)
		return err
	})
	return es, err
}

// Transitions returns the raw transition log from fromSeq
func (s *Service) Transitions(ctx context.Context, fromSeq uint64) (ts []*models.Transition, err error) {
	err = s.store.View(ctx, func(tx ledger.Tx) error {
		ts, err = s.engine.Transitions(tx, fromSeq)
		return err
	})
	return ts, err
}
