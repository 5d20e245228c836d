package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/haven-health-passport/chaincode/consent/ledger"
	"github.com/haven-health-passport/chaincode/consent/models"
	"github.com/haven-health-passport/chaincode/consent/utils"
)

// Transitions returns the transition log from fromSeq on, in log order
func (e *Engine) Transitions(tx ledger.Tx, fromSeq uint64) ([]*models.Transition, error) {
	entries, err := tx.Scan(utils.TransitionPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to read transition log: %w", err)
	}

	out := make([]*models.Transition, 0, len(entries))
	for _, kv := range entries {
		var t models.Transition
		if err := json.Unmarshal(kv.Value, &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transition %s: %w", kv.Key, err)
		}
		if t.Seq < fromSeq {
			continue
		}
		out = append(out, &t)
	}
	return out, nil
}

// Audit folds the transition log into audit entries matching filter.
// Expiry is never logged, so expired entries are derived here for every
// grant whose expiry has passed at the transaction time without a revoke.
func (e *Engine) Audit(tx ledger.Tx, filter models.AuditFilter) ([]*models.AuditEntry, error) {
	filter.Principal = utils.NormalizeAddress(filter.Principal)

	transitions, err := e.Transitions(tx, 0)
	if err != nil {
		return nil, err
	}
	ts, err := now(tx)
	if err != nil {
		return nil, err
	}

	entries := Project(transitions, ts)

	out := entries[:0]
	for _, entry := range entries {
		if filter.Matches(entry) {
			out = append(out, entry)
		}
	}
	return out, nil
}

// Project is the pure fold behind Audit. It reads transitions in log order
// and evaluates expiry at now.
func Project(transitions []*models.Transition, now time.Time) []*models.AuditEntry {
	type grantState struct {
		entry     models.AuditEntry
		expiresAt time.Time
		revoked   bool
	}

	var (
		entries []*models.AuditEntry
		grants  = make(map[uint64]*grantState)
		order   []uint64
	)

	for _, t := range transitions {
		var action models.AuditAction
		switch t.Kind {
		case models.TransitionGrantCreated:
			action = models.AuditGranted
		case models.TransitionGrantAccessed:
			action = models.AuditAccessed
		case models.TransitionGrantRevoked:
			action = models.AuditRevoked
		default:
			continue
		}

		entry := &models.AuditEntry{
			Seq:       t.Seq,
			Action:    action,
			GrantID:   t.GrantID,
			RecordID:  t.RecordID,
			PatientID: t.PatientID,
			DoctorID:  t.DoctorID,
			Actor:     t.Actor,
			TxID:      t.TxID,
			Timestamp: t.Timestamp,
		}
		entries = append(entries, entry)

		switch action {
		case models.AuditGranted:
			grants[t.GrantID] = &grantState{entry: *entry, expiresAt: t.ExpiresAt}
			order = append(order, t.GrantID)
		case models.AuditRevoked:
			if st, ok := grants[t.GrantID]; ok {
				st.revoked = true
			}
		}
	}

	for _, id := range order {
		st := grants[id]
		if st.revoked || st.expiresAt.IsZero() || now.Before(st.expiresAt) {
			continue
		}
		expired := st.entry
		expired.Seq = 0
		expired.Action = models.AuditExpired
		expired.Actor = ""
		expired.TxID = ""
		expired.Timestamp = st.expiresAt
		entries = append(entries, &expired)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return orderKey(a) < orderKey(b)
	})
	return entries
}

// orderKey places derived entries after logged ones at the same instant
func orderKey(e *models.AuditEntry) uint64 {
	if e.Seq == 0 {
		return math.MaxUint64
	}
	return e.Seq
}
