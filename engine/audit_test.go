package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-health-passport/chaincode/consent/engine"
	"github.com/haven-health-passport/chaincode/consent/models"
)

func actions(entries []*models.AuditEntry) []models.AuditAction {
	out := make([]models.AuditAction, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func TestAuditDerivesExpiry(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	g := f.grant(t, doctor, day)

	entries, err := f.svc.Audit(f.ctx, models.AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, []models.AuditAction{models.AuditGranted}, actions(entries))

	f.clock.Advance(25 * time.Hour)
	entries, err = f.svc.Audit(f.ctx, models.AuditFilter{})
	require.NoError(t, err)
	require.Equal(t, []models.AuditAction{models.AuditGranted, models.AuditExpired}, actions(entries))

	expired := entries[1]
	assert.Equal(t, g.GrantID, expired.GrantID)
	assert.Equal(t, t0.Add(day), expired.Timestamp)
	assert.Zero(t, expired.Seq)
	assert.Empty(t, expired.TxID)
}

func TestAuditRevokedNeverExpires(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	g := f.grant(t, doctor, day)

	f.clock.Advance(time.Hour)
	_, err := f.svc.RevokeConsent(f.ctx, patient, g.GrantID)
	require.NoError(t, err)

	f.clock.Advance(2 * day)
	entries, err := f.svc.Audit(f.ctx, models.AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, []models.AuditAction{models.AuditGranted, models.AuditRevoked}, actions(entries))
}

func TestAuditFilters(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	_, err := f.svc.RegisterRecord(f.ctx, patient, "r2", "loc-r2", recordHash)
	require.NoError(t, err)

	g1 := f.grant(t, doctor, 7*day)
	f.clock.Advance(time.Hour)
	f.grant(t, doctor2, 7*day)
	f.clock.Advance(time.Hour)
	_, err = f.svc.CheckAccess(f.ctx, doctor, g1.GrantID)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	_, err = f.svc.GrantConsent(f.ctx, patient, "r2", doctor2, "E", day)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter models.AuditFilter
		want   int
	}{
		{"everything", models.AuditFilter{}, 4},
		{"patient any role", models.AuditFilter{Principal: patient}, 4},
		{"patient as doctor", models.AuditFilter{Principal: patient, Role: models.AuditRoleDoctor}, 0},
		{"doctor", models.AuditFilter{Principal: doctor}, 2},
		{"doctor2 as doctor", models.AuditFilter{Principal: doctor2, Role: models.AuditRoleDoctor}, 2},
		{"record r2", models.AuditFilter{RecordID: "r2"}, 1},
		{"from second hour", models.AuditFilter{From: t0.Add(time.Hour)}, 3},
		{"before second hour", models.AuditFilter{To: t0.Add(time.Hour)}, 1},
		{"window", models.AuditFilter{From: t0.Add(time.Hour), To: t0.Add(3 * time.Hour)}, 2},
		{"stranger", models.AuditFilter{Principal: stranger}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := f.svc.Audit(f.ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, entries, tt.want)
		})
	}
}

func TestProjectOrdering(t *testing.T) {
	exp := t0.Add(time.Hour)
	transitions := []*models.Transition{
		{Seq: 1, Kind: models.TransitionKeyRegistered, Timestamp: t0},
		{Seq: 2, Kind: models.TransitionGrantCreated, GrantID: 1, ExpiresAt: exp, Timestamp: t0},
		{Seq: 3, Kind: models.TransitionGrantCreated, GrantID: 2, ExpiresAt: exp, Timestamp: t0},
		{Seq: 4, Kind: models.TransitionGrantRevoked, GrantID: 2, Timestamp: exp},
		{Seq: 5, Kind: models.TransitionGrantAccessed, GrantID: 1, Timestamp: exp.Add(-time.Minute)},
	}

	entries := engine.Project(transitions, exp)
	require.Len(t, entries, 5)

	assert.Equal(t, uint64(2), entries[0].Seq)
	assert.Equal(t, uint64(3), entries[1].Seq)
	assert.Equal(t, uint64(5), entries[2].Seq)
	assert.Equal(t, uint64(4), entries[3].Seq)
	assert.Equal(t, models.AuditExpired, entries[4].Action, "derived entries follow logged ones at the same instant")
	assert.Equal(t, uint64(1), entries[4].GrantID)

	assert.Len(t, engine.Project(transitions, exp.Add(-time.Nanosecond)), 4)
}
