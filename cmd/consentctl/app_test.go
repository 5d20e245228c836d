package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-health-passport/chaincode/consent/config"
	"github.com/haven-health-passport/chaincode/consent/engine"
	"github.com/haven-health-passport/chaincode/consent/models"
)

func testApp(t *testing.T, dir string) *app {
	t.Helper()
	cfg := config.Default()
	cfg.Ledger.Path = filepath.Join(dir, "ledger")
	cfg.Storage.Path = filepath.Join(dir, "blobs")

	log := logrus.New()
	log.SetOutput(io.Discard)

	a, err := openApp(cfg, log, &bytes.Buffer{})
	require.NoError(t, err)
	return a
}

func testWallet(t *testing.T, dir, name string) *keyFile {
	t.Helper()
	kf, err := newKeyFile(filepath.Join(dir, name+".yaml"))
	require.NoError(t, err)
	require.NoError(t, kf.save())
	return kf
}

func TestKeyFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	kf := testWallet(t, dir, "patient")
	kf.putDEK("r1", bytes.Repeat([]byte{7}, 32))
	require.NoError(t, kf.save())

	loaded, err := loadKeyFile(kf.path)
	require.NoError(t, err)
	assert.Equal(t, kf.Address, loaded.Address)
	assert.Equal(t, kf.PublicKey, loaded.pair.EncodedPublicKey())

	dek, err := loaded.dek("r1")
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{7}, 32), dek)

	_, err = loaded.dek("r2")
	assert.Error(t, err)
}

func TestKeyFileRejectsForeignAddress(t *testing.T) {
	dir := t.TempDir()
	kf := testWallet(t, dir, "patient")
	other := testWallet(t, dir, "other")

	kf.Address = other.Address
	require.NoError(t, kf.save())

	_, err := loadKeyFile(kf.path)
	assert.ErrorContains(t, err, "address does not match")
}

func TestShareRecordEndToEnd(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	patient := testWallet(t, dir, "patient")
	doctor := testWallet(t, dir, "doctor")
	plaintext := []byte(`{"resourceType":"Observation","code":"8867-4","value":72}`)

	a := testApp(t, dir)

	_, err := a.registerKey(ctx, patient)
	require.NoError(t, err)

	// No doctor key yet
	_, err = a.upload(ctx, patient, "obs-1", plaintext)
	require.NoError(t, err)
	_, err = a.grant(ctx, patient, "obs-1", doctor.Address, 24*time.Hour)
	assert.ErrorIs(t, err, engine.ErrDoctorKeyMissing)

	_, err = a.registerKey(ctx, doctor)
	require.NoError(t, err)

	g, err := a.grant(ctx, patient, "obs-1", doctor.Address, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, models.GrantStatusActive, g.Status)

	got, decision, err := a.access(ctx, doctor, g.GrantID)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
	assert.True(t, decision.Authorized)

	// The patient holds the DEK but is not the grantee
	_, decision, err = a.access(ctx, patient, g.GrantID)
	assert.Error(t, err)
	require.NotNil(t, decision)
	assert.False(t, decision.Authorized)

	_, err = a.revoke(ctx, patient, g.GrantID)
	require.NoError(t, err)

	_, decision, err = a.access(ctx, doctor, g.GrantID)
	assert.ErrorContains(t, err, "access denied")
	assert.Equal(t, models.GrantStatusRevoked, decision.EffectiveStatus)

	require.NoError(t, a.Close())

	// State survives a reopen
	a = testApp(t, dir)
	defer a.Close()

	view, err := a.svc.GetGrant(ctx, g.GrantID)
	require.NoError(t, err)
	assert.Equal(t, models.GrantStatusRevoked, view.EffectiveStatus)

	byRecord, err := a.svc.ListGrantsByRecord(ctx, "obs-1")
	require.NoError(t, err)
	require.Len(t, byRecord, 1)
	assert.Equal(t, g.GrantID, byRecord[0].GrantID)

	entries, err := a.svc.Audit(ctx, models.AuditFilter{RecordID: "obs-1"})
	require.NoError(t, err)
	var actions []models.AuditAction
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []models.AuditAction{
		models.AuditGranted,
		models.AuditAccessed,
		models.AuditRevoked,
	}, actions)
}

func TestUploadKeepsDEKInWallet(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	patient := testWallet(t, dir, "patient")

	a := testApp(t, dir)
	defer a.Close()

	record, err := a.upload(ctx, patient, "lab-7", []byte("hba1c 5.4%"))
	require.NoError(t, err)

	reloaded, err := loadKeyFile(patient.path)
	require.NoError(t, err)
	_, err = reloaded.dek("lab-7")
	require.NoError(t, err)

	has, err := a.blobs.Has(record.Locator)
	require.NoError(t, err)
	assert.True(t, has)

	_, err = os.Stat(filepath.Join(dir, "ledger"))
	assert.NoError(t, err)
}
