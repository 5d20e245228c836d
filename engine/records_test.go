package engine_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-health-passport/chaincode/consent/engine"
)

func TestRegisterRecord(t *testing.T) {
	f := newFixture(t)

	r, err := f.svc.RegisterRecord(f.ctx, patient, "lab-2026-03", "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi", recordHash)
	require.NoError(t, err)
	assert.Equal(t, patient, r.OwnerID)
	assert.Equal(t, t0, r.CreatedAt)

	got, err := f.svc.GetRecord(f.ctx, "lab-2026-03")
	require.NoError(t, err)
	assert.Equal(t, r, got)

	_, err = f.svc.RegisterRecord(f.ctx, stranger, "lab-2026-03", "other", recordHash)
	require.ErrorIs(t, err, engine.ErrDuplicateRecord)
	assert.Equal(t, engine.CategoryConflict, engine.CategoryOf(err))

	got, err = f.svc.GetRecord(f.ctx, "lab-2026-03")
	require.NoError(t, err)
	assert.Equal(t, patient, got.OwnerID, "owner never changes")
}

func TestRegisterRecordRejections(t *testing.T) {
	tests := []struct {
		name     string
		recordID string
		locator  string
		hash     string
		want     error
	}{
		{"empty locator", "r1", "", recordHash, engine.ErrInvalidLocator},
		{"blank locator", "r1", "  ", recordHash, engine.ErrInvalidLocator},
		{"empty record id", "", "loc", recordHash, engine.ErrInvalidRecordID},
		{"separator in record id", "a~b", "loc", recordHash, engine.ErrInvalidRecordID},
		{"long record id", strings.Repeat("x", 200), "loc", recordHash, engine.ErrInvalidRecordID},
		{"bad hash", "r1", "loc", "not-a-hash", engine.ErrInvalidIntegrityHash},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.RegisterRecord(f.ctx, patient, tt.recordID, tt.locator, tt.hash)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, engine.CategoryValidation, engine.CategoryOf(err))
			assert.Zero(t, f.store.Len())
		})
	}
}

func TestGetRecordNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GetRecord(f.ctx, "missing")
	require.ErrorIs(t, err, engine.ErrRecordNotFound)
	assert.Equal(t, "RecordNotFound", engine.CodeOf(err))
}

func TestListRecordsByOwner(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"b", "a", "c"} {
		_, err := f.svc.RegisterRecord(f.ctx, patient, id, "loc-"+id, recordHash)
		require.NoError(t, err)
	}
	_, err := f.svc.RegisterRecord(f.ctx, stranger, "z", "loc-z", recordHash)
	require.NoError(t, err)

	rs, err := f.svc.ListRecordsByOwner(f.ctx, patient)
	require.NoError(t, err)
	require.Len(t, rs, 3)
	assert.Equal(t, "a", rs[0].RecordID)
	assert.Equal(t, "b", rs[1].RecordID)
	assert.Equal(t, "c", rs[2].RecordID)
}
