package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuditRole(t *testing.T) {
	tests := []struct {
		in      string
		want    AuditRole
		wantErr bool
	}{
		{in: "", want: AuditRoleAny},
		{in: "patient", want: AuditRolePatient},
		{in: "doctor", want: AuditRoleDoctor},
		{in: "docter", wantErr: true},
		{in: "Doctor", wantErr: true},
		{in: " patient", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAuditRole(tt.in)
			if tt.wantErr {
				assert.ErrorContains(t, err, "invalid role")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
