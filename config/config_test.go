package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven-health-passport/chaincode/consent/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "consent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, models.DefaultPolicy(), cfg.Policy())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
engine:
  max_grant_duration: 720h
  default_grant_duration: 48h
  log_access: false
ledger:
  path: /var/lib/consent/ledger
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 720*time.Hour, cfg.Engine.MaxGrantDuration)
	assert.Equal(t, 48*time.Hour, cfg.Engine.DefaultGrantDuration)
	assert.False(t, cfg.Engine.LogAccess)
	assert.Equal(t, models.DefaultMaxDEKBytes, cfg.Engine.MaxDEKBytes, "unset keys keep defaults")
	assert.Equal(t, "/var/lib/consent/ledger", cfg.Ledger.Path)
	assert.Equal(t, "./data/blobs", cfg.Storage.Path)
	assert.Equal(t, "json", cfg.Logging.Format)

	p := cfg.Policy()
	assert.Equal(t, 720*time.Hour, p.MaxGrantDuration)
	assert.False(t, p.LogAccess)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONSENT_LEDGER_PATH", "/tmp/ledger-env")
	t.Setenv("CONSENT_LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ledger-env", cfg.Ledger.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed yaml", "engine: [unclosed"},
		{"bad duration", "engine:\n  max_grant_duration: forever\n"},
		{"default beyond max", "engine:\n  max_grant_duration: 24h\n  default_grant_duration: 48h\n"},
		{"zero dek limit", "engine:\n  max_dek_bytes: 0\n"},
		{"empty ledger path", "ledger:\n  path: \"\"\n"},
		{"unknown log format", "logging:\n  format: xml\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
