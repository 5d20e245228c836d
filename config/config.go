// Package config loads the settings of the local consent tooling from YAML.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haven-health-passport/chaincode/consent/models"
)

// Config is the top-level configuration
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig holds the consent policy
type EngineConfig struct {
	MaxGrantDuration     time.Duration `yaml:"max_grant_duration"`
	DefaultGrantDuration time.Duration `yaml:"default_grant_duration"`
	LogAccess            bool          `yaml:"log_access"`
	MaxDEKBytes          int           `yaml:"max_dek_bytes"`
}

// LedgerConfig locates the local ledger
type LedgerConfig struct {
	Path string `yaml:"path"`
}

// StorageConfig locates the encrypted blob store
type StorageConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Default returns the built-in configuration
func Default() *Config {
	p := models.DefaultPolicy()
	return &Config{
		Engine: EngineConfig{
			MaxGrantDuration:     p.MaxGrantDuration,
			DefaultGrantDuration: 7 * 24 * time.Hour,
			LogAccess:            p.LogAccess,
			MaxDEKBytes:          p.MaxDEKBytes,
		},
		Ledger:  LedgerConfig{Path: "./data/ledger"},
		Storage: StorageConfig{Path: "./data/blobs"},
		Logging: LoggingConfig{Level: "info", Format: "text", Output: "stderr"},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies CONSENT_* environment variables
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CONSENT_LEDGER_PATH"); v != "" {
		cfg.Ledger.Path = v
	}
	if v := os.Getenv("CONSENT_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("CONSENT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for values the engine would reject
func (c *Config) Validate() error {
	if c.Engine.MaxGrantDuration <= 0 {
		return fmt.Errorf("engine.max_grant_duration must be positive")
	}
	if c.Engine.DefaultGrantDuration <= 0 || c.Engine.DefaultGrantDuration > c.Engine.MaxGrantDuration {
		return fmt.Errorf("engine.default_grant_duration must be positive and at most %s", c.Engine.MaxGrantDuration)
	}
	if c.Engine.MaxDEKBytes <= 0 {
		return fmt.Errorf("engine.max_dek_bytes must be positive")
	}
	if strings.TrimSpace(c.Ledger.Path) == "" {
		return fmt.Errorf("ledger.path is required")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return fmt.Errorf("storage.path is required")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// Policy returns the engine policy the configuration describes
func (c *Config) Policy() models.Policy {
	p := models.DefaultPolicy()
	p.MaxGrantDuration = c.Engine.MaxGrantDuration
	p.LogAccess = c.Engine.LogAccess
	p.MaxDEKBytes = c.Engine.MaxDEKBytes
	return p
}
