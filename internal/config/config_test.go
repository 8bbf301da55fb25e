package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  port: 9090
  mode: debug
database:
  driver: memory
jwt:
  secret: from-file
outbox:
  poll_interval: 2s
email:
  provider: log
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoad_FileAndDefaults(t *testing.T) {
	dir := writeConfig(t, sampleYAML)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, 2*time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, 100, cfg.Outbox.BatchSize)
	assert.Equal(t, 8, cfg.Referral.CodeLength)
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, 15*time.Minute, cfg.Security.LockoutDuration)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	dir := writeConfig(t, sampleYAML)
	t.Setenv("CLINIC_JWT_SECRET", "from-env")
	t.Setenv("CLINIC_SERVER_PORT", "7070")
	t.Setenv("CLINIC_OUTBOX_BATCH_SIZE", "10")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Outbox.BatchSize)
}

func TestLoad_MissingSecret(t *testing.T) {
	dir := writeConfig(t, "database:\n  driver: memory\n")

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret is required")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{Driver: "postgres", Port: 5432},
			JWT:      JWTConfig{Secret: "s"},
			Email:    EmailConfig{Provider: "log"},
			Referral: ReferralConfig{CodeLength: 8},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "unknown database.driver"},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"smtp without host", func(c *Config) { c.Email.Provider = "smtp" }, "smtp_host"},
		{"sendgrid without key", func(c *Config) { c.Email.Provider = "sendgrid" }, "sendgrid_api_key"},
		{"push without credentials", func(c *Config) { c.Push.Enabled = true }, "credentials_file"},
		{"short referral codes", func(c *Config) { c.Referral.CodeLength = 2 }, "code_length"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
