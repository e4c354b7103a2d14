package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
database:
  url: "postgres://localhost/medjournal"
gemini:
  api_key: "key"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "8090", cfg.Server.Port)
	assert.Equal(t, "file://migrations", cfg.Database.MigrationsPath)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)
	assert.Equal(t, "gemini-1.5-flash", cfg.Gemini.ModelName)
	assert.Equal(t, int64(30), cfg.Gemini.TimeoutSeconds)
	assert.Equal(t, "message", cfg.Signer.Mode)
	assert.Equal(t, int64(11155111), cfg.Signer.ChainID)
	assert.Equal(t, int64(2), cfg.Signer.ConfirmPollSeconds)
	assert.Equal(t, int64(24), cfg.Session.TokenTTLHours)
	assert.Equal(t, int64(10), cfg.Workflow.PersistTimeoutSeconds)
}

func TestLoadConfig_ExpandsEnvSecrets(t *testing.T) {
	t.Setenv("TEST_DB_URL", "postgres://db.internal/medjournal")
	t.Setenv("TEST_GEMINI_KEY", "secret-key")

	path := writeConfig(t, `
database:
  url: "${TEST_DB_URL}"
gemini:
  api_key: "${TEST_GEMINI_KEY}"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://db.internal/medjournal", cfg.Database.URL)
	assert.Equal(t, "secret-key", cfg.Gemini.APIKey)
}

func TestLoadConfig_ExplicitValuesKept(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9000"
signer:
  mode: "recorder"
  contract_address: "0x00000000000000000000000000000000000000aa"
  chain_id: 1
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "recorder", cfg.Signer.Mode)
	assert.Equal(t, int64(1), cfg.Signer.ChainID)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}
