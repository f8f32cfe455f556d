package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "PUBLIC_BASE_URL", "LOG_LEVEL", "DATABASE_URL", "JWT_SECRET"} {
		t.Setenv(key, "")
	}
	path := writeConfig(t, `
database:
  url: postgres://localhost/wapulse
auth:
  jwt_secret: file-secret
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8080", cfg.Server.PublicBaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "v20.0", cfg.Meta.APIVersion)
	assert.Equal(t, "file-secret", cfg.Meta.StateSecret)
	assert.Equal(t, time.Minute, cfg.Redis.Window)
	assert.Equal(t, 4, cfg.Workers.BroadcastWorkers)
	assert.Equal(t, 64, cfg.Workers.BroadcastQueue)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
  public_base_url: https://api.example.com/
database:
  url: postgres://file/db
auth:
  jwt_secret: file-secret
workers:
  reaper_interval: 30s
`)
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("PORT", "7000")
	t.Setenv("META_APP_SECRET", "meta-secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env/db", cfg.Database.DSN)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "https://api.example.com", cfg.Server.PublicBaseURL)
	assert.Equal(t, "meta-secret", cfg.Meta.AppSecret)
	assert.Equal(t, 30*time.Second, cfg.Workers.ReaperInterval)
}

func TestLoadMissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "")
	path := writeConfig(t, "database:\n  url: postgres://localhost/db\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "auth.jwt_secret")
}

func TestLoadRejectsBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed"))
	assert.ErrorContains(t, err, "parse")
}
