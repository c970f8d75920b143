// internal/common/config/loader_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
database:
  postgres:
    host: "localhost"
    database: "portal"
    user: "portal"
  redis:
    address: "localhost:6379"
auth:
  jwt_secret: "secret"
forms:
  current_key: "2026-cfg-application"
`

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfigFile(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.SessionWindow())
	assert.Equal(t, 15*time.Minute, cfg.LockWindow())
	assert.Equal(t, 10*time.Minute, cfg.PresignTTL())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFileRejectsMissingJWTSecret(t *testing.T) {
	broken := `
database:
  postgres:
    host: "localhost"
    database: "portal"
    user: "portal"
  redis:
    address: "localhost:6379"
forms:
  current_key: "2026-cfg-application"
`
	_, err := LoadFromFile(writeConfigFile(t, broken))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestLoadFromFileRejectsMissingFormKey(t *testing.T) {
	broken := `
database:
  postgres:
    host: "localhost"
    database: "portal"
    user: "portal"
  redis:
    address: "localhost:6379"
auth:
  jwt_secret: "secret"
`
	_, err := LoadFromFile(writeConfigFile(t, broken))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "current_key")
}

func TestGetDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "db", Port: 5432, Database: "portal",
		User: "u", Password: "p", SSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=portal sslmode=disable", p.GetDSN())
}
