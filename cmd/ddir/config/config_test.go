package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "WARN", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
url: ldaps://ldap.example.org
bind_dn: cn=admin,dc=example,dc=org
timeout: 5s
starttls: false
logging:
  level: DEBUG
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ldaps://ldap.example.org", cfg.URL)
	assert.Equal(t, "cn=admin,dc=example,dc=org", cfg.BindDN)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)

	require.NoError(t, cfg.Validate())
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: ldap://from-file\n"), 0644))

	t.Setenv("DDIR_URL", "ldap://from-env")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ldap://from-env", cfg.URL)
}

func TestValidateRejectsMissingURL(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Validate())

	cfg.URL = "ldap://ldap.example.org"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadLogLevel(t *testing.T) {
	cfg := &Config{URL: "ldap://x", Logging: LoggingConfig{Level: "LOUD"}}
	assert.Error(t, cfg.Validate())
}
