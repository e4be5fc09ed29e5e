package configloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	assert.Equal(t, DefaultConfigPath, ResolvePath(""))
	assert.Equal(t, "x.yml", ResolvePath("x.yml"))

	t.Setenv(EnvConfigPath, "/etc/sweeper.yml")
	assert.Equal(t, "/etc/sweeper.yml", ResolvePath(""))
	assert.Equal(t, "x.yml", ResolvePath("x.yml"))
}

func TestLoadWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("wallet:\n  rpcURL: http://a:8545\nlogging:\n  level: warn\n"), 0o644))

	t.Setenv(EnvRPCURL, "ws://b:8546")
	t.Setenv(EnvLogLevel, "debug")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://b:8546", cfg.Wallet.RPCURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadMissingDefaultFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvConfigPath, "")
	t.Setenv(EnvRPCURL, "")
	t.Setenv(EnvLogLevel, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestValidateRejectsUnknownScheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("wallet:\n  rpcURL: ipc:///tmp/geth.ipc\n"), 0o644))
	t.Setenv(EnvRPCURL, "")

	_, err := Load(path)
	assert.ErrorContains(t, err, "unsupported")
}
