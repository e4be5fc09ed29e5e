package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("wallet:\n  rpcURL: http://localhost:8545\n"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "http://localhost:8545", cfg.Wallet.RPCURL)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout())
	assert.Equal(t, 10, cfg.Wallet.BurstLimit)
	assert.True(t, cfg.RegistryRemoteEnabled())
	assert.Equal(t, 50, cfg.Discovery.SampleSize)
	assert.Equal(t, "1000000000000000", cfg.Preflight.MinNativeBalanceWei)
	assert.Equal(t, int64(2000), cfg.Tracker.InitialDelayMillis)
	assert.Equal(t, int64(5000), cfg.Tracker.PollIntervalMillis)
	assert.Equal(t, 60, cfg.Tracker.MaxAttempts)
	assert.Equal(t, uint64(90000), cfg.Fallback.GasLimit)
	assert.Equal(t, "data/journal", cfg.Journal.Path)
}

func TestParseKeepsExplicitValues(t *testing.T) {
	yml := `
server:
  port: "9000"
registry:
  remoteEnabled: false
tracker:
  maxAttempts: 5
fallback:
  interTxDelayMillis: -1
discovery:
  prioritySymbols: [USDC, DAI]
`
	cfg, err := Parse([]byte(yml))
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.False(t, cfg.RegistryRemoteEnabled())
	assert.Equal(t, 5, cfg.Tracker.MaxAttempts)
	assert.Equal(t, int64(-1), cfg.Fallback.InterTxDelayMillis)
	assert.Equal(t, []string{"USDC", "DAI"}, cfg.Discovery.PrioritySymbols)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}
