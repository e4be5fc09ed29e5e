package configloader

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"batch_transfer/internal/config"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultConfigPath is used when neither a flag nor CONFIG_PATH is given.
	DefaultConfigPath = "config/config.yml"

	EnvConfigPath = "CONFIG_PATH"
	EnvRPCURL     = "SWEEPER_RPC_URL"
	EnvLogLevel   = "SWEEPER_LOG_LEVEL"
)

// ResolvePath picks the config file: explicit path, then CONFIG_PATH, then the default.
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load reads the configuration and applies environment overrides.
// A missing file at the default location yields the built-in defaults.
func Load(path string) (*config.Config, error) {
	resolved := ResolvePath(path)

	cfg, err := config.LoadConfig(resolved)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) || resolved != DefaultConfigPath {
			return nil, err
		}
		logrus.Warnf("Config file %s not found, using defaults", resolved)
		cfg = &config.Config{}
		cfg.ApplyDefaults()
	}

	if url := strings.TrimSpace(os.Getenv(EnvRPCURL)); url != "" {
		cfg.Wallet.RPCURL = url
		logrus.Infof("Wallet.RPCURL overridden by %s", EnvRPCURL)
	}
	if level := strings.TrimSpace(os.Getenv(EnvLogLevel)); level != "" {
		cfg.Logging.Level = level
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the services cannot start with.
func Validate(cfg *config.Config) error {
	if cfg.Wallet.RateLimit < 0 || cfg.Wallet.BurstLimit < 0 {
		return fmt.Errorf("wallet rate limits must not be negative")
	}
	if cfg.Tracker.MaxAttempts <= 0 {
		return fmt.Errorf("tracker.maxAttempts must be positive")
	}
	for _, url := range append([]string{cfg.Wallet.RPCURL}, cfg.Wallet.FallbackRPCURLs...) {
		if url == "" {
			continue
		}
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") &&
			!strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
			return fmt.Errorf("unsupported wallet RPC URL %q", url)
		}
	}
	return nil
}
