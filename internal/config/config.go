package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the overall configuration for the application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Wallet    WalletConfig    `yaml:"wallet"`
	Registry  RegistryConfig  `yaml:"registry"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Preflight PreflightConfig `yaml:"preflight"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Fallback  FallbackConfig  `yaml:"fallback"`
	Journal   JournalConfig   `yaml:"journal"`
}

// ServerConfig holds the server-specific configuration.
type ServerConfig struct {
	Port           string   `yaml:"port"`
	ReadTimeout    int      `yaml:"readTimeout"`
	WriteTimeout   int      `yaml:"writeTimeout"`
	IdleTimeout    int      `yaml:"idleTimeout"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // e.g., "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// WalletConfig describes the wallet provider endpoint.
type WalletConfig struct {
	RPCURL             string   `yaml:"rpcURL"`
	FallbackRPCURLs    []string `yaml:"fallbackRPCURLs"`
	CallTimeoutSeconds int      `yaml:"callTimeoutSeconds"`
	RateLimit          int      `yaml:"rateLimit"`
	BurstLimit         int      `yaml:"burstLimit"`
}

// RegistryConfig holds configuration for the token registry.
type RegistryConfig struct {
	BaseURL              string `yaml:"baseURL"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
	CacheTTLMinutes      int    `yaml:"cacheTTLMinutes"`
	TokenDirectory       string `yaml:"tokenDirectory"`
	CustomTokensFile     string `yaml:"customTokensFile"`
	RemoteEnabled        *bool  `yaml:"remoteEnabled"`
}

// DiscoveryConfig bounds the balance scan.
type DiscoveryConfig struct {
	PrioritySymbols []string `yaml:"prioritySymbols"`
	SampleSize      int      `yaml:"sampleSize"`
}

// PreflightConfig holds pre-submission checks.
type PreflightConfig struct {
	MinNativeBalanceWei string `yaml:"minNativeBalanceWei"`
}

// TrackerConfig is the batch status polling schedule.
type TrackerConfig struct {
	InitialDelayMillis int64 `yaml:"initialDelayMillis"`
	PollIntervalMillis int64 `yaml:"pollIntervalMillis"`
	MaxAttempts        int   `yaml:"maxAttempts"`
}

// FallbackConfig tunes the sequential transfers.
type FallbackConfig struct {
	InterTxDelayMillis int64  `yaml:"interTxDelayMillis"`
	GasLimit           uint64 `yaml:"gasLimit"`
}

// JournalConfig locates the attempt journal.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// RegistryRemoteEnabled reports whether the remote token list is used (default true).
func (c *Config) RegistryRemoteEnabled() bool {
	return c.Registry.RemoteEnabled == nil || *c.Registry.RemoteEnabled
}

// CallTimeout returns the per-call RPC timeout.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Wallet.CallTimeoutSeconds) * time.Second
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logrus.Errorf("Failed to unmarshal config data: %v", err)
		return nil, fmt.Errorf("failed to unmarshal config data: %w", err)
	}
	cfg.ApplyDefaults()
	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
		logrus.Infof("Server.Port not set, defaulting to %s", c.Server.Port)
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 // event stream keeps the connection busy
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Wallet.CallTimeoutSeconds <= 0 {
		c.Wallet.CallTimeoutSeconds = 30
		logrus.Infof("Wallet.CallTimeoutSeconds not set, defaulting to %d", c.Wallet.CallTimeoutSeconds)
	}
	if c.Wallet.RateLimit <= 0 {
		c.Wallet.RateLimit = 10
	}
	if c.Wallet.BurstLimit <= 0 {
		c.Wallet.BurstLimit = c.Wallet.RateLimit
	}

	if c.Registry.BaseURL == "" {
		c.Registry.BaseURL = "https://raw.githubusercontent.com/Uniswap/default-token-list/main/src/tokens"
		logrus.Infof("Registry.BaseURL not set, defaulting to %s", c.Registry.BaseURL)
	}
	if c.Registry.RequestTimeoutMillis == 0 {
		c.Registry.RequestTimeoutMillis = 10000
	}
	if c.Registry.CacheTTLMinutes == 0 {
		c.Registry.CacheTTLMinutes = 60
		logrus.Infof("Registry.CacheTTLMinutes not set, defaulting to %d minutes", c.Registry.CacheTTLMinutes)
	}
	if c.Registry.TokenDirectory == "" {
		c.Registry.TokenDirectory = "data/tokens"
	}
	if c.Registry.CustomTokensFile == "" {
		c.Registry.CustomTokensFile = "data/custom_tokens.txt"
	}

	if c.Discovery.SampleSize <= 0 {
		c.Discovery.SampleSize = 50
	}
	if c.Preflight.MinNativeBalanceWei == "" {
		c.Preflight.MinNativeBalanceWei = "1000000000000000" // 0.001
	}
	if c.Tracker.InitialDelayMillis <= 0 {
		c.Tracker.InitialDelayMillis = 2000
	}
	if c.Tracker.PollIntervalMillis <= 0 {
		c.Tracker.PollIntervalMillis = 5000
	}
	if c.Tracker.MaxAttempts <= 0 {
		c.Tracker.MaxAttempts = 60
	}
	if c.Fallback.InterTxDelayMillis == 0 {
		c.Fallback.InterTxDelayMillis = 2000
	}
	if c.Fallback.GasLimit == 0 {
		c.Fallback.GasLimit = 90000
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "data/journal"
	}

	if c.Wallet.RPCURL == "" {
		logrus.Warn("Wallet.RPCURL is not set. Provide it in the config file or via SWEEPER_RPC_URL.")
	}
}
