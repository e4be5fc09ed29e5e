package main

import (
	"context"
	"fmt"
	"time"

	"batch_transfer/internal/app/port"
	"batch_transfer/internal/app/provider"
	"batch_transfer/internal/app/service"
	"batch_transfer/internal/client"
	"batch_transfer/internal/config"
	"batch_transfer/internal/infrastructure/configloader"
	"batch_transfer/internal/infrastructure/journal"
	networkdefinition "batch_transfer/internal/infrastructure/network/definition"
	"batch_transfer/internal/infrastructure/statusfeed"
	"batch_transfer/internal/infrastructure/tokenloader"
	"batch_transfer/internal/infrastructure/walletrpc"
	"batch_transfer/internal/pkg/logger"
	"batch_transfer/internal/pkg/metrics"
	"batch_transfer/internal/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

// application holds the wired services of one command run.
type application struct {
	cfg        *config.Config
	log        port.Logger
	zap        *zap.Logger
	wallet     *walletrpc.WalletClient
	networks   *networkdefinition.NetworkDefinitionProvider
	registry   *provider.TokenRegistry
	sessions   *service.SessionService
	capability port.CapabilityNegotiator
	orch       *service.Orchestrator
	feed       *statusfeed.Feed
	journal    *journal.Journal
}

// loadConfig resolves the config file and global flag overrides, then initializes logging.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := configloader.Load(c.String(flagConfig.Name))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if rpcURL := c.String(flagRPC.Name); rpcURL != "" {
		cfg.Wallet.RPCURL = rpcURL
	}
	if level := c.String(flagLogLevel.Name); level != "" {
		cfg.Logging.Level = level
	}
	if _, err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

// newApplication wires every service. withWallet=false skips dialing (history, networks).
func newApplication(c *cli.Context, withWallet bool) (*application, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	zl := logger.Zap()
	log := logger.Named("sweeper")
	metrics.MustRegister(prometheus.DefaultRegisterer)

	app := &application{cfg: cfg, log: log, zap: zl}
	app.networks = networkdefinition.NewNetworkDefinitionProvider(logger.Named("networks"), cfg.Registry.TokenDirectory)

	app.journal, err = journal.Open(cfg.Journal.Path, logger.Named("journal"))
	if err != nil {
		return nil, err
	}
	if !withWallet {
		return app, nil
	}

	urls := append([]string{cfg.Wallet.RPCURL}, cfg.Wallet.FallbackRPCURLs...)
	app.wallet, err = walletrpc.Dial(c.Context, urls, connectTimeout, walletrpc.Options{
		CallTimeout: cfg.CallTimeout(),
		RateLimit:   float64(cfg.Wallet.RateLimit),
		BurstLimit:  cfg.Wallet.BurstLimit,
	}, logger.Named("walletrpc"))
	if err != nil {
		app.Close()
		return nil, err
	}

	minNative, err := utils.ParseBigInt(cfg.Preflight.MinNativeBalanceWei)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("preflight.minNativeBalanceWei: %w", err)
	}

	var remote client.TokenListClient
	if cfg.RegistryRemoteEnabled() {
		remote = client.NewTokenListClient(cfg.Registry.BaseURL, time.Duration(cfg.Registry.RequestTimeoutMillis)*time.Millisecond, zl)
	}
	app.registry = provider.NewTokenProvider(
		remote,
		tokenloader.NewTokenLoader(cfg.Registry.TokenDirectory, logger.Named("tokenloader")),
		provider.TokenRegistryConfig{
			RemoteEnabled: cfg.RegistryRemoteEnabled(),
			CacheTTL:      time.Duration(cfg.Registry.CacheTTLMinutes) * time.Minute,
		},
		logger.Named("registry"),
	)
	customTokens := provider.NewCustomTokenProvider(cfg.Registry.CustomTokensFile, logger.Named("custom_tokens"))

	app.feed = statusfeed.New(0, logger.Named("feed"))
	app.sessions = service.NewSessionService(app.wallet, logger.Named("session"))
	app.capability = service.NewCapabilityService(app.wallet, app.networks, logger.Named("capability"))
	tracker := service.NewStatusTracker(app.wallet, app.sessions, app.networks, app.feed, service.TrackerConfig{
		InitialDelay: time.Duration(cfg.Tracker.InitialDelayMillis) * time.Millisecond,
		PollInterval: time.Duration(cfg.Tracker.PollIntervalMillis) * time.Millisecond,
		MaxAttempts:  cfg.Tracker.MaxAttempts,
	}, logger.Named("tracker"))

	app.orch = service.NewOrchestrator(service.OrchestratorDeps{
		Wallet: app.wallet,
		Discovery: service.NewDiscoveryService(app.wallet, service.DiscoveryConfig{
			PrioritySymbols: cfg.Discovery.PrioritySymbols,
			SampleSize:      cfg.Discovery.SampleSize,
		}, logger.Named("discovery")),
		Capability:   app.capability,
		Tracker:      tracker,
		Registry:     app.registry,
		CustomTokens: customTokens,
		Networks:     app.networks,
		Sessions:     app.sessions,
		Journal:      app.journal,
		Observer:     app.feed,
		Logger:       logger.Named("orchestrator"),
	}, service.OrchestratorConfig{
		MinNativeBalance: minNative,
		FallbackGasLimit: cfg.Fallback.GasLimit,
		InterTxDelay:     time.Duration(cfg.Fallback.InterTxDelayMillis) * time.Millisecond,
	})
	app.sessions.Subscribe(app.orch.OnSessionChanged)

	log.Info("Services initialized", "rpc", app.wallet.Endpoint(), "networks", len(app.networks.GetAllNetworkDefinitions()))
	return app, nil
}

// connect reuses an authorized account when the wallet exposes one and prompts otherwise.
func (a *application) connect(ctx context.Context) (sessionInfo, error) {
	session, ok, err := a.sessions.Restore(ctx)
	if err != nil {
		return sessionInfo{}, err
	}
	if !ok {
		if session, err = a.sessions.Connect(ctx); err != nil {
			return sessionInfo{}, err
		}
	}
	return sessionInfo{Session: session, Network: a.networks.NetworkName(session.ChainID)}, nil
}

// Close releases the journal and the RPC connection.
func (a *application) Close() {
	if a.orch != nil {
		a.orch.Close()
	}
	if a.wallet != nil {
		a.wallet.Close()
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.Warn("Failed to close journal", "error", err)
		}
	}
}
