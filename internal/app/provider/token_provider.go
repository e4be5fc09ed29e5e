package provider

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"batch_transfer/internal/app/port"
	"batch_transfer/internal/client"
	"batch_transfer/internal/domain/entity"
	"batch_transfer/internal/infrastructure/tokenloader"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
)

const defaultCacheTTL = 30 * time.Minute

// TokenRegistryConfig selects the registry sources.
type TokenRegistryConfig struct {
	RemoteEnabled bool
	CacheTTL      time.Duration
}

// TokenRegistry serves registry candidates: remote list first, local file second,
// cached per chain.
type TokenRegistry struct {
	remote      client.TokenListClient
	files       *tokenloader.TokenFileLoader
	cfg         TokenRegistryConfig
	logger      port.Logger
	tokensCache *cache.Cache // chainID -> []entity.TokenInfo
}

var _ port.TokenRegistry = (*TokenRegistry)(nil)

// NewTokenProvider creates the token registry. remote may be nil when only local lists are used.
func NewTokenProvider(remote client.TokenListClient, files *tokenloader.TokenFileLoader, cfg TokenRegistryConfig, logger port.Logger) *TokenRegistry {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	return &TokenRegistry{
		remote:      remote,
		files:       files,
		cfg:         cfg,
		logger:      logger,
		tokensCache: cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
	}
}

// TokensForChain implements port.TokenRegistry. A network without a registry file yields no
// candidates. The error is returned only when every configured source failed.
func (p *TokenRegistry) TokensForChain(ctx context.Context, network entity.NetworkDefinition) ([]entity.TokenInfo, error) {
	if network.RegistryFile == "" {
		return nil, nil
	}
	key := strconv.FormatUint(network.ChainID, 10)
	if cached, ok := p.tokensCache.Get(key); ok {
		p.logger.Debug("Returning cached token list", "network", network.Identifier)
		return cached.([]entity.TokenInfo), nil
	}

	var remoteErr error
	if p.cfg.RemoteEnabled && p.remote != nil {
		tokens, err := p.remote.FetchTokenList(ctx, network.RegistryFile)
		if err == nil {
			tokens = filterChain(tokens, network.ChainID)
			p.tokensCache.SetDefault(key, tokens)
			p.logger.Info("Token list loaded", "network", network.Identifier, "count", len(tokens), "source", "remote")
			return tokens, nil
		}
		remoteErr = err
		p.logger.Warn("Remote token list unavailable, trying local file", "network", network.Identifier, "error", err)
	}

	if p.files != nil {
		tokens, err := p.files.LoadNetwork(network)
		if err == nil {
			p.tokensCache.SetDefault(key, tokens)
			return tokens, nil
		}
		if !errors.Is(err, tokenloader.ErrNoLocalList) {
			return nil, errors.Join(remoteErr, err)
		}
	}
	if remoteErr != nil {
		return nil, fmt.Errorf("token list for %s: %w", network.Name, remoteErr)
	}
	return nil, fmt.Errorf("token list for %s: no source configured", network.Name)
}

// WarmUp loads the lists of all networks concurrently. Failures are logged only.
func (p *TokenRegistry) WarmUp(ctx context.Context, networks []entity.NetworkDefinition) int {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	loaded := make([]bool, len(networks))
	for i, network := range networks {
		if network.RegistryFile == "" {
			continue
		}
		g.Go(func() error {
			if _, err := p.TokensForChain(gctx, network); err != nil {
				p.logger.Warn("Failed to load token list", "network", network.Identifier, "error", err)
				return nil
			}
			loaded[i] = true
			return nil
		})
	}
	_ = g.Wait()

	n := 0
	for _, ok := range loaded {
		if ok {
			n++
		}
	}
	p.logger.Info(fmt.Sprintf("Loaded token lists for %d networks", n))
	return n
}

func filterChain(tokens []entity.TokenInfo, chainID uint64) []entity.TokenInfo {
	out := tokens[:0:0]
	for _, t := range tokens {
		if t.ChainID == chainID {
			out = append(out, t)
		}
	}
	return out
}
