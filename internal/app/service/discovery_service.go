package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"batch_transfer/internal/app/port"
	"batch_transfer/internal/domain/entity"
	"batch_transfer/internal/pkg/metrics"
	"batch_transfer/internal/pkg/utils"
)

// DefaultPrioritySymbols are checked before the sampled remainder of the registry.
var DefaultPrioritySymbols = []string{"USDC", "USDT", "DAI", "WETH", "WBTC", "UNI", "LINK", "AAVE"}

const (
	defaultSampleSize = 50
	displayPrecision  = 6
)

// DiscoveryConfig bounds the registry scan.
type DiscoveryConfig struct {
	PrioritySymbols []string
	SampleSize      int
}

type discoveryServiceImpl struct {
	wallet   port.WalletRPC
	logger   port.Logger
	priority map[string]struct{}
	sample   int
}

// NewDiscoveryService creates the token discovery engine.
func NewDiscoveryService(wallet port.WalletRPC, cfg DiscoveryConfig, logger port.Logger) port.TokenDiscoveryService {
	symbols := cfg.PrioritySymbols
	if len(symbols) == 0 {
		symbols = DefaultPrioritySymbols
	}
	priority := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		priority[strings.ToUpper(s)] = struct{}{}
	}
	sample := cfg.SampleSize
	if sample <= 0 {
		sample = defaultSampleSize
	}
	return &discoveryServiceImpl{wallet: wallet, logger: logger, priority: priority, sample: sample}
}

// Discover probes balances sequentially and returns every token with a positive balance.
// Single token failures are logged and skipped.
func (s *discoveryServiceImpl) Discover(ctx context.Context, session entity.Session, candidates []entity.TokenInfo, customAddresses []string) ([]entity.TokenRecord, error) {
	chainID, err := session.ChainNumber()
	if err != nil {
		return nil, entity.NewError(entity.KindValidation, "cannot scan without a valid chain", err)
	}
	start := time.Now()
	defer func() { metrics.DiscoveryDuration.Observe(time.Since(start).Seconds()) }()

	ordered := s.orderCandidates(chainID, candidates)
	s.logger.Info("Scanning token balances",
		"account", session.Account, "chainId", session.ChainID,
		"candidates", len(ordered), "custom", len(customAddresses))

	seen := make(map[string]struct{}, len(ordered)+len(customAddresses))
	var found []entity.TokenRecord

	for _, candidate := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key := strings.ToLower(candidate.Address)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		balance, err := s.BalanceOf(ctx, session, candidate.Address)
		if err != nil {
			s.logger.Debug("Balance check failed, skipping token", "symbol", candidate.Symbol, "address", candidate.Address, "error", err)
			continue
		}
		if balance.Sign() <= 0 {
			continue
		}
		found = append(found, newRecord(entity.TokenMetadata{
			Address:  candidate.Address,
			Name:     candidate.Name,
			Symbol:   candidate.Symbol,
			Decimals: candidate.Decimals,
		}, balance, candidate.LogoURI, false))
	}

	for _, address := range utils.UniqueFold(customAddresses) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !ValidAddress(address) {
			s.logger.Warn("Ignoring malformed custom token address", "address", address)
			continue
		}
		key := strings.ToLower(address)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		balance, err := s.BalanceOf(ctx, session, address)
		if err != nil {
			s.logger.Debug("Balance check failed for custom token", "address", address, "error", err)
			continue
		}
		if balance.Sign() <= 0 {
			continue
		}
		meta, err := s.ProbeMetadata(ctx, address)
		if err != nil {
			s.logger.Warn("Custom token metadata probe failed, skipping", "address", address, "error", err)
			continue
		}
		found = append(found, newRecord(meta, balance, "", true))
	}

	s.logger.Info("Token scan finished", "chainId", session.ChainID, "found", len(found), "took", time.Since(start).String())
	return found, nil
}

// orderCandidates keeps the session chain's candidates, priority symbols first,
// then a bounded sample of the rest in registry order.
func (s *discoveryServiceImpl) orderCandidates(chainID uint64, candidates []entity.TokenInfo) []entity.TokenInfo {
	var priority, rest []entity.TokenInfo
	for _, c := range candidates {
		if c.ChainID != chainID {
			continue
		}
		if _, ok := s.priority[strings.ToUpper(c.Symbol)]; ok {
			priority = append(priority, c)
			continue
		}
		rest = append(rest, c)
	}
	return append(priority, utils.Take(rest, s.sample)...)
}

// BalanceOf reads balanceOf(session.Account) on the token contract.
func (s *discoveryServiceImpl) BalanceOf(ctx context.Context, session entity.Session, tokenAddress string) (*big.Int, error) {
	result, err := s.wallet.Call(ctx, tokenAddress, packBalanceOf(session.Account))
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s: %w", tokenAddress, err)
	}
	return unpackBalanceOf(result)
}

// ProbeMetadata reads name, symbol and decimals. A token without a readable
// symbol or decimals is not treated as ERC20.
func (s *discoveryServiceImpl) ProbeMetadata(ctx context.Context, address string) (entity.TokenMetadata, error) {
	if !ValidAddress(address) {
		return entity.TokenMetadata{}, entity.NewError(entity.KindValidation, "invalid token address", nil)
	}
	symbolRaw, err := s.wallet.Call(ctx, address, packNoArgs("symbol"))
	if err != nil {
		return entity.TokenMetadata{}, fmt.Errorf("symbol(): %w", err)
	}
	symbol, err := unpackString("symbol", symbolRaw)
	if err != nil || symbol == "" || strings.EqualFold(symbol, "unknown") {
		return entity.TokenMetadata{}, entity.NewError(entity.KindValidation, "not a valid ERC20 token: symbol unreadable", err)
	}

	decimalsRaw, err := s.wallet.Call(ctx, address, packNoArgs("decimals"))
	if err != nil {
		return entity.TokenMetadata{}, fmt.Errorf("decimals(): %w", err)
	}
	decimals, err := unpackDecimals(decimalsRaw)
	if err != nil {
		return entity.TokenMetadata{}, entity.NewError(entity.KindValidation, "not a valid ERC20 token: decimals unreadable", err)
	}

	name := symbol
	if nameRaw, err := s.wallet.Call(ctx, address, packNoArgs("name")); err == nil {
		if decoded, err := unpackString("name", nameRaw); err == nil && decoded != "" {
			name = decoded
		}
	}

	return entity.TokenMetadata{Address: address, Name: name, Symbol: symbol, Decimals: decimals}, nil
}

func newRecord(meta entity.TokenMetadata, balance *big.Int, logo string, custom bool) entity.TokenRecord {
	formatted, err := utils.FormatBigIntPrecision(balance, meta.Decimals, displayPrecision)
	if err != nil {
		formatted = balance.String()
	}
	return entity.TokenRecord{
		Address:  meta.Address,
		Symbol:   meta.Symbol,
		Name:     meta.Name,
		Decimals: meta.Decimals,
		LogoURI:  logo,
		IsCustom: custom,
	}.WithBalance(balance, formatted)
}
