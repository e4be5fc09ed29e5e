package networkdefinition

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"batch_transfer/internal/app/port"
	"batch_transfer/internal/domain/entity"
)

// NetworkDefinitionProvider provides network definitions.
type NetworkDefinitionProvider struct {
	logger     port.Logger
	byChainID  map[uint64]entity.NetworkDefinition
	localLists map[string]struct{} // RegistryFile с локальным списком токенов
}

var _ port.NetworkDefinitionProvider = (*NetworkDefinitionProvider)(nil)

// Predefined network definitions
var ( //nolint:gochecknoglobals // Global for definitions
	Ethereum = entity.NetworkDefinition{
		ChainID:          1,
		Name:             "Ethereum Mainnet",
		Identifier:       "ethereum",
		NativeSymbol:     "ETH",
		Decimals:         18,
		RegistryFile:     "mainnet",
		BlockExplorerURL: "https://etherscan.io",
	}
	Sepolia = entity.NetworkDefinition{
		ChainID:          11155111,
		Name:             "Sepolia Testnet",
		Identifier:       "sepolia",
		NativeSymbol:     "ETH",
		Decimals:         18,
		RegistryFile:     "sepolia",
		BlockExplorerURL: "https://sepolia.etherscan.io",
	}
	Polygon = entity.NetworkDefinition{
		ChainID:          137,
		Name:             "Polygon Mainnet",
		Identifier:       "polygon",
		NativeSymbol:     "POL",
		Decimals:         18,
		RegistryFile:     "polygon",
		BlockExplorerURL: "https://polygonscan.com",
	}
	BSC = entity.NetworkDefinition{
		ChainID:          56,
		Name:             "BSC Mainnet",
		Identifier:       "bsc",
		NativeSymbol:     "BNB",
		Decimals:         18,
		RegistryFile:     "bsc",
		BlockExplorerURL: "https://bscscan.com",
	}
	Optimism = entity.NetworkDefinition{
		ChainID:          10,
		Name:             "Optimism Mainnet",
		Identifier:       "optimism",
		NativeSymbol:     "ETH",
		Decimals:         18,
		RegistryFile:     "optimism",
		BlockExplorerURL: "https://optimistic.etherscan.io",
	}
	Base = entity.NetworkDefinition{
		ChainID:          8453,
		Name:             "Base Mainnet",
		Identifier:       "base",
		NativeSymbol:     "ETH",
		Decimals:         18,
		RegistryFile:     "base",
		BlockExplorerURL: "https://basescan.org",
	}
	Arbitrum = entity.NetworkDefinition{
		ChainID:          42161,
		Name:             "Arbitrum Mainnet",
		Identifier:       "arbitrum",
		NativeSymbol:     "ETH",
		Decimals:         18,
		RegistryFile:     "arbitrum",
		BlockExplorerURL: "https://arbiscan.io",
	}
	// zkSync и Scroll: в Uniswap default-token-list списков нет, только custom токены.
	ZkSync = entity.NetworkDefinition{
		ChainID:          324,
		Name:             "ZKSync Era Mainnet",
		Identifier:       "zksync",
		NativeSymbol:     "ETH",
		Decimals:         18,
		BlockExplorerURL: "https://explorer.zksync.io",
	}
	Scroll = entity.NetworkDefinition{
		ChainID:          534352,
		Name:             "Scroll Mainnet",
		Identifier:       "scroll",
		NativeSymbol:     "ETH",
		Decimals:         18,
		BlockExplorerURL: "https://scrollscan.com",
	}
)

// allKnownDefinitions is a helper to quickly access all hardcoded definitions.
var allKnownDefinitions = []entity.NetworkDefinition{
	Ethereum, Sepolia, Polygon, BSC, Optimism, Base, Arbitrum, ZkSync, Scroll,
}

// NewNetworkDefinitionProvider creates a provider over the predefined networks.
// tokenDataDir is scanned for on-disk registry lists (<registryFile>.json); an empty
// or missing directory only means no local lists.
func NewNetworkDefinitionProvider(log port.Logger, tokenDataDir string) *NetworkDefinitionProvider {
	p := &NetworkDefinitionProvider{
		logger:     log,
		byChainID:  make(map[uint64]entity.NetworkDefinition, len(allKnownDefinitions)),
		localLists: make(map[string]struct{}),
	}
	registryFiles := make(map[string]entity.NetworkDefinition)
	for _, def := range allKnownDefinitions {
		p.byChainID[def.ChainID] = def
		if def.RegistryFile != "" {
			registryFiles[def.RegistryFile] = def
		}
	}

	if tokenDataDir == "" {
		return p
	}
	files, err := os.ReadDir(tokenDataDir)
	if err != nil {
		if !os.IsNotExist(err) {
			p.logger.Error(fmt.Sprintf("Failed to read token data directory: %s", tokenDataDir), "error", err)
		}
		return p
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(strings.ToLower(file.Name()), ".json") {
			continue
		}
		name := strings.TrimSuffix(strings.ToLower(file.Name()), ".json")
		def, ok := registryFiles[name]
		if !ok {
			p.logger.Warn(fmt.Sprintf("Token file '%s' does not match any known network registry file. Skipping.", file.Name()))
			continue
		}
		p.localLists[name] = struct{}{}
		p.logger.Debug(fmt.Sprintf("Local token list found for '%s'.", def.Name), "file", file.Name())
	}
	p.logger.Info("NetworkDefinitionProvider initialized", "networks", len(p.byChainID), "localLists", len(p.localLists))
	return p
}

// GetAllNetworkDefinitions returns the known networks ordered by chain id.
func (p *NetworkDefinitionProvider) GetAllNetworkDefinitions() []entity.NetworkDefinition {
	if p == nil {
		return []entity.NetworkDefinition{}
	}
	defs := make([]entity.NetworkDefinition, 0, len(p.byChainID))
	for _, def := range p.byChainID {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ChainID < defs[j].ChainID })
	return defs
}

// GetNetworkDefinitionByName returns a network by its identifier.
func (p *NetworkDefinitionProvider) GetNetworkDefinitionByName(identifier string) (entity.NetworkDefinition, bool) {
	if p == nil {
		return entity.NetworkDefinition{}, false
	}
	for _, def := range p.byChainID {
		if strings.EqualFold(def.Identifier, identifier) {
			return def, true
		}
	}
	return entity.NetworkDefinition{}, false
}

// GetNetworkDefinitionByChainID returns a network by its hex chain id.
func (p *NetworkDefinitionProvider) GetNetworkDefinitionByChainID(chainID string) (entity.NetworkDefinition, bool) {
	if p == nil {
		return entity.NetworkDefinition{}, false
	}
	id, err := entity.ParseChainID(chainID)
	if err != nil {
		return entity.NetworkDefinition{}, false
	}
	def, ok := p.byChainID[id]
	return def, ok
}

// NetworkName returns the display name of a chain.
func (p *NetworkDefinitionProvider) NetworkName(chainID string) string {
	if def, ok := p.GetNetworkDefinitionByChainID(chainID); ok {
		return def.Name
	}
	return entity.UnknownNetworkName(chainID)
}

// HasLocalList reports whether tokenDataDir holds a list for the network.
func (p *NetworkDefinitionProvider) HasLocalList(def entity.NetworkDefinition) bool {
	if p == nil || def.RegistryFile == "" {
		return false
	}
	_, ok := p.localLists[def.RegistryFile]
	return ok
}
