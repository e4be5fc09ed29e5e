package entity

import "fmt"

// NetworkDefinition holds the configuration for a specific blockchain network.
// This structure is defined at the domain level to be used across application and infrastructure layers.
type NetworkDefinition struct {
	ChainID          uint64 `json:"chainId" yaml:"chainId"`
	Name             string `json:"name" yaml:"name"`
	Identifier       string `json:"identifier" yaml:"identifier"`
	NativeSymbol     string `json:"nativeSymbol" yaml:"nativeSymbol"`
	Decimals         uint8  `json:"decimals" yaml:"decimals"`
	RegistryFile     string `json:"registryFile,omitempty" yaml:"registryFile,omitempty"` // имя списка токенов без .json
	BlockExplorerURL string `json:"blockExplorerUrl,omitempty" yaml:"blockExplorerUrl,omitempty"`
}

// HexChainID returns the chain id in the 0x-prefixed form wallets report.
func (d NetworkDefinition) HexChainID() string {
	return FormatChainID(d.ChainID)
}

// TxURL returns the explorer link for a transaction hash, or "" when the network has no explorer.
func (d NetworkDefinition) TxURL(txHash string) string {
	if d.BlockExplorerURL == "" || txHash == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", d.BlockExplorerURL, txHash)
}

// UnknownNetworkName is the display name used for chains without a definition.
func UnknownNetworkName(chainID string) string {
	return fmt.Sprintf("Network (%s)", chainID)
}
