package port

import "batch_transfer/internal/domain/entity"

// NetworkDefinitionProvider defines the interface for providing network definitions.
type NetworkDefinitionProvider interface {
	// GetAllNetworkDefinitions returns all known network definitions as a slice.
	GetAllNetworkDefinitions() []entity.NetworkDefinition

	// GetNetworkDefinitionByChainID looks a network up by its hex chain id (0x1 == 0x01).
	GetNetworkDefinitionByChainID(chainID string) (entity.NetworkDefinition, bool)

	// NetworkName returns the display name, "Network (<id>)" for unknown chains.
	NetworkName(chainID string) string
}
