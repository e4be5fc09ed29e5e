package port

import (
	"context"

	"batch_transfer/internal/domain/entity"
)

// TokenRegistry supplies discovery candidates for a network.
type TokenRegistry interface {
	// TokensForChain returns the registry candidates for the chain. An empty slice with
	// a nil error means the chain has no registry list.
	TokensForChain(ctx context.Context, network entity.NetworkDefinition) ([]entity.TokenInfo, error)
}

// CustomTokenStore persists user-added token addresses per chain.
type CustomTokenStore interface {
	Addresses(chainID string) []string
	Add(chainID, address string) (bool, error)
}
