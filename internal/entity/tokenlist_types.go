package entity

import domain "batch_transfer/internal/domain/entity"

// TokenList is the tokenlists.org document. Uniswap's per-network files under
// src/tokens are bare arrays of the same token objects; the client accepts both.
type TokenList struct {
	Name      string             `json:"name"`
	Timestamp string             `json:"timestamp,omitempty"`
	Version   *TokenListVersion  `json:"version,omitempty"`
	Tokens    []domain.TokenInfo `json:"tokens"`
	LogoURI   string             `json:"logoURI,omitempty"`
	Keywords  []string           `json:"keywords,omitempty"`
}

// TokenListVersion is the semver triple of a token list.
type TokenListVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}
