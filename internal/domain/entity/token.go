package entity

import (
	"math/big"
	"strings"
)

// TokenInfo is a registry candidate for a specific chain.
type TokenInfo struct {
	ChainID  uint64 `json:"chainId"`
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	LogoURI  string `json:"logoURI,omitempty"`
}

// TokenRecord is a token the account holds a positive balance of.
type TokenRecord struct {
	Address          string   `json:"address"`
	Symbol           string   `json:"symbol"`
	Name             string   `json:"name"`
	Decimals         uint8    `json:"decimals"`
	Balance          *big.Int `json:"-"`
	RawBalance       string   `json:"balance"`
	FormattedBalance string   `json:"formattedBalance"`
	LogoURI          string   `json:"logoURI,omitempty"`
	IsCustom         bool     `json:"isCustom"`
}

// WithBalance returns a copy of the record carrying the given balance.
func (r TokenRecord) WithBalance(balance *big.Int, formatted string) TokenRecord {
	r.Balance = new(big.Int).Set(balance)
	r.RawBalance = balance.String()
	r.FormattedBalance = formatted
	return r
}

// TokenMetadata is the result of probing name/symbol/decimals on a contract.
type TokenMetadata struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
