package entity

import (
	"fmt"
	"strconv"
	"strings"
)

// Session identifies the account/chain pair an operation was started for.
// Every account or chain change produces a Session with a larger Epoch.
type Session struct {
	Account string `json:"account"`
	ChainID string `json:"chainId"`
	Epoch   uint64 `json:"epoch"`
}

// ChainNumber parses the session chain id.
func (s Session) ChainNumber() (uint64, error) {
	return ParseChainID(s.ChainID)
}

// ParseChainID parses a 0x-prefixed hex chain id. Leading zeros are accepted.
func ParseChainID(chainID string) (uint64, error) {
	raw := strings.ToLower(strings.TrimSpace(chainID))
	if !strings.HasPrefix(raw, "0x") || len(raw) == 2 {
		return 0, fmt.Errorf("invalid chain id %q", chainID)
	}
	n, err := strconv.ParseUint(raw[2:], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain id %q: %w", chainID, err)
	}
	return n, nil
}

// FormatChainID renders a numeric chain id as 0x-prefixed hex.
func FormatChainID(chainID uint64) string {
	return "0x" + strconv.FormatUint(chainID, 16)
}

// SameChain compares two hex chain ids numerically.
func SameChain(a, b string) bool {
	x, errA := ParseChainID(a)
	y, errB := ParseChainID(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	return x == y
}
