package utils

import (
	"fmt"
	"math/big"
	"strings"
)

// FormatBigInt converts a raw token amount to a decimal string using the token's decimals.
// The conversion is exact: amount=1234500000000000000, decimals=18 => "1.2345".
func FormatBigInt(amount *big.Int, decimals uint8) (string, error) {
	if amount == nil {
		return "0", nil
	}
	if amount.Sign() < 0 {
		return "", fmt.Errorf("negative amount %s", amount.String())
	}
	if decimals == 0 {
		return amount.String(), nil
	}

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(amount, divisor, new(big.Int))

	fracStr := frac.String()
	if pad := int(decimals) - len(fracStr); pad > 0 {
		fracStr = strings.Repeat("0", pad) + fracStr
	}
	fracStr = strings.TrimRight(fracStr, "0")
	if fracStr == "" {
		return whole.String(), nil
	}
	return whole.String() + "." + fracStr, nil
}

// FormatBigIntPrecision is FormatBigInt truncated to at most places fractional digits.
func FormatBigIntPrecision(amount *big.Int, decimals uint8, places int) (string, error) {
	full, err := FormatBigInt(amount, decimals)
	if err != nil {
		return "", err
	}
	dot := strings.IndexByte(full, '.')
	if dot < 0 || places < 0 || len(full)-dot-1 <= places {
		return full, nil
	}
	trimmed := strings.TrimRight(full[:dot+1+places], "0")
	return strings.TrimSuffix(trimmed, "."), nil
}

// ParseBigInt parses a decimal or 0x-prefixed hex integer.
func ParseBigInt(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}
