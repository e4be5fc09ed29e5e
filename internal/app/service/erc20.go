package service

import (
	"bytes"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"sync"

	"batch_transfer/internal/domain/entity"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TransferPayloadLength is the hex length of an encoded transfer call, 0x included.
const TransferPayloadLength = 2 + 2*(4+32+32)

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"name","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"_to","type":"address"},{"name":"_value","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

var (
	parsedERC20ABI  abi.ABI
	parsedERC20Once sync.Once

	maxUint256       = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	recipientPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

func erc20() abi.ABI {
	parsedERC20Once.Do(func() {
		var err error
		parsedERC20ABI, err = abi.JSON(strings.NewReader(erc20ABI))
		if err != nil {
			panic(fmt.Sprintf("failed to parse ERC20 ABI: %v", err))
		}
	})
	return parsedERC20ABI
}

// ValidAddress reports whether s is 0x followed by exactly 40 hex digits.
func ValidAddress(s string) bool {
	return recipientPattern.MatchString(s)
}

// EncodeTransfer builds transfer(recipient, amount) calldata as a 0x-prefixed hex string.
func EncodeTransfer(recipient string, amount *big.Int) (string, error) {
	if !ValidAddress(recipient) {
		return "", entity.ErrInvalidRecipient
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", fmt.Errorf("transfer amount must be positive")
	}
	if amount.Cmp(maxUint256) > 0 {
		return "", fmt.Errorf("transfer amount %s overflows uint256", amount.String())
	}

	data, err := erc20().Pack("transfer", common.HexToAddress(recipient), amount)
	if err != nil {
		return "", fmt.Errorf("pack transfer: %w", err)
	}
	encoded := hexutil.Encode(data)
	if len(encoded) != TransferPayloadLength {
		return "", fmt.Errorf("internal error: transfer payload is %d hex chars, expected %d", len(encoded), TransferPayloadLength)
	}
	return encoded, nil
}

// DecodeTransfer recovers recipient and amount from transfer calldata.
func DecodeTransfer(data string) (common.Address, *big.Int, error) {
	raw, err := hexutil.Decode(data)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("decode calldata: %w", err)
	}
	method := erc20().Methods["transfer"]
	if len(raw) < 4 || !bytes.Equal(raw[:4], method.ID) {
		return common.Address{}, nil, fmt.Errorf("calldata is not an ERC20 transfer")
	}
	values, err := method.Inputs.Unpack(raw[4:])
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("unpack transfer: %w", err)
	}
	to, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, nil, fmt.Errorf("unexpected recipient type %T", values[0])
	}
	amount, ok := values[1].(*big.Int)
	if !ok {
		return common.Address{}, nil, fmt.Errorf("unexpected amount type %T", values[1])
	}
	return to, amount, nil
}

// BuildTransferCalls turns verified tokens into batch calls. It fails as a whole
// if any single call cannot be built.
func BuildTransferCalls(tokens []entity.TokenRecord, recipient string) ([]entity.TransferCall, error) {
	calls := make([]entity.TransferCall, 0, len(tokens))
	for _, token := range tokens {
		data, err := EncodeTransfer(recipient, token.Balance)
		if err != nil {
			return nil, fmt.Errorf("build transfer for %s: %w", token.Symbol, err)
		}
		calls = append(calls, entity.TransferCall{To: token.Address, Value: "0x0", Data: data})
	}
	return calls, nil
}

func packBalanceOf(account string) []byte {
	data, err := erc20().Pack("balanceOf", common.HexToAddress(account))
	if err != nil {
		panic(fmt.Sprintf("pack balanceOf: %v", err))
	}
	return data
}

func unpackBalanceOf(result []byte) (*big.Int, error) {
	if len(result) == 0 {
		return big.NewInt(0), nil
	}
	unpacked, err := erc20().Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w. Raw: %s", err, hexutil.Encode(result))
	}
	balance, ok := unpacked[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf type %T", unpacked[0])
	}
	return balance, nil
}

func packNoArgs(method string) []byte {
	return erc20().Methods[method].ID
}

// unpackString decodes an ABI string, falling back to bytes32 for legacy tokens.
// Null bytes are stripped either way.
func unpackString(method string, result []byte) (string, error) {
	if len(result) == 0 {
		return "", fmt.Errorf("%s returned no data", method)
	}
	if unpacked, err := erc20().Unpack(method, result); err == nil {
		if s, ok := unpacked[0].(string); ok {
			return strings.TrimSpace(strings.ReplaceAll(s, "\x00", "")), nil
		}
	}
	if len(result) == 32 {
		return strings.TrimSpace(string(bytes.TrimRight(result, "\x00"))), nil
	}
	return "", fmt.Errorf("cannot decode %s result %s", method, hexutil.Encode(result))
}

func unpackDecimals(result []byte) (uint8, error) {
	if len(result) == 0 {
		return 0, fmt.Errorf("decimals returned no data")
	}
	word := new(big.Int).SetBytes(result)
	if !word.IsUint64() || word.Uint64() > 255 {
		return 0, fmt.Errorf("decimals out of range: %s", word.String())
	}
	return uint8(word.Uint64()), nil
}
