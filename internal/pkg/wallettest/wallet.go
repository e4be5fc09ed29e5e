// Package wallettest provides an in-memory port.WalletRPC for tests.
package wallettest

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"batch_transfer/internal/app/port"
	"batch_transfer/internal/domain/entity"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	selectorBalanceOf = []byte{0x70, 0xa0, 0x82, 0x31}
	selectorName      = []byte{0x06, 0xfd, 0xde, 0x03}
	selectorSymbol    = []byte{0x95, 0xd8, 0x9b, 0x41}
	selectorDecimals  = []byte{0x31, 0x3c, 0xe5, 0x67}
)

// Token describes an ERC20 contract served by the fake.
type Token struct {
	Name     string
	Symbol   string
	Decimals uint8
	Balance  *big.Int
	// Bytes32 serves name/symbol as legacy bytes32 values.
	Bytes32 bool
	// BalanceSequence overrides Balance call by call; the last value repeats.
	BalanceSequence []*big.Int
	BalanceErr      error
	SendErr         error

	balanceReads int
}

// Wallet is a scriptable wallet provider. Zero values behave like an empty wallet.
type Wallet struct {
	mu sync.Mutex

	Account         string
	Chain           string
	Native          *big.Int
	Code            []byte
	Version         string
	Tokens          map[string]*Token
	Capabilities    entity.WalletCapabilities
	CapabilitiesErr error
	SendCallsErr    error
	BatchID         entity.BatchID
	Statuses        []entity.BatchStatus
	StatusErr       error

	SentBatches []entity.BatchRequest
	SentTxs     []entity.TransactionRequest
	StatusPolls int
	Methods     []string
}

var _ port.WalletRPC = (*Wallet)(nil)

// New returns a wallet for account on chain.
func New(account, chain string) *Wallet {
	return &Wallet{Account: account, Chain: chain, Native: big.NewInt(0), Tokens: map[string]*Token{}, BatchID: "0xbatch"}
}

// AddToken registers an ERC20 contract.
func (w *Wallet) AddToken(address string, token *Token) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Tokens[strings.ToLower(address)] = token
}

// MethodCount returns how often method was called.
func (w *Wallet) MethodCount(method string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, m := range w.Methods {
		if m == method {
			n++
		}
	}
	return n
}

// Snapshot returns copies of the recorded submissions.
func (w *Wallet) Snapshot() ([]entity.BatchRequest, []entity.TransactionRequest, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]entity.BatchRequest(nil), w.SentBatches...), append([]entity.TransactionRequest(nil), w.SentTxs...), w.StatusPolls
}

func (w *Wallet) record(method string) {
	w.Methods = append(w.Methods, method)
}

func (w *Wallet) Accounts(ctx context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.record("eth_accounts")
	if w.Account == "" {
		return nil, nil
	}
	return []string{w.Account}, nil
}

func (w *Wallet) RequestAccounts(ctx context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.record("eth_requestAccounts")
	if w.Account == "" {
		return nil, entity.NewError(entity.KindUserRejection, "user rejected the request", nil)
	}
	return []string{w.Account}, nil
}

func (w *Wallet) ChainID(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.record("eth_chainId")
	return w.Chain, nil
}

func (w *Wallet) Call(ctx context.Context, to string, data []byte) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.record("eth_call")
	token, ok := w.Tokens[strings.ToLower(to)]
	if !ok || len(data) < 4 {
		return nil, nil
	}
	switch {
	case bytes.Equal(data[:4], selectorBalanceOf):
		if token.BalanceErr != nil {
			return nil, token.BalanceErr
		}
		balance := token.Balance
		if n := len(token.BalanceSequence); n > 0 {
			idx := token.balanceReads
			if idx >= n {
				idx = n - 1
			}
			balance = token.BalanceSequence[idx]
		}
		token.balanceReads++
		if balance == nil {
			balance = big.NewInt(0)
		}
		return common.LeftPadBytes(balance.Bytes(), 32), nil
	case bytes.Equal(data[:4], selectorSymbol):
		return encodeString(token.Symbol, token.Bytes32), nil
	case bytes.Equal(data[:4], selectorName):
		return encodeString(token.Name, token.Bytes32), nil
	case bytes.Equal(data[:4], selectorDecimals):
		return common.LeftPadBytes([]byte{token.Decimals}, 32), nil
	}
	return nil, entity.NewError(entity.KindTransport, "execution reverted", nil)
}

func (w *Wallet) SendTransaction(ctx context.Context, tx entity.TransactionRequest) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.record("eth_sendTransaction")
	if token, ok := w.Tokens[strings.ToLower(tx.To)]; ok && token.SendErr != nil {
		return "", token.SendErr
	}
	w.SentTxs = append(w.SentTxs, tx)
	return fmt.Sprintf("0x%064x", len(w.SentTxs)), nil
}

func (w *Wallet) GetBalance(ctx context.Context, account string) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.record("eth_getBalance")
	if w.Native == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(w.Native), nil
}

func (w *Wallet) GetCode(ctx context.Context, account string) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.record("eth_getCode")
	return w.Code, nil
}

func (w *Wallet) ClientVersion(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.record("web3_clientVersion")
	if w.Version == "" {
		return "", entity.NewError(entity.KindProtocol, "method not found", nil)
	}
	return w.Version, nil
}

func (w *Wallet) GetCapabilities(ctx context.Context, account string, chainIDs []string) (entity.WalletCapabilities, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.record("wallet_getCapabilities")
	if w.CapabilitiesErr != nil {
		return nil, w.CapabilitiesErr
	}
	if w.Capabilities == nil {
		return entity.WalletCapabilities{}, nil
	}
	return w.Capabilities, nil
}

func (w *Wallet) SendCalls(ctx context.Context, req entity.BatchRequest) (entity.BatchID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.record("wallet_sendCalls")
	if w.SendCallsErr != nil {
		return "", w.SendCallsErr
	}
	w.SentBatches = append(w.SentBatches, req)
	return w.BatchID, nil
}

func (w *Wallet) GetCallsStatus(ctx context.Context, id entity.BatchID) (entity.BatchStatus, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.record("wallet_getCallsStatus")
	w.StatusPolls++
	if w.StatusErr != nil {
		return entity.BatchStatus{}, w.StatusErr
	}
	if len(w.Statuses) == 0 {
		return entity.BatchStatus{Code: entity.BatchStatusPending}, nil
	}
	idx := w.StatusPolls - 1
	if idx >= len(w.Statuses) {
		idx = len(w.Statuses) - 1
	}
	return w.Statuses[idx], nil
}

// AtomicStatus is a shortcut for a capabilities map with one chain entry.
func AtomicStatus(chain, status string) entity.WalletCapabilities {
	return entity.WalletCapabilities{chain: {Atomic: &entity.AtomicCapability{Status: status}}}
}

// RPCError builds a classified wallet error.
func RPCError(kind entity.ErrorKind, code int, message string) error {
	return &entity.TransferError{Kind: kind, Code: code, Message: message}
}

func encodeString(s string, legacy bool) []byte {
	if legacy {
		return common.RightPadBytes([]byte(s), 32)
	}
	stringType, _ := abi.NewType("string", "", nil)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(s)
	if err != nil {
		panic(fmt.Sprintf("pack string: %v", err))
	}
	return packed
}
