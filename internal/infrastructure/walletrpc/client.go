package walletrpc

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"batch_transfer/internal/app/port"
	"batch_transfer/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

const defaultCallTimeout = 30 * time.Second

// Options tune a WalletClient.
type Options struct {
	CallTimeout time.Duration
	RateLimit   float64 // requests per second, <= 0 disables limiting
	BurstLimit  int
}

// WalletClient implements port.WalletRPC on top of a go-ethereum rpc.Client.
type WalletClient struct {
	rpcClient   *rpc.Client
	endpoint    string
	limiter     *rate.Limiter
	callTimeout time.Duration
}

var _ port.WalletRPC = (*WalletClient)(nil)

// NewWalletClient wraps an already dialed rpc client.
func NewWalletClient(rpcClient *rpc.Client, endpoint string, opts Options) *WalletClient {
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.BurstLimit
	if burst <= 0 {
		burst = 1
	}
	timeout := opts.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &WalletClient{
		rpcClient:   rpcClient,
		endpoint:    endpoint,
		limiter:     rate.NewLimiter(limit, burst),
		callTimeout: timeout,
	}
}

// Endpoint returns the URL the client is connected to.
func (c *WalletClient) Endpoint() string { return c.endpoint }

// Close releases the underlying connection.
func (c *WalletClient) Close() { c.rpcClient.Close() }

func (c *WalletClient) call(ctx context.Context, result any, method string, args ...any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return classify(method, err)
	}
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	if err := c.rpcClient.CallContext(callCtx, result, method, args...); err != nil {
		return classify(method, err)
	}
	return nil
}

func (c *WalletClient) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := c.call(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *WalletClient) RequestAccounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := c.call(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *WalletClient) ChainID(ctx context.Context) (string, error) {
	var raw string
	if err := c.call(ctx, &raw, "eth_chainId"); err != nil {
		return "", err
	}
	chainID, err := entity.ParseChainID(raw)
	if err != nil {
		return "", entity.NewError(entity.KindProtocol, "malformed eth_chainId response", err)
	}
	return entity.FormatChainID(chainID), nil
}

func (c *WalletClient) Call(ctx context.Context, to string, data []byte) ([]byte, error) {
	callArgs := map[string]interface{}{
		"to":   common.HexToAddress(to),
		"data": hexutil.Bytes(data),
	}
	var result hexutil.Bytes
	if err := c.call(ctx, &result, "eth_call", callArgs, "latest"); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *WalletClient) SendTransaction(ctx context.Context, tx entity.TransactionRequest) (string, error) {
	txArgs := map[string]interface{}{
		"from": common.HexToAddress(tx.From),
		"to":   common.HexToAddress(tx.To),
		"data": tx.Data,
	}
	if tx.Gas > 0 {
		txArgs["gas"] = hexutil.Uint64(tx.Gas)
	}
	var hash string
	if err := c.call(ctx, &hash, "eth_sendTransaction", txArgs); err != nil {
		return "", err
	}
	return hash, nil
}

func (c *WalletClient) GetBalance(ctx context.Context, account string) (*big.Int, error) {
	var balance hexutil.Big
	if err := c.call(ctx, &balance, "eth_getBalance", common.HexToAddress(account), "latest"); err != nil {
		return nil, err
	}
	return (*big.Int)(&balance), nil
}

func (c *WalletClient) GetCode(ctx context.Context, account string) ([]byte, error) {
	var code hexutil.Bytes
	if err := c.call(ctx, &code, "eth_getCode", common.HexToAddress(account), "latest"); err != nil {
		return nil, err
	}
	return code, nil
}

func (c *WalletClient) ClientVersion(ctx context.Context) (string, error) {
	var version string
	if err := c.call(ctx, &version, "web3_clientVersion"); err != nil {
		return "", err
	}
	return version, nil
}

func (c *WalletClient) GetCapabilities(ctx context.Context, account string, chainIDs []string) (entity.WalletCapabilities, error) {
	var caps entity.WalletCapabilities
	if err := c.call(ctx, &caps, "wallet_getCapabilities", account, chainIDs); err != nil {
		return nil, err
	}
	if caps == nil {
		caps = entity.WalletCapabilities{}
	}
	return caps, nil
}

func (c *WalletClient) SendCalls(ctx context.Context, req entity.BatchRequest) (entity.BatchID, error) {
	var id entity.BatchID
	if err := c.call(ctx, &id, "wallet_sendCalls", req); err != nil {
		return "", err
	}
	if id == "" {
		return "", entity.NewError(entity.KindProtocol, "wallet_sendCalls returned no batch id", nil)
	}
	return id, nil
}

func (c *WalletClient) GetCallsStatus(ctx context.Context, id entity.BatchID) (entity.BatchStatus, error) {
	var status entity.BatchStatus
	if err := c.call(ctx, &status, "wallet_getCallsStatus", string(id)); err != nil {
		return entity.BatchStatus{}, err
	}
	return status, nil
}

// Dial connects to the first reachable URL, trying fallbacks in order.
func Dial(ctx context.Context, urls []string, connectTimeout time.Duration, opts Options, logger port.Logger) (*WalletClient, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("no wallet RPC url configured")
	}
	var lastErr error
	for _, url := range urls {
		if url == "" {
			continue
		}
		dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		client, err := rpc.DialContext(dialCtx, url)
		cancel()

		if err == nil {
			logger.Info("Connected to wallet RPC", "url", url)
			return NewWalletClient(client, url, opts), nil
		}
		logger.Warn("Wallet RPC unreachable, trying next", "url", url, "error", err)
		lastErr = fmt.Errorf("failed to connect to RPC %s: %w", url, err)
	}
	return nil, fmt.Errorf("all wallet RPC connection attempts failed: %w", lastErr)
}
