package port

import (
	"context"
	"math/big"

	"batch_transfer/internal/domain/entity"
)

// WalletRPC is the JSON-RPC surface of the wallet provider.
// Every method is an independent round trip; errors are *entity.TransferError.
type WalletRPC interface {
	Accounts(ctx context.Context) ([]string, error)
	RequestAccounts(ctx context.Context) ([]string, error)
	ChainID(ctx context.Context) (string, error)

	// Call runs eth_call against the latest block.
	Call(ctx context.Context, to string, data []byte) ([]byte, error)
	SendTransaction(ctx context.Context, tx entity.TransactionRequest) (string, error)
	GetBalance(ctx context.Context, account string) (*big.Int, error)
	GetCode(ctx context.Context, account string) ([]byte, error)
	ClientVersion(ctx context.Context) (string, error)

	GetCapabilities(ctx context.Context, account string, chainIDs []string) (entity.WalletCapabilities, error)
	SendCalls(ctx context.Context, req entity.BatchRequest) (entity.BatchID, error)
	GetCallsStatus(ctx context.Context, id entity.BatchID) (entity.BatchStatus, error)
}
