package walletrpc

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"batch_transfer/internal/domain/entity"
	"batch_transfer/internal/pkg/metrics"

	"github.com/ethereum/go-ethereum/rpc"
)

// JSON-RPC and wallet error codes the classifier understands.
const (
	codeUserRejected      = 4001
	codeUnauthorized      = 4100
	codeUnsupportedMethod = 4200
	codeDisconnected      = 4900
	codeChainDisconnected = 4901
	codeMethodNotFound    = -32601
	codeInvalidParams     = -32602
	codeInsufficientFunds = -32010
	codeTxRejected        = -32003

	// EIP-5792
	codeUnsupportedNonOptionalCapability = 5700
	codeUnsupportedChainID               = 5710
	codeDuplicateID                      = 5720
	codeUnknownBundleID                  = 5730
	codeBundleTooLarge                   = 5740
	codeAtomicReadyUpgradeRejected       = 5750
	codeAtomicityNotSupported            = 5760
)

// classify maps a raw RPC failure into the transfer error taxonomy.
// It runs once per call; callers only ever look at entity.ErrorKind.
func classify(method string, err error) error {
	if err == nil {
		return nil
	}
	classified := classifyError(err)
	metrics.RPCErrors.WithLabelValues(method, classified.Kind.String()).Inc()
	if classified.Message == "" {
		classified.Message = method + " failed"
	}
	return classified
}

func classifyError(err error) *entity.TransferError {
	var te *entity.TransferError
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &entity.TransferError{Kind: entity.KindTransport, Message: "wallet request timed out", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &entity.TransferError{Kind: entity.KindTransport, Message: "wallet request cancelled", Err: err}
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return &entity.TransferError{
			Kind:    entity.KindTransport,
			Code:    httpErr.StatusCode,
			Message: fmt.Sprintf("wallet endpoint returned HTTP %d", httpErr.StatusCode),
			Err:     err,
		}
	}

	var rpcErr rpc.Error
	if !errors.As(err, &rpcErr) {
		return &entity.TransferError{Kind: entity.KindTransport, Err: err}
	}

	code := rpcErr.ErrorCode()
	out := &entity.TransferError{Code: code, Err: err}
	switch code {
	case codeUserRejected:
		out.Kind = entity.KindUserRejection
	case codeMethodNotFound, codeInvalidParams, codeUnsupportedMethod, codeUnknownBundleID, codeDuplicateID:
		out.Kind = entity.KindProtocol
	case codeUnsupportedNonOptionalCapability, codeUnsupportedChainID, codeBundleTooLarge,
		codeAtomicReadyUpgradeRejected, codeAtomicityNotSupported:
		// a declined smart account upgrade still leaves individual transfers open
		out.Kind = entity.KindCapability
	case codeInsufficientFunds, codeTxRejected:
		out.Kind = entity.KindFunds
	case codeUnauthorized, codeDisconnected, codeChainDisconnected:
		out.Kind = entity.KindTransport
	default:
		out.Kind = kindFromMessage(rpcErr.Error())
	}
	return out
}

// kindFromMessage handles providers that report everything as -32000
// with the reason only in the message text.
func kindFromMessage(message string) entity.ErrorKind {
	msg := strings.ToLower(message)
	switch {
	case strings.Contains(msg, "user rejected"), strings.Contains(msg, "user denied"):
		return entity.KindUserRejection
	case strings.Contains(msg, "transfer amount exceeds balance"), strings.Contains(msg, "exceeds balance"):
		return entity.KindStaleState
	case strings.Contains(msg, "insufficient funds"), strings.Contains(msg, "gas required exceeds"),
		strings.Contains(msg, "intrinsic gas too low"), strings.Contains(msg, "out of gas"):
		return entity.KindFunds
	case strings.Contains(msg, "atomic"), strings.Contains(msg, "wallet_sendcalls"),
		strings.Contains(msg, "smart account"), strings.Contains(msg, "not supported on this chain"):
		return entity.KindCapability
	case strings.Contains(msg, "method not found"), strings.Contains(msg, "does not exist"):
		return entity.KindProtocol
	default:
		return entity.KindTransport
	}
}
