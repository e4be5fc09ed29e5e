package entity

import (
	"errors"
	"fmt"
)

// ErrorKind classifies transfer failures.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindCapability
	KindStaleState
	KindUserRejection
	KindProtocol
	KindFunds
	KindTransport
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindCapability:
		return "capability"
	case KindStaleState:
		return "stale_state"
	case KindUserRejection:
		return "user_rejection"
	case KindProtocol:
		return "protocol"
	case KindFunds:
		return "funds"
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// TransferError is a classified failure. Code carries the JSON-RPC error code when there was one.
type TransferError struct {
	Kind    ErrorKind
	Code    int
	Message string
	Err     error
}

func (e *TransferError) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String() + " error"
}

func (e *TransferError) Unwrap() error { return e.Err }

// Is matches a bare kind template, so errors.Is(err, &TransferError{Kind: KindFunds}) works.
// Sentinels carrying a message only match themselves.
func (e *TransferError) Is(target error) bool {
	t, ok := target.(*TransferError)
	if !ok || t.Message != "" || t.Err != nil {
		return false
	}
	return t.Kind == e.Kind && (t.Code == 0 || t.Code == e.Code)
}

// NewError builds a TransferError of the given kind.
func NewError(kind ErrorKind, message string, err error) *TransferError {
	return &TransferError{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first TransferError in err's chain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var te *TransferError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

var (
	ErrInvalidRecipient   = NewError(KindValidation, "invalid recipient address", nil)
	ErrNoTokens           = NewError(KindValidation, "no tokens to transfer, scan first", nil)
	ErrTransferInProgress = NewError(KindValidation, "a transfer is already in progress", nil)
	ErrNoFallbackOffered  = NewError(KindValidation, "no fallback transfer is pending confirmation", nil)
	ErrNotConnected       = NewError(KindValidation, "wallet is not connected", nil)
	ErrStaleSession       = errors.New("session changed while the operation was in flight")
)

// StaleBalanceError reports tokens whose balance could not be re-verified before submission.
type StaleBalanceError struct {
	InvalidCount int
	Symbols      []string
}

func (e *StaleBalanceError) Error() string {
	return fmt.Sprintf("%d token(s) have insufficient balance, rescan required", e.InvalidCount)
}
