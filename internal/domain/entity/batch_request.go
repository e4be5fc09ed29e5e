package entity

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BatchCallsVersion is the wallet_sendCalls request version.
const BatchCallsVersion = "2.0.0"

// Settlement status codes reported by wallet_getCallsStatus.
const (
	BatchStatusPending   = 100
	BatchStatusConfirmed = 200
	BatchStatusFailed    = 400
)

// TransferCall is a single ERC20 transfer inside a batch.
type TransferCall struct {
	To    string `json:"to"`
	Value string `json:"value"`
	Data  string `json:"data"`
}

// BatchRequest is the wallet_sendCalls payload.
type BatchRequest struct {
	Version        string         `json:"version"`
	From           string         `json:"from"`
	ChainID        string         `json:"chainId"`
	AtomicRequired bool           `json:"atomicRequired"`
	Calls          []TransferCall `json:"calls"`
}

// NewBatchRequest builds an atomic batch for the session.
func NewBatchRequest(session Session, calls []TransferCall) BatchRequest {
	return BatchRequest{
		Version:        BatchCallsVersion,
		From:           session.Account,
		ChainID:        session.ChainID,
		AtomicRequired: true,
		Calls:          calls,
	}
}

// BatchID identifies a submitted batch.
type BatchID string

// UnmarshalJSON accepts both {"id": "..."} and a bare string.
func (b *BatchID) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*b = BatchID(id)
		return nil
	}
	var wrapped struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return fmt.Errorf("decode batch id: %w", err)
	}
	if wrapped.ID == "" {
		return fmt.Errorf("decode batch id: empty id in %s", string(data))
	}
	*b = BatchID(wrapped.ID)
	return nil
}

// Receipt is a transaction receipt reported for a settled batch.
type Receipt struct {
	TransactionHash string `json:"transactionHash"`
	Status          string `json:"status,omitempty"`
	BlockNumber     string `json:"blockNumber,omitempty"`
	GasUsed         string `json:"gasUsed,omitempty"`
}

// BatchStatus is the latest wallet_getCallsStatus snapshot.
type BatchStatus struct {
	Code     int       `json:"status"`
	Receipts []Receipt `json:"receipts,omitempty"`
}

// UnmarshalJSON accepts numeric codes and the legacy PENDING/CONFIRMED strings.
func (s *BatchStatus) UnmarshalJSON(data []byte) error {
	var raw struct {
		Status   json.RawMessage `json:"status"`
		Receipts []Receipt       `json:"receipts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode batch status: %w", err)
	}
	s.Receipts = raw.Receipts
	var code int
	if err := json.Unmarshal(raw.Status, &code); err == nil {
		s.Code = code
		return nil
	}
	var legacy string
	if err := json.Unmarshal(raw.Status, &legacy); err != nil {
		return fmt.Errorf("decode batch status code: %w", err)
	}
	switch strings.ToUpper(legacy) {
	case "CONFIRMED":
		s.Code = BatchStatusConfirmed
	case "PENDING":
		s.Code = BatchStatusPending
	default:
		s.Code = BatchStatusFailed
	}
	return nil
}

// Confirmed reports a terminal success code.
func (s BatchStatus) Confirmed() bool { return s.Code == BatchStatusConfirmed }

// Failed reports a terminal failure code.
func (s BatchStatus) Failed() bool { return s.Code >= BatchStatusFailed }

// PrimaryTxHash returns the hash of the first receipt, if any.
func (s BatchStatus) PrimaryTxHash() string {
	if len(s.Receipts) == 0 {
		return ""
	}
	return s.Receipts[0].TransactionHash
}

// TransactionRequest is an ordinary eth_sendTransaction payload.
type TransactionRequest struct {
	From string
	To   string
	Data string
	Gas  uint64
}
